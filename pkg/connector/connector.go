// Package connector defines the pull interface over external content
// sources and the catalog of supported kinds. Synced documents enter
// the same ingestion pipeline as direct uploads.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ctxeco/backend/pkg/common"
)

// ErrNotImplemented marks a registered connector kind whose pull
// implementation has not shipped yet. The kind still appears in the
// catalog and validates on create; building a Source for it fails.
var ErrNotImplemented = errors.New("connector kind not implemented")

// Connector kinds, as stored in connector configurations.
const (
	KindS3          = "S3"
	KindAzureBlob   = "AzureBlob"
	KindGCS         = "GCS"
	KindSharePoint  = "SharePoint"
	KindGoogleDrive = "GoogleDrive"
	KindOneDrive    = "OneDrive"
	KindConfluence  = "Confluence"
	KindServiceNow  = "ServiceNow"
	KindJira        = "Jira"
	KindGitHub      = "GitHub"
	KindSlack       = "Slack"
	KindTeams       = "Teams"
	KindEmail       = "Email"
	KindDatabase    = "Database"
	KindWebhook     = "Webhook"
	KindLocal       = "Local"
)

// Item is one document visible at a source.
type Item struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Metadata describes a connector kind for the catalog endpoint.
type Metadata struct {
	Kind                string   `json:"kind"`
	Category            string   `json:"category"`
	Icon                string   `json:"icon"`
	Description         string   `json:"description"`
	SupportedExtensions []string `json:"supported_extensions"`
	RequiresOAuth       bool     `json:"requires_oauth"`
	RequiresAPIKey      bool     `json:"requires_api_key"`
}

// Source pulls documents from one external system. Connect doubles as
// the connectivity probe behind the test endpoint; Fetch hands back the
// source filename and a stream the caller must close. Disconnect
// releases whatever Connect set up and is safe to call on a source that
// never connected.
type Source interface {
	Connect(ctx context.Context) error
	List(ctx context.Context) ([]Item, error)
	Fetch(ctx context.Context, id string) (string, io.ReadCloser, error)
	Disconnect(ctx context.Context) error
}

type registration struct {
	meta    Metadata
	factory func(cfg map[string]any) (Source, error)
}

var officeExtensions = []string{".pdf", ".docx", ".xlsx", ".csv", ".json", ".txt", ".pptx"}

var registry = []registration{
	{
		meta: Metadata{
			Kind: KindS3, Category: "cloud_storage", Icon: "🪣",
			Description:         "Poll AWS S3 buckets for documents",
			SupportedExtensions: officeExtensions,
			RequiresAPIKey:      true,
		},
		factory: newS3Source,
	},
	{
		meta: Metadata{
			Kind: KindAzureBlob, Category: "cloud_storage", Icon: "☁️",
			Description:         "Sync from Azure Blob Storage containers",
			SupportedExtensions: officeExtensions,
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindAzureBlob),
	},
	{
		meta: Metadata{
			Kind: KindGCS, Category: "cloud_storage", Icon: "🌩️",
			Description:         "Sync from Google Cloud Storage buckets",
			SupportedExtensions: officeExtensions,
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindGCS),
	},
	{
		meta: Metadata{
			Kind: KindSharePoint, Category: "collaboration", Icon: "📂",
			Description:         "Sync from SharePoint document libraries",
			SupportedExtensions: []string{".docx", ".xlsx", ".pptx", ".pdf"},
			RequiresOAuth:       true,
		},
		factory: unimplemented(KindSharePoint),
	},
	{
		meta: Metadata{
			Kind: KindGoogleDrive, Category: "collaboration", Icon: "📁",
			Description:         "Watch and sync Google Drive folders",
			SupportedExtensions: []string{".docx", ".xlsx", ".pptx", ".pdf", ".txt"},
			RequiresOAuth:       true,
		},
		factory: unimplemented(KindGoogleDrive),
	},
	{
		meta: Metadata{
			Kind: KindOneDrive, Category: "collaboration", Icon: "☁️",
			Description:         "Sync from OneDrive personal or business",
			SupportedExtensions: []string{".docx", ".xlsx", ".pptx", ".pdf", ".txt"},
			RequiresOAuth:       true,
		},
		factory: unimplemented(KindOneDrive),
	},
	{
		meta: Metadata{
			Kind: KindConfluence, Category: "collaboration", Icon: "📄",
			Description:         "Crawl Confluence spaces and pages",
			SupportedExtensions: []string{".html"},
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindConfluence),
	},
	{
		meta: Metadata{
			Kind: KindServiceNow, Category: "ticketing", Icon: "🎫",
			Description:         "Sync ServiceNow incidents and knowledge base articles",
			SupportedExtensions: []string{".json"},
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindServiceNow),
	},
	{
		meta: Metadata{
			Kind: KindJira, Category: "ticketing", Icon: "🔷",
			Description:         "Sync Jira issues and epics",
			SupportedExtensions: []string{".json"},
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindJira),
	},
	{
		meta: Metadata{
			Kind: KindGitHub, Category: "ticketing", Icon: "🐙",
			Description:         "Sync GitHub issues, PRs, and repository files",
			SupportedExtensions: []string{".json", ".md"},
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindGitHub),
	},
	{
		meta: Metadata{
			Kind: KindSlack, Category: "messaging", Icon: "💬",
			Description:         "Archive Slack channels",
			SupportedExtensions: []string{".json"},
			RequiresOAuth:       true,
		},
		factory: unimplemented(KindSlack),
	},
	{
		meta: Metadata{
			Kind: KindTeams, Category: "messaging", Icon: "🟦",
			Description:         "Archive Microsoft Teams chat history",
			SupportedExtensions: []string{".json"},
			RequiresOAuth:       true,
		},
		factory: unimplemented(KindTeams),
	},
	{
		meta: Metadata{
			Kind: KindEmail, Category: "messaging", Icon: "📧",
			Description:         "Import EML/MSG/MBOX email archives",
			SupportedExtensions: []string{".eml", ".msg", ".mbox"},
		},
		factory: unimplemented(KindEmail),
	},
	{
		meta: Metadata{
			Kind: KindDatabase, Category: "database", Icon: "🗄️",
			Description:         "Execute SQL or NoSQL queries",
			SupportedExtensions: []string{".json", ".csv"},
			RequiresAPIKey:      true,
		},
		factory: unimplemented(KindDatabase),
	},
	{
		meta: Metadata{
			Kind: KindWebhook, Category: "database", Icon: "🔗",
			Description:         "Receive real-time data pushes via webhook",
			SupportedExtensions: []string{".json"},
			RequiresAPIKey:      true,
		},
		factory: func(map[string]any) (Source, error) { return &WebhookSource{}, nil },
	},
	{
		meta: Metadata{
			Kind: KindLocal, Category: "local", Icon: "📤",
			Description: "Direct file upload from local machine",
			SupportedExtensions: []string{
				".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".csv", ".json",
				".html", ".md", ".eml", ".msg", ".parquet", ".log", ".jsonl",
			},
		},
		factory: newLocalSource,
	},
}

// Available lists the catalog of connector kinds in a stable order.
func Available() []Metadata {
	out := make([]Metadata, 0, len(registry))
	for _, reg := range registry {
		out = append(out, reg.meta)
	}
	return out
}

// MetadataFor returns the catalog entry for kind.
func MetadataFor(kind string) (Metadata, bool) {
	for _, reg := range registry {
		if reg.meta.Kind == kind {
			return reg.meta, true
		}
	}
	return Metadata{}, false
}

// Valid reports whether kind names a registered connector.
func Valid(kind string) bool {
	_, ok := MetadataFor(kind)
	return ok
}

// New builds a Source for the given kind and configuration.
func New(kind string, cfg map[string]any) (Source, error) {
	for _, reg := range registry {
		if reg.meta.Kind == kind {
			return reg.factory(cfg)
		}
	}
	return nil, fmt.Errorf("%w: unknown connector kind %q", common.ErrValidation, kind)
}

func unimplemented(kind string) func(map[string]any) (Source, error) {
	return func(map[string]any) (Source, error) {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, kind)
	}
}

func cfgString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
