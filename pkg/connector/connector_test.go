package connector

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
)

func TestAvailable_CatalogComplete(t *testing.T) {
	metas := Available()
	if len(metas) != 16 {
		t.Fatalf("catalog size = %d, want 16", len(metas))
	}
	if metas[0].Kind != KindS3 || metas[len(metas)-1].Kind != KindLocal {
		t.Fatalf("catalog order changed: first=%q last=%q", metas[0].Kind, metas[len(metas)-1].Kind)
	}

	seen := map[string]bool{}
	for _, m := range metas {
		if m.Kind == "" || m.Category == "" || m.Description == "" {
			t.Fatalf("incomplete metadata: %+v", m)
		}
		if seen[m.Kind] {
			t.Fatalf("duplicate kind %q", m.Kind)
		}
		seen[m.Kind] = true
	}
}

func TestNew_UnknownKindRejected(t *testing.T) {
	if _, err := New("Telepathy", nil); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestNew_KindCoverage(t *testing.T) {
	functional := map[string]bool{KindS3: true, KindWebhook: true, KindLocal: true}

	for _, m := range Available() {
		src, err := New(m.Kind, map[string]any{"bucket": "test-bucket"})
		if functional[m.Kind] {
			if err != nil {
				t.Fatalf("New(%q) error = %v, want functional source", m.Kind, err)
			}
			if src == nil {
				t.Fatalf("New(%q) returned nil source", m.Kind)
			}
			continue
		}
		if !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("New(%q) error = %v, want ErrNotImplemented", m.Kind, err)
		}
	}
}

func TestNewS3Source_RequiresBucket(t *testing.T) {
	if _, err := New(KindS3, map[string]any{}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for missing bucket", err)
	}
}

func TestLocalSource_ListAndFetch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.csv"), []byte("x,y\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	src, err := New(KindLocal, map[string]any{"upload_dir": dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	items, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// directories are skipped; ReadDir returns names sorted
	if len(items) != 2 || items[0].ID != "a.txt" || items[1].ID != "b.csv" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Size != 5 {
		t.Fatalf("a.txt size = %d, want 5", items[0].Size)
	}

	name, rc, err := src.Fetch(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer rc.Close()
	if name != "a.txt" {
		t.Fatalf("name = %q, want a.txt", name)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alpha" {
		t.Fatalf("content = %q, want alpha", data)
	}

	if _, _, err := src.Fetch(context.Background(), "missing.txt"); err == nil {
		t.Fatal("Fetch(missing) expected error")
	}
}

func TestLocalSource_FetchConfinedToDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inside.txt"), []byte("in"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &LocalSource{dir: dir}
	name, rc, err := src.Fetch(context.Background(), "../../inside.txt")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer rc.Close()
	if name != "inside.txt" {
		t.Fatalf("name = %q, want base name inside.txt", name)
	}
}

func TestLocalSource_MissingDirectory(t *testing.T) {
	src := &LocalSource{dir: filepath.Join(t.TempDir(), "nope")}

	if err := src.Connect(context.Background()); err == nil {
		t.Fatal("Connect() expected error for missing directory")
	}

	items, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v, want empty list", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %+v, want empty", items)
	}
}

func TestWebhookSource_PushOnly(t *testing.T) {
	src := &WebhookSource{}

	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	items, err := src.List(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("List() = %v, %v, want empty", items, err)
	}
	if _, _, err := src.Fetch(context.Background(), "x"); err == nil {
		t.Fatal("Fetch() expected error for push-based source")
	}
}
