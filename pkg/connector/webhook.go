package connector

import (
	"context"
	"fmt"
	"io"
)

// WebhookSource is push-based. Documents arrive through the HTTP API,
// so the pull side connects trivially and has nothing to enumerate.
type WebhookSource struct{}

func (WebhookSource) Connect(ctx context.Context) error {
	return nil
}

func (WebhookSource) List(ctx context.Context) ([]Item, error) {
	return []Item{}, nil
}

func (WebhookSource) Fetch(ctx context.Context, id string) (string, io.ReadCloser, error) {
	return "", nil, fmt.Errorf("webhook documents arrive by push and cannot be fetched")
}

func (WebhookSource) Disconnect(ctx context.Context) error {
	return nil
}
