// ABOUTME: Google Gmail API client for email sync
// ABOUTME: Creates a Gmail service from an authenticated HTTP client
package sync

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// NewGmailClient creates a new Google Gmail API client.
func NewGmailClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*gmail.Service, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return service, nil
}
