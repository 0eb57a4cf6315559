// ABOUTME: Calendar API client setup for Google Calendar integration
// ABOUTME: Creates a Calendar service from an authenticated HTTP client
package sync

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewCalendarClient creates a Google Calendar API service.
func NewCalendarClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*calendar.Service, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return service, nil
}
