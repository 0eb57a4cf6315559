// ABOUTME: Unit tests for sync command helpers
// ABOUTME: Tests service selection and relative time formatting
package cli

import (
	"testing"
	"time"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "all services",
			input:    "all",
			expected: []string{"gmail", "fathom", "contacts"},
		},
		{
			name:     "single service",
			input:    "contacts",
			expected: []string{"contacts"},
		},
		{
			name:     "multiple services",
			input:    "contacts,fathom",
			expected: []string{"contacts", "fathom"},
		},
		{
			name:     "spaces around commas",
			input:    "contacts, fathom, gmail",
			expected: []string{"contacts", "fathom", "gmail"},
		},
		{
			name:     "invalid service ignored",
			input:    "contacts,calendar,Gmail",
			expected: []string{"contacts", "gmail"},
		},
		{
			name:     "all invalid services",
			input:    "invalid,unknown",
			expected: []string{},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseServices(tt.input)

			// Check length
			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d: %v", len(tt.expected), len(result), result)
				return
			}

			// Check each service
			for i, service := range tt.expected {
				if result[i] != service {
					t.Errorf("expected service[%d] = %s, got %s", i, service, result[i])
				}
			}
		})
	}
}

func TestFormatTimeSince(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		time     time.Time
		expected string
	}{
		{
			name:     "just now (30 seconds)",
			time:     now.Add(-30 * time.Second),
			expected: "just now",
		},
		{
			name:     "1 minute ago",
			time:     now.Add(-1 * time.Minute),
			expected: "1 minute ago",
		},
		{
			name:     "5 minutes ago",
			time:     now.Add(-5 * time.Minute),
			expected: "5 minutes ago",
		},
		{
			name:     "1 hour ago",
			time:     now.Add(-1 * time.Hour),
			expected: "1 hour ago",
		},
		{
			name:     "3 hours ago",
			time:     now.Add(-3 * time.Hour),
			expected: "3 hours ago",
		},
		{
			name:     "1 day ago",
			time:     now.Add(-24 * time.Hour),
			expected: "1 day ago",
		},
		{
			name:     "5 days ago",
			time:     now.Add(-5 * 24 * time.Hour),
			expected: "5 days ago",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatTimeSince(tt.time)
			if result != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}
