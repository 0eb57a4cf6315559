// ABOUTME: Google Calendar meeting source used as secondary cross-signal evidence
// ABOUTME: Filters out all-day, declined, solo, and resource-only events before scoring
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/outreach/reconcile"
)

const maxCalendarResults = 250 // Google Calendar API max per page

// CalendarMeeting is a meeting plus the external attendee emails it can be
// matched on.
type CalendarMeeting struct {
	reconcile.Meeting
	Emails []string
}

// MeetingSource supplies secondary meeting evidence.
type MeetingSource interface {
	Meetings(ctx context.Context, since time.Time) ([]CalendarMeeting, error)
}

type CalendarSource struct {
	service    *calendar.Service
	calendarID string
	logger     *zap.Logger
}

// NewCalendarSource reads meetings from the primary calendar.
func NewCalendarSource(service *calendar.Service, logger *zap.Logger) *CalendarSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarSource{service: service, calendarID: "primary", logger: logger}
}

// Meetings lists timed events from since until now.
func (c *CalendarSource) Meetings(ctx context.Context, since time.Time) ([]CalendarMeeting, error) {
	var meetings []CalendarMeeting
	skipCounts := make(map[string]int)
	pageToken := ""

	for {
		call := c.service.Events.List(c.calendarID).
			MaxResults(maxCalendarResults).
			SingleEvents(true).
			ShowDeleted(true).
			OrderBy("startTime").
			TimeMin(since.Format(time.RFC3339)).
			TimeMax(time.Now().Format(time.RFC3339)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch calendar events: %w", err)
		}

		for _, event := range events.Items {
			m, reason := meetingFromEvent(event)
			if reason != "" {
				skipCounts[reason]++
				continue
			}
			meetings = append(meetings, m)
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Debug("calendar meetings loaded", zap.Int("meetings", len(meetings)), zap.Any("skipped", skipCounts))
	return meetings, nil
}

// meetingFromEvent converts an event, or returns the reason it was skipped.
// Cancelled events are kept and flagged so the engine can ignore them.
func meetingFromEvent(event *calendar.Event) (CalendarMeeting, string) {
	if event == nil {
		return CalendarMeeting{}, "nil event"
	}
	if event.Start == nil || event.End == nil {
		return CalendarMeeting{}, "missing time"
	}
	if event.Start.Date != "" || event.Start.DateTime == "" {
		return CalendarMeeting{}, "all-day event"
	}

	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return CalendarMeeting{}, "unparseable start"
	}
	end, err := time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return CalendarMeeting{}, "unparseable end"
	}

	var emails []string
	attendees := 0
	for _, a := range event.Attendees {
		if a.Resource {
			continue
		}
		if a.Self {
			if a.ResponseStatus == "declined" {
				return CalendarMeeting{}, "declined"
			}
			attendees++
			continue
		}
		attendees++
		if email := strings.ToLower(strings.TrimSpace(a.Email)); email != "" {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return CalendarMeeting{}, "solo event"
	}

	return CalendarMeeting{
		Meeting: reconcile.Meeting{
			Title:           event.Summary,
			Start:           start,
			DurationMinutes: int(end.Sub(start).Minutes()),
			Attendees:       attendees,
			Cancelled:       event.Status == "cancelled",
		},
		Emails: emails,
	}, ""
}
