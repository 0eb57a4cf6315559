// ABOUTME: Google Contacts importer that seeds the prospect list
// ABOUTME: Fetches People API connections and merges them into contacts by email identity
package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/harperreed/outreach/models"
)

const contactsService = "contacts"

// ContactUpserter merges contacts by identity.
type ContactUpserter interface {
	Upsert(ctx context.Context, candidate models.Contact, auto bool) (*models.Contact, bool, error)
}

type GoogleContact struct {
	ResourceName string
	Name         string
	Email        string
	Phone        string
	Company      string
	JobTitle     string
	Notes        string
}

// ImportStats summarises a contacts import.
type ImportStats struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type ContactsImporter struct {
	store  ContactUpserter
	logger *zap.Logger
}

func NewContactsImporter(store ContactUpserter, logger *zap.Logger) *ContactsImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactsImporter{store: store, logger: logger}
}

// NewPeopleClient creates a new Google People API client.
func NewPeopleClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*people.Service, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return service, nil
}

// ImportContact merges one Google contact. Existing fields are never
// blanked and the pipeline status is left alone.
func (ci *ContactsImporter) ImportContact(ctx context.Context, gc *GoogleContact) (bool, error) {
	if gc.Email == "" || gc.Name == "" {
		return false, fmt.Errorf("contact %q requires a name and an email", gc.ResourceName)
	}

	notes := gc.Notes
	if gc.JobTitle != "" {
		notes = strings.TrimSpace("Title: " + gc.JobTitle + "\n\n" + notes)
	}

	contact, created, err := ci.store.Upsert(ctx, models.Contact{
		Name:    gc.Name,
		Email:   gc.Email,
		Company: gc.Company,
		Notes:   notes,
	}, true)
	if err != nil {
		return false, fmt.Errorf("failed to import contact: %w", err)
	}

	ci.logger.Debug("imported google contact",
		zap.String("resource", gc.ResourceName),
		zap.String("contact_id", contact.ID.String()),
		zap.Bool("created", created),
	)
	return created, nil
}

// ImportContacts fetches every connection from the People API and merges it.
func (ci *ContactsImporter) ImportContacts(ctx context.Context, client *people.Service) (*ImportStats, error) {
	stats := &ImportStats{}
	pageToken := ""

	for {
		call := client.People.Connections.List("people/me").
			PageSize(1000).
			PersonFields("names,emailAddresses,phoneNumbers,organizations,biographies").
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return stats, fmt.Errorf("failed to fetch contacts: %w", err)
		}

		if response == nil || response.Connections == nil {
			break
		}
		stats.Fetched += len(response.Connections)

		for _, person := range response.Connections {
			gc := convertPerson(person)
			if gc.Email == "" || gc.Name == "" {
				stats.Skipped++
				continue
			}

			created, err := ci.ImportContact(ctx, gc)
			if err != nil {
				ci.logger.Warn("failed to import contact", zap.String("resource", gc.ResourceName), zap.Error(err))
				stats.Failed++
				continue
			}
			if created {
				stats.Created++
			} else {
				stats.Merged++
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	ci.logger.Info("google contacts imported",
		zap.Int("fetched", stats.Fetched),
		zap.Int("created", stats.Created),
		zap.Int("merged", stats.Merged),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// convertPerson converts a People API Person to GoogleContact.
func convertPerson(person *people.Person) *GoogleContact {
	gc := &GoogleContact{
		ResourceName: person.ResourceName,
	}

	if len(person.Names) > 0 && person.Names[0].DisplayName != "" {
		gc.Name = person.Names[0].DisplayName
	}

	// Prefer primary, otherwise first available
	for _, email := range person.EmailAddresses {
		if email.Value == "" {
			continue
		}
		if gc.Email == "" {
			gc.Email = email.Value
		}
		if email.Metadata != nil && email.Metadata.Primary {
			gc.Email = email.Value
			break
		}
	}

	for _, phone := range person.PhoneNumbers {
		if phone.Value == "" {
			continue
		}
		if gc.Phone == "" {
			gc.Phone = phone.Value
		}
		if phone.Metadata != nil && phone.Metadata.Primary {
			gc.Phone = phone.Value
			break
		}
	}

	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		gc.Company = org.Name
		gc.JobTitle = org.Title
	}

	if len(person.Biographies) > 0 && person.Biographies[0].Value != "" {
		gc.Notes = person.Biographies[0].Value
	}

	return gc
}
