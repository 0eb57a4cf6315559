// ABOUTME: Contact store operations
// ABOUTME: Identity lookup, atomic upsert with merge, status changes, and CRUD
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/outreach/models"
	"go.uber.org/zap"
)

const contactColumns = `id, name, company, email, linkedin, notes, status, next_followup,
	next_action, next_action_due, action_channel, action_objective, auto_created, created_at, updated_at`

// ContactFilter narrows ListContacts. Zero values mean no filter.
type ContactFilter struct {
	Query   string
	Status  models.Status
	Company string
	Limit   int
	Offset  int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var status string
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Company,
		&c.Email,
		&c.LinkedIn,
		&c.Notes,
		&status,
		&c.NextFollowup,
		&c.NextAction,
		&c.NextActionDue,
		&c.ActionChannel,
		&c.ActionObjective,
		&c.AutoCreated,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.Status(status)
	return &c, nil
}

// FindByIdentity looks a contact up by case-insensitive email, falling back
// to linkedin when no email is given. A miss returns nil, nil.
func (s *Store) FindByIdentity(ctx context.Context, email, linkedin string) (*models.Contact, error) {
	return s.findByIdentity(ctx, s.db, email, linkedin)
}

func (s *Store) findByIdentity(ctx context.Context, q querier, email, linkedin string) (*models.Contact, error) {
	email = normalizeEmail(email)
	linkedin = strings.TrimSpace(linkedin)

	var row *sql.Row
	switch {
	case email != "":
		row = s.queryRow(ctx, q, `SELECT `+contactColumns+` FROM contacts WHERE email <> '' AND lower(email) = ?`, email)
	case linkedin != "":
		row = s.queryRow(ctx, q, `SELECT `+contactColumns+` FROM contacts WHERE linkedin = ? ORDER BY created_at LIMIT 1`, linkedin)
	default:
		return nil, nil
	}

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", classify(err))
	}
	return c, nil
}

// Upsert inserts candidate or merges it into the contact with the same
// identity. The lookup and write share one transaction; a unique violation
// from a concurrent insert is retried once as a merge.
func (s *Store) Upsert(ctx context.Context, candidate models.Contact, auto bool) (*models.Contact, bool, error) {
	contact, created, err := s.upsertOnce(ctx, candidate, auto)
	if err != nil && IsUniqueViolation(err) {
		s.logger.Debug("upsert raced with concurrent insert, retrying", zap.String("email", candidate.Email))
		contact, created, err = s.upsertOnce(ctx, candidate, auto)
	}
	if err != nil {
		return nil, false, err
	}
	return contact, created, nil
}

func (s *Store) upsertOnce(ctx context.Context, candidate models.Contact, auto bool) (*models.Contact, bool, error) {
	var result *models.Contact
	var created bool

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.findByIdentity(ctx, tx, candidate.Email, candidate.LinkedIn)
		if err != nil {
			return err
		}

		if existing == nil {
			c := candidate
			c.Email = strings.TrimSpace(c.Email)
			if c.Status == "" {
				c.Status = models.StatusNew
			}
			c.AutoCreated = auto
			if err := s.insertContact(ctx, tx, &c); err != nil {
				return err
			}
			result, created = &c, true
			return nil
		}

		merged := models.MergeContact(*existing, candidate)
		if merged == *existing {
			result = existing
			return nil
		}
		if err := s.updateContact(ctx, tx, &merged); err != nil {
			return err
		}
		result = &merged
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// SetStatus applies any valid status to a contact. Manual changes are not
// restricted by pipeline order.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status models.Status, actor string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	res, err := s.exec(ctx, s.db, `UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to set status: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}

	s.logger.Info("contact status changed",
		zap.String("contact_id", id.String()),
		zap.String("status", string(status)),
		zap.String("actor", actor),
	)
	return nil
}

// CreateContact inserts a new contact. A duplicate email yields ErrConflict.
func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact.Status == "" {
		contact.Status = models.StatusNew
	}
	if !contact.Status.Valid() {
		return fmt.Errorf("invalid status %q", contact.Status)
	}
	if err := s.insertContact(ctx, s.db, contact); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("contact with email %s already exists: %w", contact.Email, ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) insertContact(ctx context.Context, q querier, contact *models.Contact) error {
	contact.ID = uuid.New()
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	_, err := s.exec(ctx, q, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, contact.ID.String(), contact.Name, contact.Company, contact.Email, contact.LinkedIn, contact.Notes,
		string(contact.Status), contact.NextFollowup, contact.NextAction, contact.NextActionDue,
		contact.ActionChannel, contact.ActionObjective, contact.AutoCreated, contact.CreatedAt, contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", classify(err))
	}
	return nil
}

// GetContact returns nil, nil when the id is unknown.
func (s *Store) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	c, err := scanContact(s.queryRow(ctx, s.db, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", classify(err))
	}
	return c, nil
}

// ListContacts returns contacts newest first.
func (s *Store) ListContacts(ctx context.Context, filter ContactFilter) ([]models.Contact, error) {
	var where []string
	var args []any

	if filter.Query != "" {
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Company != "" {
		where = append(where, "LOWER(company) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Company)))
	}

	query := `SELECT ` + contactColumns + ` FROM contacts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", classify(err))
	}
	return contacts, nil
}

// UpdateContact overwrites every editable field of an existing contact.
func (s *Store) UpdateContact(ctx context.Context, contact *models.Contact) error {
	if !contact.Status.Valid() {
		return fmt.Errorf("invalid status %q", contact.Status)
	}
	if err := s.updateContact(ctx, s.db, contact); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("contact with email %s already exists: %w", contact.Email, ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) updateContact(ctx context.Context, q querier, contact *models.Contact) error {
	contact.UpdatedAt = time.Now().UTC()

	res, err := s.exec(ctx, q, `
		UPDATE contacts
		SET name = ?, company = ?, email = ?, linkedin = ?, notes = ?, status = ?, next_followup = ?,
			next_action = ?, next_action_due = ?, action_channel = ?, action_objective = ?, updated_at = ?
		WHERE id = ?
	`, contact.Name, contact.Company, strings.TrimSpace(contact.Email), contact.LinkedIn, contact.Notes,
		string(contact.Status), contact.NextFollowup, contact.NextAction, contact.NextActionDue,
		contact.ActionChannel, contact.ActionObjective, contact.UpdatedAt, contact.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, ErrNotFound)
	}
	return nil
}

// DeleteContact removes a contact. Linked events keep their history with the
// link cleared.
func (s *Store) DeleteContact(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `UPDATE external_events SET contact_id = NULL WHERE contact_id = ?`, id.String()); err != nil {
			return fmt.Errorf("failed to unlink events: %w", classify(err))
		}

		res, err := s.exec(ctx, tx, `DELETE FROM contacts WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete contact: %w", classify(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("contact %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// FindContactsByName returns contacts whose name matches exactly, ignoring case.
func (s *Store) FindContactsByName(ctx context.Context, name string) ([]models.Contact, error) {
	return s.findBy(ctx, "LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
}

// FindContactsByCompany returns contacts whose company matches, ignoring case.
func (s *Store) FindContactsByCompany(ctx context.Context, company string) ([]models.Contact, error) {
	return s.findBy(ctx, "LOWER(company) = ?", strings.ToLower(strings.TrimSpace(company)))
}

func (s *Store) findBy(ctx context.Context, cond string, arg string) ([]models.Contact, error) {
	if arg == "" {
		return nil, nil
	}

	rows, err := s.query(ctx, s.db, `SELECT `+contactColumns+` FROM contacts WHERE `+cond, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// CountByStatus returns the number of contacts per status.
func (s *Store) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.query(ctx, s.db, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
