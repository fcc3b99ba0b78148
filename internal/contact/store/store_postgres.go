package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"identify/internal/contact/models"
	"identify/pkg/platform/sentinel"
	txcontext "identify/pkg/platform/tx"
)

const contactColumns = `id, phone_number, email, linked_id, link_precedence, created_at, updated_at`

// PostgresStore persists contacts in PostgreSQL. When the context carries a
// transaction (see PostgresTx) every statement runs inside it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// FindMatching returns contacts whose email or phone is in match, oldest first.
// NULL columns never satisfy = ANY(...), so absent identifiers match nothing.
func (s *PostgresStore) FindMatching(ctx context.Context, match models.Match) ([]*models.Contact, error) {
	if match.IsEmpty() {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE email = ANY($1) OR phone_number = ANY($2)
		ORDER BY created_at ASC, id ASC`
	contacts, err := s.queryContacts(ctx, query, pq.Array(nonNil(match.Emails)), pq.Array(nonNil(match.PhoneNumbers)))
	if err != nil {
		return nil, fmt.Errorf("find matching contacts: %w", err)
	}
	return contacts, nil
}

// FindByID returns the contact or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact by id: %w", err)
	}
	return c, nil
}

// FindByIDs returns the contacts that exist among ids, oldest first.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []int64) ([]*models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE id = ANY($1)
		ORDER BY created_at ASC, id ASC`
	contacts, err := s.queryContacts(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find contacts by ids: %w", err)
	}
	return contacts, nil
}

// FindLinked returns contacts linked to any of primaryIDs, oldest first.
func (s *PostgresStore) FindLinked(ctx context.Context, primaryIDs ...int64) ([]*models.Contact, error) {
	if len(primaryIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE linked_id = ANY($1)
		ORDER BY created_at ASC, id ASC`
	contacts, err := s.queryContacts(ctx, query, pq.Array(primaryIDs))
	if err != nil {
		return nil, fmt.Errorf("find linked contacts: %w", err)
	}
	return contacts, nil
}

// Create inserts contact and sets its ID from the sequence.
func (s *PostgresStore) Create(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	query := `
		INSERT INTO contacts (phone_number, email, linked_id, link_precedence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.querier(ctx).QueryRowContext(ctx, query,
		contact.PhoneNumber,
		contact.Email,
		contact.LinkedID,
		string(contact.LinkPrecedence),
		contact.CreatedAt,
		contact.UpdatedAt,
	).Scan(&contact.ID)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// Relink demotes every row in scope except primaryID to a secondary of
// primaryID in a single statement. Rows already linked to primaryID are skipped.
func (s *PostgresStore) Relink(ctx context.Context, scope models.RelinkScope, primaryID int64, now time.Time) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}

	args := []any{primaryID, now}
	var clauses []string
	addClause := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}
	if len(scope.Emails) > 0 {
		addClause("email = ANY($%d)", pq.Array(scope.Emails))
	}
	if len(scope.PhoneNumbers) > 0 {
		addClause("phone_number = ANY($%d)", pq.Array(scope.PhoneNumbers))
	}
	if len(scope.LinkedTo) > 0 {
		addClause("linked_id = ANY($%d)", pq.Array(scope.LinkedTo))
	}
	if len(scope.IDs) > 0 {
		addClause("id = ANY($%d)", pq.Array(scope.IDs))
	}

	query := `
		UPDATE contacts
		SET link_precedence = 'secondary', linked_id = $1, updated_at = $2
		WHERE id <> $1
		  AND linked_id IS DISTINCT FROM $1
		  AND (` + strings.Join(clauses, " OR ") + `)
	`
	res, err := s.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("relink contacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relink contacts rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of stored contacts.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) queryContacts(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c          models.Contact
		phone      sql.NullString
		email      sql.NullString
		linkedID   sql.NullInt64
		precedence string
	)
	if err := row.Scan(&c.ID, &phone, &email, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	return &c, nil
}

// nonNil keeps pq.Array from encoding a nil slice as NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
