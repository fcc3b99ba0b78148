package store

import (
	"context"
	"database/sql"
	"fmt"
)

// contactsSchema mirrors the model invariants as table constraints so a
// broken writer fails loudly instead of corrupting identity links.
const contactsSchema = `
CREATE TABLE IF NOT EXISTS contacts (
    id              BIGSERIAL PRIMARY KEY,
    phone_number    TEXT,
    email           TEXT,
    linked_id       BIGINT REFERENCES contacts(id),
    link_precedence TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT contacts_has_identifier
        CHECK (email IS NOT NULL OR phone_number IS NOT NULL),
    CONSTRAINT contacts_link_precedence_valid
        CHECK (link_precedence IN ('primary', 'secondary')),
    CONSTRAINT contacts_link_shape
        CHECK (
            (link_precedence = 'primary' AND linked_id IS NULL) OR
            (link_precedence = 'secondary' AND linked_id IS NOT NULL AND linked_id <> id)
        )
);

CREATE INDEX IF NOT EXISTS contacts_email_idx ON contacts (email) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS contacts_phone_number_idx ON contacts (phone_number) WHERE phone_number IS NOT NULL;
CREATE INDEX IF NOT EXISTS contacts_linked_id_idx ON contacts (linked_id) WHERE linked_id IS NOT NULL;
`

// Migrate creates the contacts table and its indexes if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, contactsSchema); err != nil {
		return fmt.Errorf("migrate contacts schema: %w", err)
	}
	return nil
}
