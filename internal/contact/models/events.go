package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed identity change.
type EventType string

const (
	EventPrimaryCreated   EventType = "contact.primary_created"
	EventSecondaryCreated EventType = "contact.secondary_created"
	EventMerged           EventType = "contact.merged"
)

// Event is published after a consolidation mutates the store.
// Keep it transport-agnostic so publishers can fan out.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Type             EventType `json:"type"`
	PrimaryContactID int64     `json:"primaryContactId"`
	// ContactID is the newly created row for create events.
	ContactID int64 `json:"contactId,omitempty"`
	// DemotedContactIDs lists former primaries for merge events.
	DemotedContactIDs []int64   `json:"demotedContactIds,omitempty"`
	RowsRelinked      int64     `json:"rowsRelinked,omitempty"`
	RequestID         string    `json:"requestId,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}
