package events

import (
	"context"
	"log/slog"

	"identify/internal/contact/models"
)

// LogPublisher records events in the service log. Used when no broker is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.Event) error {
	p.logger.InfoContext(ctx, "contact event",
		"event_id", event.ID,
		"event_type", event.Type,
		"primary_contact_id", event.PrimaryContactID,
		"contact_id", event.ContactID,
		"demoted_contact_ids", event.DemotedContactIDs,
		"rows_relinked", event.RowsRelinked,
		"request_id", event.RequestID,
	)
	return nil
}
