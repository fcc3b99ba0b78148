package service

import (
	"context"

	"github.com/google/uuid"

	"identify/internal/contact/models"
	"identify/pkg/requestcontext"
)

// publish announces a committed change. Delivery is best effort: the state
// is already committed, so failures are logged and counted only.
func (s *Service) publish(ctx context.Context, c *consolidation) {
	if s.publisher == nil {
		return
	}
	event, ok := eventFor(ctx, c)
	if !ok {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementEventPublishFailure()
		}
		s.logger.WarnContext(ctx, "failed to publish contact event",
			"request_id", event.RequestID,
			"event_type", event.Type,
			"primary_contact_id", event.PrimaryContactID,
			"error", err,
		)
	}
}

func eventFor(ctx context.Context, c *consolidation) (models.Event, bool) {
	event := models.Event{
		ID:               uuid.New(),
		PrimaryContactID: c.view.PrimaryContactID,
		RequestID:        requestcontext.RequestID(ctx),
		OccurredAt:       c.now,
	}
	switch c.outcome {
	case models.OutcomeCreatedPrimary:
		event.Type = models.EventPrimaryCreated
		event.ContactID = c.created.ID
	case models.OutcomeCreatedSecondary:
		event.Type = models.EventSecondaryCreated
		event.ContactID = c.created.ID
	case models.OutcomeMerged:
		event.Type = models.EventMerged
		event.DemotedContactIDs = c.demoted
		event.RowsRelinked = c.relinked
	default:
		return models.Event{}, false
	}
	return event, true
}
