package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
)

// merge keeps the oldest candidate as the canonical primary and demotes the
// rest. One Relink call rewrites the demoted primaries, everything linked to
// them and every row matched by the submitted identifiers. No row is created.
func (s *Service) merge(ctx context.Context, c *consolidation, candidates []*models.Contact) (err error) {
	ctx, span := s.tracer.Start(ctx, "contact.merge")
	defer func() { endSpan(span, err) }()

	canonical := candidates[0]
	demoted := make([]int64, 0, len(candidates)-1)
	for _, p := range candidates[1:] {
		demoted = append(demoted, p.ID)
	}

	scope := models.RelinkScope{
		Match:    c.req.Match(),
		LinkedTo: demoted,
		IDs:      demoted,
	}
	if s.mode == ResolutionTransitive {
		scope.IDs = c.cluster.ids()
	}

	n, err := s.store.Relink(ctx, scope, canonical.ID, c.now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to merge contacts")
	}
	span.SetAttributes(
		attribute.Int64("canonical_contact_id", canonical.ID),
		attribute.Int("demoted", len(demoted)),
		attribute.Int64("rows_relinked", n),
	)

	c.primary = canonical
	c.demoted = demoted
	c.relinked = n
	c.outcome = models.OutcomeMerged
	return nil
}
