package service

import (
	"context"
	"errors"
	"fmt"

	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
	"identify/pkg/platform/sentinel"
)

// selectPrimaries returns the candidate primaries for a cluster, oldest first.
//
// Primaries present in the cluster win. A cluster holding only secondaries
// resolves through the oldest one's link. An empty cluster has no candidate.
func (s *Service) selectPrimaries(ctx context.Context, cl *cluster) (candidates []*models.Contact, err error) {
	ctx, span := s.tracer.Start(ctx, "contact.select_primaries")
	defer func() { endSpan(span, err) }()

	for _, c := range cl.component {
		if c.IsPrimary() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) > 0 || len(cl.matched) == 0 {
		return candidates, nil
	}

	oldest := cl.matched[0]
	if oldest.LinkedID == nil {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("secondary contact %d has no link", oldest.ID))
	}
	primary, err := s.store.FindByID(ctx, *oldest.LinkedID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal,
				fmt.Sprintf("secondary contact %d links to a missing primary", oldest.ID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load linked primary")
	}
	if !primary.IsPrimary() {
		return nil, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("secondary contact %d links to non-primary %d", oldest.ID, primary.ID))
	}
	return []*models.Contact{primary}, nil
}
