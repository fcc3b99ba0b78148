package service

import (
	"context"

	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
)

// shouldCreateSecondary decides whether a request augments its single
// identity. Both identifiers must be present and no matched row may already
// hold the pair. A request whose values all belong to the candidate's
// identity already is a no-op, which keeps repeats idempotent after a merge.
// Values held only by another identity still count as new.
func shouldCreateSecondary(req *models.ConsolidateRequest, cl *cluster, candidates []*models.Contact) bool {
	return len(candidates) == 1 &&
		req.HasBoth() &&
		!cl.isExactDuplicate(req) &&
		!cl.heldBy(candidates[0], req)
}

func (s *Service) createPrimary(ctx context.Context, c *consolidation) error {
	contact, err := models.NewPrimary(c.req.Email, c.req.PhoneNumber, c.now)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, contact); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create primary contact")
	}
	c.primary = contact
	c.created = contact
	c.outcome = models.OutcomeCreatedPrimary
	return nil
}

func (s *Service) createSecondary(ctx context.Context, c *consolidation) error {
	contact, err := models.NewSecondary(c.req.Email, c.req.PhoneNumber, c.primary, c.now)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, contact); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create secondary contact")
	}
	c.created = contact
	c.outcome = models.OutcomeCreatedSecondary
	return nil
}
