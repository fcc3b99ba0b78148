package service

import (
	"context"
	"errors"

	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
	"identify/pkg/platform/sentinel"
	pstrings "identify/pkg/platform/strings"
)

// aggregate reloads the primary and its linked rows and builds the view.
// The primary's own values come first; linked values follow oldest first
// with repeats dropped.
func (s *Service) aggregate(ctx context.Context, primaryID int64) (view *models.ConsolidatedContact, err error) {
	ctx, span := s.tracer.Start(ctx, "contact.aggregate")
	defer func() { endSpan(span, err) }()

	primary, err := s.store.FindByID(ctx, primaryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "primary contact vanished during consolidation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload primary contact")
	}
	linked, err := s.store.FindLinked(ctx, primary.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load linked contacts")
	}
	return buildView(primary, linked), nil
}

func buildView(primary *models.Contact, linked []*models.Contact) *models.ConsolidatedContact {
	emails := make([]*string, 0, len(linked)+1)
	phones := make([]*string, 0, len(linked)+1)
	emails = append(emails, primary.Email)
	phones = append(phones, primary.PhoneNumber)

	secondaryIDs := make([]int64, 0, len(linked))
	for _, c := range linked {
		emails = append(emails, c.Email)
		phones = append(phones, c.PhoneNumber)
		if !c.IsPrimary() {
			secondaryIDs = append(secondaryIDs, c.ID)
		}
	}

	return &models.ConsolidatedContact{
		PrimaryContactID:    primary.ID,
		Emails:              pstrings.DedupeValues(emails),
		PhoneNumbers:        pstrings.DedupeValues(phones),
		SecondaryContactIDs: secondaryIDs,
	}
}
