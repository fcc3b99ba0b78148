package service

import (
	"context"
	"slices"

	"identify/internal/contact/models"
	dErrors "identify/pkg/domain-errors"
	pstrings "identify/pkg/platform/strings"
)

// cluster is what the resolver found for one request.
type cluster struct {
	// matched holds rows sharing a submitted email or phone, oldest first.
	matched []*models.Contact
	// component equals matched in one-hop mode. In transitive mode it is
	// every row reachable from matched through shared identifiers or links.
	component []*models.Contact
}

// isExactDuplicate reports whether a matched row already holds exactly the
// submitted email and phone.
func (c *cluster) isExactDuplicate(req *models.ConsolidateRequest) bool {
	return slices.ContainsFunc(c.matched, func(m *models.Contact) bool {
		return m.Matches(req.Email, req.PhoneNumber)
	})
}

// heldBy reports whether every submitted value already belongs to primary's
// identity: the primary itself or a matched row linked to it. Rows of other
// identities do not count.
func (c *cluster) heldBy(primary *models.Contact, req *models.ConsolidateRequest) bool {
	owned := func(m *models.Contact) bool {
		return m.ID == primary.ID || (m.LinkedID != nil && *m.LinkedID == primary.ID)
	}
	holds := func(value *string, field func(*models.Contact) *string) bool {
		if value == nil {
			return true
		}
		if pstrings.Equal(field(primary), value) {
			return true
		}
		return slices.ContainsFunc(c.matched, func(m *models.Contact) bool {
			return owned(m) && pstrings.Equal(field(m), value)
		})
	}
	return holds(req.Email, func(m *models.Contact) *string { return m.Email }) &&
		holds(req.PhoneNumber, func(m *models.Contact) *string { return m.PhoneNumber })
}

func (c *cluster) ids() []int64 {
	out := make([]int64, 0, len(c.component))
	for _, m := range c.component {
		out = append(out, m.ID)
	}
	return out
}

// resolveCluster finds rows whose email or phone equals a submitted value.
// Absent fields never become criteria.
func (s *Service) resolveCluster(ctx context.Context, req *models.ConsolidateRequest) (*cluster, error) {
	ctx, span := s.tracer.Start(ctx, "contact.resolve_cluster")
	var err error
	defer func() { endSpan(span, err) }()

	matched, err := s.store.FindMatching(ctx, req.Match())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find matching contacts")
	}
	cl := &cluster{matched: matched, component: matched}
	if s.mode != ResolutionTransitive || len(matched) == 0 {
		return cl, nil
	}

	cl.component, err = s.expand(ctx, matched)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// expand walks shared emails, shared phones and links until no new row
// appears. Each round issues at most three batched queries.
func (s *Service) expand(ctx context.Context, seed []*models.Contact) ([]*models.Contact, error) {
	seen := make(map[int64]*models.Contact, len(seed))
	frontier := make([]*models.Contact, 0, len(seed))
	for _, c := range seed {
		seen[c.ID] = c
		frontier = append(frontier, c)
	}
	emails := make(map[string]struct{})
	phones := make(map[string]struct{})

	for len(frontier) > 0 {
		var (
			match      models.Match
			primaryIDs []int64
			parentIDs  []int64
		)
		for _, c := range frontier {
			if c.Email != nil {
				if _, ok := emails[*c.Email]; !ok {
					emails[*c.Email] = struct{}{}
					match.Emails = append(match.Emails, *c.Email)
				}
			}
			if c.PhoneNumber != nil {
				if _, ok := phones[*c.PhoneNumber]; !ok {
					phones[*c.PhoneNumber] = struct{}{}
					match.PhoneNumbers = append(match.PhoneNumbers, *c.PhoneNumber)
				}
			}
			if c.IsPrimary() {
				primaryIDs = append(primaryIDs, c.ID)
			} else if c.LinkedID != nil {
				if _, ok := seen[*c.LinkedID]; !ok {
					parentIDs = append(parentIDs, *c.LinkedID)
				}
			}
		}

		var found []*models.Contact
		byIdentifier, err := s.store.FindMatching(ctx, match)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expand contact cluster")
		}
		found = append(found, byIdentifier...)
		linked, err := s.store.FindLinked(ctx, primaryIDs...)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expand contact cluster")
		}
		found = append(found, linked...)
		parents, err := s.store.FindByIDs(ctx, parentIDs)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expand contact cluster")
		}
		found = append(found, parents...)

		frontier = frontier[:0]
		for _, c := range found {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = c
			frontier = append(frontier, c)
		}
	}

	component := make([]*models.Contact, 0, len(seen))
	for _, c := range seen {
		component = append(component, c)
	}
	models.SortByAge(component)
	return component, nil
}
