package models

import (
	"cmp"
	"slices"
	"time"

	dErrors "identify/pkg/domain-errors"
	pstrings "identify/pkg/platform/strings"
)

// LinkPrecedence marks a contact as the canonical identity or an alias of one.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

// Contact is one submitted set of contact attributes.
//
// Invariants:
//   - At least one of Email and PhoneNumber is non-nil
//   - LinkedID is nil iff LinkPrecedence is primary
//   - LinkedID never references the contact itself and always names a primary
//   - CreatedAt is immutable and orders primacy (oldest wins)
//   - A primary may be demoted; nothing promotes a secondary
type Contact struct {
	ID             int64          `json:"id"`
	Email          *string        `json:"email"`
	PhoneNumber    *string        `json:"phoneNumber"`
	LinkedID       *int64         `json:"linkedId"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NewPrimary builds an unsaved primary contact. The store assigns the ID.
func NewPrimary(email, phoneNumber *string, now time.Time) (*Contact, error) {
	if email == nil && phoneNumber == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	return &Contact{
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkPrecedence: LinkPrecedencePrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSecondary builds an unsaved secondary contact linked to primary.
func NewSecondary(email, phoneNumber *string, primary *Contact, now time.Time) (*Contact, error) {
	if email == nil && phoneNumber == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	if primary == nil || !primary.IsPrimary() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secondary contact must link to a primary")
	}
	linkedID := primary.ID
	return &Contact{
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkedID:       &linkedID,
		LinkPrecedence: LinkPrecedenceSecondary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// DemoteTo relinks the contact under primaryID as a secondary.
// Stores apply the same transition in bulk; this is the single-row form.
func (c *Contact) DemoteTo(primaryID int64, now time.Time) error {
	if c.ID == primaryID {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact cannot link to itself")
	}
	c.LinkPrecedence = LinkPrecedenceSecondary
	c.LinkedID = &primaryID
	c.UpdatedAt = now
	return nil
}

// Matches reports whether the contact holds exactly the given email and phone.
func (c *Contact) Matches(email, phoneNumber *string) bool {
	return pstrings.Equal(c.Email, email) && pstrings.Equal(c.PhoneNumber, phoneNumber)
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	if c.Email != nil {
		v := *c.Email
		out.Email = &v
	}
	if c.PhoneNumber != nil {
		v := *c.PhoneNumber
		out.PhoneNumber = &v
	}
	if c.LinkedID != nil {
		v := *c.LinkedID
		out.LinkedID = &v
	}
	return &out
}

// CompareAge orders contacts oldest first: CreatedAt, then ID.
func CompareAge(a, b *Contact) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortByAge sorts contacts in place, oldest first.
func SortByAge(contacts []*Contact) {
	slices.SortStableFunc(contacts, CompareAge)
}

