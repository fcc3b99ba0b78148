package models

import (
	"slices"

	dErrors "identify/pkg/domain-errors"
	pstrings "identify/pkg/platform/strings"
)

// ErrIdentifierRequired is the message returned when neither identifier is supplied.
const ErrIdentifierRequired = "Either email or phoneNumber is required"

// ConsolidateRequest carries the submitted identifiers. Either may be nil.
type ConsolidateRequest struct {
	Email       *string
	PhoneNumber *string
}

// Normalize turns blank values into nil. Other values are matched and
// stored exactly as submitted.
func (r *ConsolidateRequest) Normalize() {
	r.Email = pstrings.BlankToNil(r.Email)
	r.PhoneNumber = pstrings.BlankToNil(r.PhoneNumber)
}

// Validate enforces the presence rule. Call Normalize first.
func (r *ConsolidateRequest) Validate() error {
	if r == nil || (r.Email == nil && r.PhoneNumber == nil) {
		return dErrors.New(dErrors.CodeValidation, ErrIdentifierRequired)
	}
	return nil
}

// HasBoth reports whether both identifiers were submitted.
func (r *ConsolidateRequest) HasBoth() bool {
	return r.Email != nil && r.PhoneNumber != nil
}

// Match builds the disjunctive lookup filter from the non-nil fields only.
func (r *ConsolidateRequest) Match() Match {
	var m Match
	if r.Email != nil {
		m.Emails = []string{*r.Email}
	}
	if r.PhoneNumber != nil {
		m.PhoneNumbers = []string{*r.PhoneNumber}
	}
	return m
}

// LockKeys returns the identity keys that serialize concurrent requests, sorted.
func (r *ConsolidateRequest) LockKeys() []string {
	keys := make([]string, 0, 2)
	if r.Email != nil {
		keys = append(keys, "email:"+*r.Email)
	}
	if r.PhoneNumber != nil {
		keys = append(keys, "phone:"+*r.PhoneNumber)
	}
	slices.Sort(keys)
	return keys
}

// Match selects contacts whose email is in Emails OR whose phone is in PhoneNumbers.
// Empty lists contribute no criterion; an empty Match selects nothing.
type Match struct {
	Emails       []string
	PhoneNumbers []string
}

func (m Match) IsEmpty() bool {
	return len(m.Emails) == 0 && len(m.PhoneNumbers) == 0
}

// Selects reports whether c satisfies the filter.
func (m Match) Selects(c *Contact) bool {
	if c.Email != nil && slices.Contains(m.Emails, *c.Email) {
		return true
	}
	return c.PhoneNumber != nil && slices.Contains(m.PhoneNumbers, *c.PhoneNumber)
}

// RelinkScope selects the rows a merge rewrites: anything matched by the
// identifiers, anything linked to a demoted primary, and the demoted primaries.
type RelinkScope struct {
	Match
	LinkedTo []int64
	IDs      []int64
}

func (s RelinkScope) IsEmpty() bool {
	return s.Match.IsEmpty() && len(s.LinkedTo) == 0 && len(s.IDs) == 0
}

// Selects reports whether c falls inside the scope.
func (s RelinkScope) Selects(c *Contact) bool {
	if s.Match.Selects(c) || slices.Contains(s.IDs, c.ID) {
		return true
	}
	return c.LinkedID != nil && slices.Contains(s.LinkedTo, *c.LinkedID)
}
