package models

// ConsolidatedContact is the merged view of one identity.
// Slices are never nil.
type ConsolidatedContact struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}

// Outcome records which write path a consolidation took.
type Outcome string

const (
	OutcomeCreatedPrimary   Outcome = "created_primary"
	OutcomeCreatedSecondary Outcome = "created_secondary"
	OutcomeMerged           Outcome = "merged"
	OutcomeUnchanged        Outcome = "unchanged"
)

// Result is what Consolidate returns: the view plus the path taken.
type Result struct {
	Contact *ConsolidatedContact
	Outcome Outcome
}
