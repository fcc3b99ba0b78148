package handler

import "identify/internal/contact/models"

// IdentifyResponse is the POST /identify success body.
type IdentifyResponse struct {
	Contact ContactView `json:"contact"`
}

// ContactView is the consolidated identity. Lists encode as [] when empty.
type ContactView struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

func toIdentifyResponse(c *models.ConsolidatedContact) *IdentifyResponse {
	view := ContactView{
		PrimaryContactID:    c.PrimaryContactID,
		Emails:              c.Emails,
		PhoneNumbers:        c.PhoneNumbers,
		SecondaryContactIDs: c.SecondaryContactIDs,
	}
	if view.Emails == nil {
		view.Emails = []string{}
	}
	if view.PhoneNumbers == nil {
		view.PhoneNumbers = []string{}
	}
	if view.SecondaryContactIDs == nil {
		view.SecondaryContactIDs = []int64{}
	}
	return &IdentifyResponse{Contact: view}
}
