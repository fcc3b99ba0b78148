package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"identify/internal/contact/models"
)

// IdentifyRequest is the POST /identify body. Both fields are optional at
// the JSON level; Validate enforces that at least one is present.
type IdentifyRequest struct {
	Email       *string     `json:"email"`
	PhoneNumber PhoneNumber `json:"phoneNumber"`
}

// PhoneNumber accepts a JSON string, a JSON number or null. Numbers keep
// their decimal form: 123456 becomes "123456".
type PhoneNumber struct {
	Value *string
}

func (p *PhoneNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		p.Value = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		p.Value = &s
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("phoneNumber must be a string or a number")
	}
	s := formatNumber(n)
	p.Value = &s
	return nil
}

// formatNumber keeps integer literals verbatim and prints other numbers in
// their shortest plain decimal form (1.5e3 becomes "1500").
func formatNumber(n json.Number) string {
	lit := n.String()
	if !strings.ContainsAny(lit, ".eE") {
		return lit
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return lit
}

// ToModel returns the normalized service request.
func (r *IdentifyRequest) ToModel() *models.ConsolidateRequest {
	req := &models.ConsolidateRequest{
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber.Value,
	}
	req.Normalize()
	return req
}

func (r *IdentifyRequest) Validate() error {
	return r.ToModel().Validate()
}
