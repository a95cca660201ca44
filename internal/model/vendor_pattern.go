package model

import "time"

// VendorPattern is a learned (user, vendor) → category association.
type VendorPattern struct {
	LastUpdated       time.Time `json:"last_updated"`
	UserID            string    `json:"user_id"`
	Vendor            string    `json:"vendor"` // normalized
	Category          string    `json:"category"`
	Confidence        int       `json:"confidence"`
	ConfirmationCount int       `json:"confirmation_count"`
}

// Clamp bounds the confidence to [0, max] and reports whether it had to.
func (p *VendorPattern) Clamp(maxConfidence int) bool {
	switch {
	case p.Confidence < 0:
		p.Confidence = 0
		return true
	case p.Confidence > maxConfidence:
		p.Confidence = maxConfidence
		return true
	}
	return false
}
