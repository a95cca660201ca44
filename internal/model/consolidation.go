package model

import "time"

// ConsolidationStatus is the lifecycle of a loan consolidation request.
type ConsolidationStatus string

// Consolidation statuses in order. The last three are terminal.
const (
	ConsolidationPendingDocuments  ConsolidationStatus = "pending_documents"
	ConsolidationDocumentsReceived ConsolidationStatus = "documents_received"
	ConsolidationSentToAdvisor     ConsolidationStatus = "sent_to_advisor"
	ConsolidationAdvisorReviewing  ConsolidationStatus = "advisor_reviewing"
	ConsolidationOfferSent         ConsolidationStatus = "offer_sent"
	ConsolidationAccepted          ConsolidationStatus = "accepted"
	ConsolidationRejected          ConsolidationStatus = "rejected"
	ConsolidationCancelled         ConsolidationStatus = "cancelled"
)

var consolidationNext = map[ConsolidationStatus]ConsolidationStatus{
	ConsolidationPendingDocuments:  ConsolidationDocumentsReceived,
	ConsolidationDocumentsReceived: ConsolidationSentToAdvisor,
	ConsolidationSentToAdvisor:     ConsolidationAdvisorReviewing,
	ConsolidationAdvisorReviewing:  ConsolidationOfferSent,
}

// Valid reports whether s is a known status.
func (s ConsolidationStatus) Valid() bool {
	switch s {
	case ConsolidationAccepted, ConsolidationRejected, ConsolidationCancelled, ConsolidationOfferSent:
		return true
	}
	_, ok := consolidationNext[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s ConsolidationStatus) Terminal() bool {
	return s == ConsolidationAccepted || s == ConsolidationRejected || s == ConsolidationCancelled
}

// CanTransition reports whether the request may move from s to next.
// Transitions only go forward one step; an offer resolves to accepted or
// rejected; any open request may be cancelled.
func (s ConsolidationStatus) CanTransition(next ConsolidationStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == ConsolidationCancelled {
		return true
	}
	if s == ConsolidationOfferSent {
		return next == ConsolidationAccepted || next == ConsolidationRejected
	}
	return consolidationNext[s] == next
}

// ConsolidationRequest asks an advisor to consolidate some of the user's loans.
type ConsolidationRequest struct {
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Status    ConsolidationStatus `json:"status"`
	Notes     string              `json:"notes,omitempty"`
	LoanIDs   []string            `json:"loan_ids"`
	Active    bool                `json:"active"`
}
