package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published by the engine. The worker fans these out to the
// configured notification channels.
const (
	KindDonationRecorded = "donation.recorded"
	KindProposalCreated  = "proposal.created"
)

// EventMessage is the envelope for engine events on the wire. Payloads are
// small and denormalized so the worker never needs a database connection.
type EventMessage struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// donation.recorded
	AmountCents int64  `json:"amount_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	DonorHandle string `json:"donor_handle,omitempty"`
	Message     string `json:"message,omitempty"`

	// proposal.created
	ProposalID    int64  `json:"proposal_id,omitempty"`
	ProposalTitle string `json:"proposal_title,omitempty"`
	AuthorHandle  string `json:"author_handle,omitempty"`
}

func NewDonationEvent(amountCents int64, currency, donorHandle, message string) *EventMessage {
	return &EventMessage{
		Kind:        KindDonationRecorded,
		Timestamp:   time.Now().UTC(),
		AmountCents: amountCents,
		Currency:    currency,
		DonorHandle: donorHandle,
		Message:     message,
	}
}

func NewProposalEvent(proposalID int64, title, authorHandle string) *EventMessage {
	return &EventMessage{
		Kind:          KindProposalCreated,
		Timestamp:     time.Now().UTC(),
		ProposalID:    proposalID,
		ProposalTitle: title,
		AuthorHandle:  authorHandle,
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
