package amqp

import (
	"testing"
	"time"
)

func TestEventMessageRoundtrip(t *testing.T) {
	t.Run("donation", func(t *testing.T) {
		msg := NewDonationEvent(5000, "BRL", "@donor_x", "boa sorte")
		if msg.Kind != KindDonationRecorded {
			t.Fatalf("kind = %s", msg.Kind)
		}

		raw, err := msg.ToJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := EventMessageFromJSON(raw)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.AmountCents != 5000 || got.Currency != "BRL" || got.DonorHandle != "@donor_x" || got.Message != "boa sorte" {
			t.Errorf("donation fields did not round-trip: %+v", got)
		}
	})

	t.Run("proposal", func(t *testing.T) {
		msg := NewProposalEvent(7, "Fund the meetup", "@author")
		raw, err := msg.ToJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := EventMessageFromJSON(raw)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Kind != KindProposalCreated || got.ProposalID != 7 || got.ProposalTitle != "Fund the meetup" {
			t.Errorf("proposal fields did not round-trip: %+v", got)
		}
	})

	t.Run("timestamp set", func(t *testing.T) {
		msg := NewDonationEvent(1, "BRL", "", "")
		if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Minute {
			t.Errorf("timestamp not set sensibly: %v", msg.Timestamp)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := EventMessageFromJSON([]byte("{nope")); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})
}
