package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds carried on the export queue.
const (
	KindPaymentRecorded        = "payment_recorded"
	KindContributionsGenerated = "contributions_generated"
)

// ExportMessage is the lightweight envelope on the export queue. It carries
// only identifiers; the worker fetches the full rows from the database.
type ExportMessage struct {
	Kind           string    `json:"kind"`
	PaymentID      string    `json:"payment_id,omitempty"`
	ContributionID string    `json:"contribution_id,omitempty"`
	AmountAriary   int64     `json:"amount_ariary,omitempty"`
	Year           int       `json:"year,omitempty"`
	Generated      int       `json:"generated,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewPaymentRecordedMessage builds the message published after a payment
// commit.
func NewPaymentRecordedMessage(paymentID, contributionID string, amountAriary int64) *ExportMessage {
	return &ExportMessage{
		Kind:           KindPaymentRecorded,
		PaymentID:      paymentID,
		ContributionID: contributionID,
		AmountAriary:   amountAriary,
		Timestamp:      time.Now(),
	}
}

// NewContributionsGeneratedMessage builds the message published after a
// yearly generation run.
func NewContributionsGeneratedMessage(year, generated int) *ExportMessage {
	return &ExportMessage{
		Kind:      KindContributionsGenerated,
		Year:      year,
		Generated: generated,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportMessageFromJSON creates a message from JSON bytes
func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
