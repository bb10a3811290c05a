// Package sheets defines the outbound ports for the payment export target.
package sheets

import (
	"context"
	"time"

	"kotizy/internal/core"
)

// PaymentRow is one exported payment as it appears in the spreadsheet.
type PaymentRow struct {
	PaymentID   string
	MemberName  string
	Year        int
	Amount      core.Money
	PaymentDate time.Time
	Status      core.ContributionStatus
}

// LedgerWriter appends payment rows to an export target.
type LedgerWriter interface {
	AppendPayment(ctx context.Context, row PaymentRow) (rowRef string, err error)
}
