// Package core holds the domain model of the dues ledger: members,
// contributions, payments, the fee rule and the reporting aggregates.
//
// This file is the fee calculator: a pure mapping from a member's status and
// dependent count to the yearly amount due.
package core

// Yearly dues in ariary.
const (
	StudentBaseFee = 5000
	WorkerBaseFee  = 10000
	DependentFee   = 5000
)

// ComputeDue returns the yearly amount a member owes: a base fee by status
// plus a fixed fee per dependent. A negative childrenCount is a contract
// violation by the caller, not a valid input.
func ComputeDue(status MemberStatus, childrenCount int) (Money, error) {
	if err := status.Validate(); err != nil {
		return Money{}, err
	}
	if childrenCount < 0 {
		return Money{}, ErrNegativeChildren
	}

	base := int64(WorkerBaseFee)
	if status == Student {
		base = StudentBaseFee
	}
	return Money{Ariary: base + int64(childrenCount)*DependentFee}, nil
}
