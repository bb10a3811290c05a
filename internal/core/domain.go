package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Student MemberStatus = "STUDENT"
	Worker  MemberStatus = "WORKER"

	Male   Gender = "MALE"
	Female Gender = "FEMALE"

	Paid    ContributionStatus = "PAID"
	Partial ContributionStatus = "PARTIAL"
	Overdue ContributionStatus = "OVERDUE"
	Pending ContributionStatus = "PENDING"

	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentPending   PaymentStatus = "PENDING"
)

// MinYear is the oldest fiscal year the ledger accepts.
const MinYear = 2000

// MaxYearAhead bounds how far into the future a year can be generated.
const MaxYearAhead = 5

type (
	MemberStatus       string
	Gender             string
	ContributionStatus string
	PaymentStatus      string

	// Money is an amount in Malagasy ariary. The ariary has no circulating
	// subunit, so whole units are stored.
	Money struct {
		Ariary int64
	}

	// Member is one person in the roster. A member with a nil ParentID is a
	// head of family; otherwise it is a dependent of the referenced member.
	Member struct {
		ID             uuid.UUID
		SequenceNumber int64
		FirstName      string
		LastName       string
		BirthDate      time.Time
		Gender         Gender
		PhoneNumber    string
		Status         MemberStatus
		Active         bool
		ImageURL       string
		DistrictID     int64
		DistrictName   string
		TributeID      int64
		TributeName    string
		ParentID       *uuid.UUID
		ParentName     string
		// ChildrenCount is derived from the roster (members whose ParentID
		// references this member). It is never written directly.
		ChildrenCount int
		CreatedAt     time.Time
	}

	// Contribution is the ledger entry for one (member, year) pair. At most
	// one may exist per pair. TotalPaid, Remaining and Status are derived
	// from the attached payments; Recompute keeps them consistent.
	Contribution struct {
		ID         uuid.UUID
		MemberID   uuid.UUID
		MemberName string
		Year       int
		Amount     Money
		TotalPaid  Money
		Remaining  Money
		Status     ContributionStatus
		DueDate    time.Time
		Payments   []Payment
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// Payment is a single disbursement applied to a contribution. A payment
	// belongs to exactly one contribution.
	Payment struct {
		ID             uuid.UUID
		ContributionID uuid.UUID
		Amount         Money
		PaymentDate    time.Time
		Status         PaymentStatus
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrEmptyName        = errors.New("empty name")
	ErrNegativeChildren = errors.New("negative children count")
	ErrOverpayment      = errors.New("payment exceeds remaining balance")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermission       = errors.New("permission denied")
)

func (m Money) Validate() error {
	if m.Ariary <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(other Money) Money { return Money{Ariary: m.Ariary + other.Ariary} }

func (s MemberStatus) Validate() error {
	switch s {
	case Student, Worker:
		return nil
	}
	return ErrInvalidStatus
}

func (s ContributionStatus) Validate() error {
	switch s {
	case Paid, Partial, Overdue, Pending:
		return nil
	}
	return ErrInvalidStatus
}

func (s PaymentStatus) Validate() error {
	switch s {
	case PaymentCompleted, PaymentPending:
		return nil
	}
	return ErrInvalidStatus
}

// ValidateYear checks the fiscal-year bound for ledger operations.
func ValidateYear(year int, now time.Time) error {
	if year < MinYear || year > now.Year()+MaxYearAhead {
		return ErrInvalidYear
	}
	return nil
}

// DueDateFor returns the due date policy for a fiscal year: the last day of
// that calendar year.
func DueDateFor(year int) time.Time {
	return time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
}

// DisplayName returns the member's full name as shown on contributions.
func (m Member) DisplayName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" || strings.TrimSpace(m.LastName) == "" {
		return ErrEmptyName
	}
	if err := m.Status.Validate(); err != nil {
		return err
	}
	if m.ChildrenCount < 0 {
		return ErrNegativeChildren
	}
	return nil
}

// DeriveStatus evaluates the settlement status of a contribution, in
// priority order: PAID, PARTIAL, OVERDUE, PENDING.
func DeriveStatus(totalPaid, remaining Money, dueDate, now time.Time) ContributionStatus {
	switch {
	case remaining.Ariary == 0:
		return Paid
	case totalPaid.Ariary > 0:
		return Partial
	case now.After(dueDate):
		return Overdue
	default:
		return Pending
	}
}

// Recompute re-derives TotalPaid, Remaining and Status from the attached
// payments. It must be called after any payment mutation.
func (c *Contribution) Recompute(now time.Time) {
	var total int64
	for _, p := range c.Payments {
		total += p.Amount.Ariary
	}
	c.TotalPaid = Money{Ariary: total}
	remaining := c.Amount.Ariary - total
	if remaining < 0 {
		remaining = 0
	}
	c.Remaining = Money{Ariary: remaining}
	c.Status = DeriveStatus(c.TotalPaid, c.Remaining, c.DueDate, now)
}

func (c Contribution) Validate() error {
	if c.MemberID == uuid.Nil {
		return ErrNotFound
	}
	if err := ValidateYear(c.Year, time.Now()); err != nil {
		return err
	}
	if c.Amount.Ariary < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Payment) Validate() error {
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if err := p.Status.Validate(); err != nil {
		return err
	}
	if p.PaymentDate.IsZero() {
		return errors.New("payment date cannot be zero")
	}
	return nil
}
