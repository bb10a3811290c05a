// Package ledger orchestrates the yearly dues ledger: contribution
// generation, payment recording and the derived totals that must stay
// consistent with them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kotizy/internal/core"
	"kotizy/internal/storage"
)

// generateWorkers bounds concurrent contribution inserts during a yearly run.
const generateWorkers = 8

// Publisher pushes ledger events to the message broker. A nil Publisher
// disables publishing without disabling the ledger.
type Publisher interface {
	PublishPaymentRecorded(ctx context.Context, paymentID, contributionID string, amountAriary int64) error
	PublishContributionsGenerated(ctx context.Context, year, generated int) error
}

// Service orchestrates ledger operations across SQLite and AMQP.
type Service struct {
	store *storage.SQLiteStore
	pub   Publisher

	allowOverpayment bool
	locks            *lockTable
	now              func() time.Time
}

func NewService(store *storage.SQLiteStore, pub Publisher, allowOverpayment bool) *Service {
	return &Service{
		store:            store,
		pub:              pub,
		allowOverpayment: allowOverpayment,
		locks:            newLockTable(),
		now:              time.Now,
	}
}

// GenerationFailure records one member whose contribution could not be
// generated during a yearly run.
type GenerationFailure struct {
	MemberID uuid.UUID
	Err      error
}

// GenerationResult is the outcome of a yearly run plus the resulting year
// snapshot. Failures do not abort the run; every member is attempted.
type GenerationResult struct {
	Year          int
	Generated     int
	Skipped       int
	Failures      []GenerationFailure
	Contributions []core.Contribution
}

// GenerateForYear creates the year's contribution for every active member
// that does not have one yet. Reruns are safe: existing contributions are
// left untouched and counted as skipped.
func (s *Service) GenerateForYear(ctx context.Context, year int) (GenerationResult, error) {
	now := s.now()
	if err := core.ValidateYear(year, now); err != nil {
		return GenerationResult{}, err
	}

	members, err := s.store.ListMembers(ctx, true)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("list members: %w", err)
	}

	result := GenerationResult{Year: year}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(generateWorkers)
	for _, m := range members {
		g.Go(func() error {
			_, created, err := s.ensureContribution(ctx, m, year, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, GenerationFailure{MemberID: m.ID, Err: err})
			case created:
				result.Generated++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	g.Wait()

	result.Contributions, err = s.store.ListContributionsByYear(ctx, year)
	if err != nil {
		return result, fmt.Errorf("list contributions: %w", err)
	}

	slog.InfoContext(ctx, "Yearly contribution run completed",
		"year", year,
		"generated", result.Generated,
		"skipped", result.Skipped,
		"failed", len(result.Failures))

	if s.pub != nil && result.Generated > 0 {
		if err := s.pub.PublishContributionsGenerated(ctx, year, result.Generated); err != nil {
			slog.ErrorContext(ctx, "Failed to publish generation message",
				"year", year, "error", err)
			// Contributions are committed, the message is best effort.
		}
	}

	return result, nil
}

// EnsureForMember creates the member's contribution for the year if missing
// and returns the stored row either way.
func (s *Service) EnsureForMember(ctx context.Context, memberID uuid.UUID, year int) (core.Contribution, bool, error) {
	now := s.now()
	if err := core.ValidateYear(year, now); err != nil {
		return core.Contribution{}, false, err
	}
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return core.Contribution{}, false, err
	}
	c, created, err := s.ensureContribution(ctx, m, year, now)
	return c, created, err
}

func (s *Service) ensureContribution(ctx context.Context, m core.Member, year int, now time.Time) (core.Contribution, bool, error) {
	due, err := core.ComputeDue(m.Status, m.ChildrenCount)
	if err != nil {
		return core.Contribution{}, false, err
	}

	dueDate := core.DueDateFor(year)
	c := core.Contribution{
		ID:        uuid.New(),
		MemberID:  m.ID,
		Year:      year,
		Amount:    due,
		Remaining: due,
		Status:    core.DeriveStatus(core.Money{}, due, dueDate, now),
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.store.EnsureContribution(ctx, c)
}

// GetContribution returns the contribution with its payment history.
func (s *Service) GetContribution(ctx context.Context, id uuid.UUID) (core.Contribution, error) {
	return s.store.GetContribution(ctx, id)
}

// GetByMemberAndYear returns the member's contribution for the year.
func (s *Service) GetByMemberAndYear(ctx context.Context, memberID uuid.UUID, year int) (core.Contribution, error) {
	return s.store.GetContributionByMemberAndYear(ctx, memberID, year)
}

// ListYear returns the year's contributions, optionally filtered by a
// case-insensitive member name or id query.
func (s *Service) ListYear(ctx context.Context, year int, query string) ([]core.Contribution, error) {
	snapshot, err := s.store.ListContributionsByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	return core.FilterContributions(snapshot, query), nil
}

// YearReport aggregates the year's collection progress.
func (s *Service) YearReport(ctx context.Context, year int) (core.YearReport, error) {
	snapshot, err := s.store.ListContributionsByYear(ctx, year)
	if err != nil {
		return core.YearReport{}, err
	}
	return core.BuildYearReport(year, snapshot), nil
}

// UpdateContributionParams carries a manual contribution correction. Nil
// fields are left unchanged.
type UpdateContributionParams struct {
	ID      uuid.UUID
	Amount  *core.Money
	DueDate *time.Time
	Status  *core.ContributionStatus
}

// UpdateContribution applies a manual correction and re-derives the totals.
// An explicit status that contradicts the derived one is rejected.
func (s *Service) UpdateContribution(ctx context.Context, p UpdateContributionParams) (core.Contribution, error) {
	unlock := s.locks.lock(p.ID)
	defer unlock()

	c, err := s.store.GetContribution(ctx, p.ID)
	if err != nil {
		return core.Contribution{}, err
	}

	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return core.Contribution{}, err
		}
		c.Amount = *p.Amount
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			return core.Contribution{}, core.ErrInvalidStatus
		}
		c.DueDate = *p.DueDate
	}

	now := s.now()
	c.Recompute(now)
	if p.Status != nil {
		if err := p.Status.Validate(); err != nil {
			return core.Contribution{}, err
		}
		if *p.Status != c.Status {
			return core.Contribution{}, fmt.Errorf("status %s contradicts derived %s: %w",
				*p.Status, c.Status, core.ErrInvalidStatus)
		}
	}
	c.UpdatedAt = now

	if err := s.store.UpdateContribution(ctx, c); err != nil {
		return core.Contribution{}, err
	}
	return c, nil
}

// DeleteContribution removes the contribution and its payments.
func (s *Service) DeleteContribution(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.store.DeleteContribution(ctx, id)
}

// RecordPaymentParams carries a new payment against a contribution.
type RecordPaymentParams struct {
	ContributionID uuid.UUID
	Amount         core.Money
	PaymentDate    time.Time
	Status         core.PaymentStatus
}

// RecordPayment applies a payment to the contribution and returns the
// payment plus the recomputed contribution. Writes to one contribution are
// serialized, so two concurrent payments can never both settle the same
// remaining balance.
func (s *Service) RecordPayment(ctx context.Context, p RecordPaymentParams) (core.Payment, core.Contribution, error) {
	if p.Status == "" {
		p.Status = core.PaymentCompleted
	}
	now := s.now()
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}

	payment := core.Payment{
		ID:             uuid.New(),
		ContributionID: p.ContributionID,
		Amount:         p.Amount,
		PaymentDate:    p.PaymentDate,
		Status:         p.Status,
		CreatedAt:      now,
	}
	if err := payment.Validate(); err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	unlock := s.locks.lock(p.ContributionID)
	defer unlock()

	c, err := s.store.GetContribution(ctx, p.ContributionID)
	if err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	payment.Amount, err = s.applyOverpaymentPolicy(payment.Amount, c.Remaining)
	if err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	c.Payments = append(c.Payments, payment)
	c.Recompute(now)
	c.UpdatedAt = now

	if err := s.store.InsertPaymentAndTotals(ctx, payment, c); err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	slog.InfoContext(ctx, "Payment recorded",
		"payment_id", payment.ID,
		"contribution_id", c.ID,
		"amount_ariary", payment.Amount.Ariary,
		"status", c.Status)

	if s.pub != nil {
		if err := s.pub.PublishPaymentRecorded(ctx, payment.ID.String(), c.ID.String(), payment.Amount.Ariary); err != nil {
			slog.ErrorContext(ctx, "Failed to publish payment message",
				"payment_id", payment.ID, "error", err)
			// The payment is committed, the export message is best effort.
		}
	}

	return payment, c, nil
}

// UpdatePaymentParams carries a payment correction. Nil fields are left
// unchanged.
type UpdatePaymentParams struct {
	ID          uuid.UUID
	Amount      *core.Money
	PaymentDate *time.Time
	Status      *core.PaymentStatus
}

// UpdatePayment corrects a recorded payment and recomputes the contribution
// in the same transaction.
func (s *Service) UpdatePayment(ctx context.Context, p UpdatePaymentParams) (core.Payment, core.Contribution, error) {
	payment, err := s.store.GetPayment(ctx, p.ID)
	if err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	unlock := s.locks.lock(payment.ContributionID)
	defer unlock()

	c, err := s.store.GetContribution(ctx, payment.ContributionID)
	if err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	if p.Amount != nil {
		payment.Amount = *p.Amount
	}
	if p.PaymentDate != nil {
		payment.PaymentDate = *p.PaymentDate
	}
	if p.Status != nil {
		payment.Status = *p.Status
	}
	if err := payment.Validate(); err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	// The balance available to this payment excludes its previous amount.
	var others int64
	for _, existing := range c.Payments {
		if existing.ID != payment.ID {
			others += existing.Amount.Ariary
		}
	}
	headroom := c.Amount.Ariary - others
	if headroom < 0 {
		headroom = 0
	}
	payment.Amount, err = s.applyOverpaymentPolicy(payment.Amount, core.Money{Ariary: headroom})
	if err != nil {
		return core.Payment{}, core.Contribution{}, err
	}

	now := s.now()
	for i, existing := range c.Payments {
		if existing.ID == payment.ID {
			c.Payments[i] = payment
		}
	}
	c.Recompute(now)
	c.UpdatedAt = now

	if err := s.store.UpdatePaymentAndTotals(ctx, payment, c); err != nil {
		return core.Payment{}, core.Contribution{}, err
	}
	return payment, c, nil
}

// DeletePayment removes a payment and recomputes the contribution in the
// same transaction.
func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) (core.Contribution, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return core.Contribution{}, err
	}

	unlock := s.locks.lock(payment.ContributionID)
	defer unlock()

	c, err := s.store.GetContribution(ctx, payment.ContributionID)
	if err != nil {
		return core.Contribution{}, err
	}

	kept := c.Payments[:0]
	for _, existing := range c.Payments {
		if existing.ID != id {
			kept = append(kept, existing)
		}
	}
	c.Payments = kept

	now := s.now()
	c.Recompute(now)
	c.UpdatedAt = now

	if err := s.store.DeletePaymentAndTotals(ctx, id, c); err != nil {
		return core.Contribution{}, err
	}
	return c, nil
}

// GetPayment returns a single recorded payment.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (core.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// SweepOverdue flips pending contributions past their due date to OVERDUE.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	changed, err := s.store.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if changed > 0 {
		slog.InfoContext(ctx, "Overdue sweep completed", "changed", changed)
	}
	return changed, nil
}

func (s *Service) applyOverpaymentPolicy(amount, remaining core.Money) (core.Money, error) {
	if amount.Ariary <= remaining.Ariary {
		return amount, nil
	}
	if !s.allowOverpayment || remaining.Ariary == 0 {
		return core.Money{}, fmt.Errorf("amount %d exceeds remaining %d: %w",
			amount.Ariary, remaining.Ariary, core.ErrOverpayment)
	}
	// Clamp mode: cap the payment at the remaining balance.
	return remaining, nil
}
