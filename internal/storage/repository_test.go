package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"kotizy/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestMember(status core.MemberStatus) core.Member {
	return core.Member{
		ID:        uuid.New(),
		FirstName: "Hery",
		LastName:  "Rakoto",
		Gender:    core.Male,
		Status:    status,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemberCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m, err := store.CreateMember(ctx, newTestMember(core.Worker))
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if m.SequenceNumber != 1 {
		t.Fatalf("expected sequence number 1, got %d", m.SequenceNumber)
	}

	second, err := store.CreateMember(ctx, core.Member{
		ID: uuid.New(), FirstName: "Voara", LastName: "Andriana",
		Gender: core.Female, Status: core.Student, Active: true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMember second: %v", err)
	}
	if second.SequenceNumber != 2 {
		t.Fatalf("expected sequence number 2, got %d", second.SequenceNumber)
	}

	got, err := store.GetMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if got.DisplayName() != "Hery Rakoto" || got.Status != core.Worker {
		t.Fatalf("unexpected member: %+v", got)
	}

	got.PhoneNumber = "+261 34 00 000 00"
	got.Status = core.Student
	if _, err := store.UpdateMember(ctx, got); err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}
	got, _ = store.GetMember(ctx, m.ID)
	if got.PhoneNumber != "+261 34 00 000 00" || got.Status != core.Student {
		t.Fatalf("update not persisted: %+v", got)
	}

	all, err := store.ListMembers(ctx, false)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 members, got %d", len(all))
	}

	second.Active = false
	if _, err := store.UpdateMember(ctx, second); err != nil {
		t.Fatalf("UpdateMember deactivate: %v", err)
	}
	active, _ := store.ListMembers(ctx, true)
	if len(active) != 1 {
		t.Fatalf("expected 1 active member, got %d", len(active))
	}

	if err := store.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMember: %v", err)
	}
	if _, err := store.GetMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemberHierarchy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	head, err := store.CreateMember(ctx, newTestMember(core.Worker))
	if err != nil {
		t.Fatalf("CreateMember head: %v", err)
	}

	for i := 0; i < 2; i++ {
		child := core.Member{
			ID: uuid.New(), FirstName: "Koto", LastName: "Rakoto",
			Gender: core.Male, Status: core.Student, Active: true,
			ParentID: &head.ID, CreatedAt: time.Now().UTC(),
		}
		if _, err := store.CreateMember(ctx, child); err != nil {
			t.Fatalf("CreateMember child %d: %v", i, err)
		}
	}

	n, err := store.CountDependents(ctx, head.ID)
	if err != nil {
		t.Fatalf("CountDependents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 dependents, got %d", n)
	}

	got, _ := store.GetMember(ctx, head.ID)
	if got.ChildrenCount != 2 {
		t.Fatalf("expected derived children count 2, got %d", got.ChildrenCount)
	}

	children, _ := store.ListMembers(ctx, false)
	for _, c := range children {
		if c.ParentID != nil && c.ParentName != "Hery Rakoto" {
			t.Fatalf("expected parent name resolved, got %q", c.ParentName)
		}
	}
}

func TestTaxonomy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d, err := store.CreateDistrict(ctx, "Ambohipo")
	if err != nil {
		t.Fatalf("CreateDistrict: %v", err)
	}
	if _, err := store.CreateDistrict(ctx, "Ambohipo"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate district, got %v", err)
	}

	tr, err := store.CreateTribute(ctx, "Zanakantitra")
	if err != nil {
		t.Fatalf("CreateTribute: %v", err)
	}

	m := newTestMember(core.Worker)
	m.DistrictID = d.ID
	m.TributeID = tr.ID
	created, err := store.CreateMember(ctx, m)
	if err != nil {
		t.Fatalf("CreateMember with taxonomy: %v", err)
	}
	if created.DistrictName != "Ambohipo" || created.TributeName != "Zanakantitra" {
		t.Fatalf("expected taxonomy names resolved, got %+v", created)
	}

	// A district in use cannot be removed.
	if err := store.DeleteDistrict(ctx, d.ID); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting referenced district, got %v", err)
	}

	if err := store.DeleteTribute(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seedContribution(t *testing.T, store *SQLiteStore, year int, amount int64) core.Contribution {
	t.Helper()
	ctx := context.Background()

	m, err := store.CreateMember(ctx, newTestMember(core.Worker))
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	now := time.Now().UTC()
	c := core.Contribution{
		ID:        uuid.New(),
		MemberID:  m.ID,
		Year:      year,
		Amount:    core.Money{Ariary: amount},
		Remaining: core.Money{Ariary: amount},
		Status:    core.Pending,
		DueDate:   core.DueDateFor(year),
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, created, err := store.EnsureContribution(ctx, c)
	if err != nil {
		t.Fatalf("EnsureContribution: %v", err)
	}
	if !created {
		t.Fatalf("expected contribution to be created")
	}
	return stored
}

func TestEnsureContributionIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := seedContribution(t, store, 2026, 10000)

	dup := core.Contribution{
		ID:        uuid.New(),
		MemberID:  first.MemberID,
		Year:      2026,
		Amount:    core.Money{Ariary: 99999},
		Remaining: core.Money{Ariary: 99999},
		Status:    core.Pending,
		DueDate:   core.DueDateFor(2026),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	stored, created, err := store.EnsureContribution(ctx, dup)
	if err != nil {
		t.Fatalf("EnsureContribution duplicate: %v", err)
	}
	if created {
		t.Fatalf("duplicate year must not create a second row")
	}
	if stored.ID != first.ID || stored.Amount.Ariary != 10000 {
		t.Fatalf("existing row must win, got %+v", stored)
	}

	byPair, err := store.GetContributionByMemberAndYear(ctx, first.MemberID, 2026)
	if err != nil {
		t.Fatalf("GetContributionByMemberAndYear: %v", err)
	}
	if byPair.ID != first.ID {
		t.Fatalf("expected same contribution, got %s", byPair.ID)
	}
}

func TestPaymentsAndTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedContribution(t, store, 2026, 10000)
	now := time.Now().UTC()

	p := core.Payment{
		ID:             uuid.New(),
		ContributionID: c.ID,
		Amount:         core.Money{Ariary: 4000},
		PaymentDate:    now,
		Status:         core.PaymentCompleted,
		CreatedAt:      now,
	}
	c.Payments = append(c.Payments, p)
	c.Recompute(now)
	c.UpdatedAt = now
	if err := store.InsertPaymentAndTotals(ctx, p, c); err != nil {
		t.Fatalf("InsertPaymentAndTotals: %v", err)
	}

	got, err := store.GetContribution(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContribution: %v", err)
	}
	if got.TotalPaid.Ariary != 4000 || got.Remaining.Ariary != 6000 || got.Status != core.Partial {
		t.Fatalf("totals not persisted: %+v", got)
	}
	if len(got.Payments) != 1 || got.Payments[0].ID != p.ID {
		t.Fatalf("expected payment attached, got %d", len(got.Payments))
	}

	// Correct the amount.
	p.Amount = core.Money{Ariary: 10000}
	got.Payments[0] = p
	got.Recompute(now)
	got.UpdatedAt = now
	if err := store.UpdatePaymentAndTotals(ctx, p, got); err != nil {
		t.Fatalf("UpdatePaymentAndTotals: %v", err)
	}
	got, _ = store.GetContribution(ctx, c.ID)
	if got.TotalPaid.Ariary != 10000 || got.Remaining.Ariary != 0 || got.Status != core.Paid {
		t.Fatalf("totals after update: %+v", got)
	}

	// Remove it again.
	got.Payments = nil
	got.Recompute(now)
	got.UpdatedAt = now
	if err := store.DeletePaymentAndTotals(ctx, p.ID, got); err != nil {
		t.Fatalf("DeletePaymentAndTotals: %v", err)
	}
	got, _ = store.GetContribution(ctx, c.ID)
	if got.TotalPaid.Ariary != 0 || got.Remaining.Ariary != 10000 {
		t.Fatalf("totals after delete: %+v", got)
	}
	if _, err := store.GetPayment(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected payment gone, got %v", err)
	}

	if err := store.DeletePaymentAndTotals(ctx, p.ID, got); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting missing payment, got %v", err)
	}
}

func TestListContributionsByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := seedContribution(t, store, 2026, 10000)
	seedContribution(t, store, 2026, 15000)
	seedContribution(t, store, 2025, 5000)

	now := time.Now().UTC()
	p := core.Payment{
		ID: uuid.New(), ContributionID: a.ID,
		Amount: core.Money{Ariary: 2500}, PaymentDate: now,
		Status: core.PaymentCompleted, CreatedAt: now,
	}
	a.Payments = append(a.Payments, p)
	a.Recompute(now)
	a.UpdatedAt = now
	if err := store.InsertPaymentAndTotals(ctx, p, a); err != nil {
		t.Fatalf("InsertPaymentAndTotals: %v", err)
	}

	year, err := store.ListContributionsByYear(ctx, 2026)
	if err != nil {
		t.Fatalf("ListContributionsByYear: %v", err)
	}
	if len(year) != 2 {
		t.Fatalf("expected 2 contributions for 2026, got %d", len(year))
	}
	for _, c := range year {
		if c.ID == a.ID && len(c.Payments) != 1 {
			t.Fatalf("expected payment attached to %s", c.ID)
		}
		if c.MemberName == "" {
			t.Fatalf("expected member name resolved")
		}
	}
}

func TestMarkOverdue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := seedContribution(t, store, 2024, 10000)
	seedContribution(t, store, 2099, 10000)

	now := time.Now().UTC()
	changed, err := store.MarkOverdue(ctx, now)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 contribution marked overdue, got %d", changed)
	}

	got, _ := store.GetContribution(ctx, past.ID)
	if got.Status != core.Overdue {
		t.Fatalf("expected OVERDUE, got %s", got.Status)
	}

	// Idempotent on a second pass.
	changed, _ = store.MarkOverdue(ctx, now)
	if changed != 0 {
		t.Fatalf("expected no further changes, got %d", changed)
	}
}

func TestExportQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedContribution(t, store, 2026, 10000)
	now := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := core.Payment{
			ID: uuid.New(), ContributionID: c.ID,
			Amount: core.Money{Ariary: 1000}, PaymentDate: now,
			Status: core.PaymentCompleted, CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		c.Payments = append(c.Payments, p)
		c.Recompute(now)
		c.UpdatedAt = now
		if err := store.InsertPaymentAndTotals(ctx, p, c); err != nil {
			t.Fatalf("InsertPaymentAndTotals %d: %v", i, err)
		}
		ids = append(ids, p.ID)
	}

	pending, err := store.ListPendingExportPayments(ctx, 2)
	if err != nil {
		t.Fatalf("ListPendingExportPayments: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(pending))
	}
	if pending[0].ID != ids[0] {
		t.Fatalf("expected oldest payment first")
	}

	if err := store.MarkPaymentExported(ctx, ids[0]); err != nil {
		t.Fatalf("MarkPaymentExported: %v", err)
	}
	if err := store.MarkPaymentExportError(ctx, ids[1]); err != nil {
		t.Fatalf("MarkPaymentExportError: %v", err)
	}

	pending, _ = store.ListPendingExportPayments(ctx, 10)
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only the untouched payment pending, got %d", len(pending))
	}

	// Requeue the errored payment; the exported one stays exported.
	n, err := store.ResetExportErrors(ctx)
	if err != nil {
		t.Fatalf("ResetExportErrors: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued payment, got %d", n)
	}
	pending, _ = store.ListPendingExportPayments(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after requeue, got %d", len(pending))
	}
}
