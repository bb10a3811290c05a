package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"kotizy/internal/amqp"
	"kotizy/internal/core"
	"kotizy/internal/sheets"
	"kotizy/internal/sheets/memory"
	"kotizy/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPayment(t *testing.T, store *storage.SQLiteStore, amount int64) core.Payment {
	t.Helper()
	ctx := context.Background()

	m, err := store.CreateMember(ctx, core.Member{
		ID:        uuid.New(),
		FirstName: "Hery",
		LastName:  "Rakoto",
		Gender:    core.Male,
		Status:    core.Worker,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	now := time.Now().UTC()
	c := core.Contribution{
		ID:        uuid.New(),
		MemberID:  m.ID,
		Year:      2026,
		Amount:    core.Money{Ariary: amount},
		Remaining: core.Money{Ariary: amount},
		Status:    core.Pending,
		DueDate:   core.DueDateFor(2026),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c, _, err = store.EnsureContribution(ctx, c)
	if err != nil {
		t.Fatalf("EnsureContribution: %v", err)
	}

	p := core.Payment{
		ID:             uuid.New(),
		ContributionID: c.ID,
		Amount:         core.Money{Ariary: amount},
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
	return p
}

func TestHandleExportMessagePaymentRecorded(t *testing.T) {
	store := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(store, sink, 10)
	ctx := context.Background()

	p := seedPayment(t, store, 10000)

	msg := amqp.NewPaymentRecordedMessage(p.ID.String(), p.ContributionID.String(), p.Amount.Ariary)
	if err := w.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}

	rows := sink.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(rows))
	}
	if rows[0].PaymentID != p.ID.String() {
		t.Errorf("exported PaymentID = %q, want %q", rows[0].PaymentID, p.ID)
	}
	if rows[0].MemberName != "Hery Rakoto" || rows[0].Year != 2026 {
		t.Errorf("exported row = %+v", rows[0])
	}
	if rows[0].Amount.Ariary != 10000 {
		t.Errorf("exported amount = %d, want 10000", rows[0].Amount.Ariary)
	}
	if rows[0].Status != core.Paid {
		t.Errorf("exported status = %q, want %q", rows[0].Status, core.Paid)
	}

	pending, err := store.ListPendingExportPayments(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportPayments: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending exports after handling, got %d", len(pending))
	}
}

func TestHandleExportMessageBadPaymentID(t *testing.T) {
	store := newTestStore(t)
	w := NewExportWorker(store, memory.New(), 10)

	msg := amqp.NewPaymentRecordedMessage("not-a-uuid", uuid.NewString(), 1000)
	if err := w.HandleExportMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for malformed payment id")
	}
}

func TestProcessPendingDrainsBacklog(t *testing.T) {
	store := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(store, sink, 10)
	ctx := context.Background()

	seedPayment(t, store, 5000)
	seedPayment(t, store, 15000)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if got := len(sink.Rows()); got != 2 {
		t.Fatalf("expected 2 exported rows, got %d", got)
	}

	// Second run finds nothing left to export.
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending rerun: %v", err)
	}
	if got := len(sink.Rows()); got != 2 {
		t.Fatalf("rerun exported again, got %d rows", got)
	}
}

func TestHandleContributionsGeneratedDrains(t *testing.T) {
	store := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(store, sink, 10)
	ctx := context.Background()

	seedPayment(t, store, 5000)

	msg := amqp.NewContributionsGeneratedMessage(2026, 12)
	if err := w.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}
	if got := len(sink.Rows()); got != 1 {
		t.Fatalf("expected backlog drained, got %d rows", got)
	}
}

type failingWriter struct{}

func (failingWriter) AppendPayment(context.Context, sheets.PaymentRow) (string, error) {
	return "", errors.New("sheet unavailable")
}

func TestExportFailureMarksError(t *testing.T) {
	store := newTestStore(t)
	w := NewExportWorker(store, failingWriter{}, 10)
	ctx := context.Background()

	p := seedPayment(t, store, 5000)

	msg := amqp.NewPaymentRecordedMessage(p.ID.String(), p.ContributionID.String(), p.Amount.Ariary)
	if err := w.HandleExportMessage(ctx, msg); err == nil {
		t.Fatal("expected error from failing writer")
	}

	// The payment left the pending queue and is parked in error state.
	pending, err := store.ListPendingExportPayments(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportPayments: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected payment marked as error, still pending: %d", len(pending))
	}
}

func TestStartupCheckRequeuesFailedExports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := seedPayment(t, store, 5000)

	// A failing writer parks the payment in error state.
	failing := NewExportWorker(store, failingWriter{}, 10)
	msg := amqp.NewPaymentRecordedMessage(p.ID.String(), p.ContributionID.String(), p.Amount.Ariary)
	if err := failing.HandleExportMessage(ctx, msg); err == nil {
		t.Fatal("expected error from failing writer")
	}

	// Startup with a healthy writer retries it.
	sink := memory.New()
	w := NewExportWorker(store, sink, 10)
	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if got := len(sink.Rows()); got != 1 {
		t.Fatalf("expected failed export to be retried, got %d rows", got)
	}
}

func TestStartupCheck(t *testing.T) {
	store := newTestStore(t)
	sink := memory.New()
	w := NewExportWorker(store, sink, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedPayment(t, store, 1000)
	}

	// Startup uses a larger batch than the configured one.
	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if got := len(sink.Rows()); got != 3 {
		t.Fatalf("expected 3 exported rows, got %d", got)
	}
}
