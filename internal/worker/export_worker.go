package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kotizy/internal/amqp"
	"kotizy/internal/core"
	"kotizy/internal/sheets"
	"kotizy/internal/storage"
)

// ExportWorker mirrors completed payments from SQLite to the Google Sheets
// ledger. It is driven by AMQP messages, with a periodic pending-export scan
// as a backup in case messages are lost.
type ExportWorker struct {
	store     *storage.SQLiteStore
	writer    sheets.LedgerWriter
	batchSize int
}

func NewExportWorker(store *storage.SQLiteStore, writer sheets.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single message from the export queue.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	switch msg.Kind {
	case amqp.KindPaymentRecorded:
		return w.handlePaymentRecorded(ctx, msg)
	case amqp.KindContributionsGenerated:
		// Generation does not export anything by itself, but batch
		// generation is a good moment to drain the backlog.
		slog.InfoContext(ctx, "Contributions generated, draining export backlog",
			"year", msg.Year,
			"generated", msg.Generated)
		return w.ProcessPending(ctx)
	default:
		slog.WarnContext(ctx, "Ignoring export message with unknown kind", "kind", msg.Kind)
		return nil
	}
}

func (w *ExportWorker) handlePaymentRecorded(ctx context.Context, msg *amqp.ExportMessage) error {
	slog.InfoContext(ctx, "Processing payment export message",
		"payment_id", msg.PaymentID,
		"contribution_id", msg.ContributionID)

	id, err := uuid.Parse(msg.PaymentID)
	if err != nil {
		return fmt.Errorf("parse payment id %q: %w", msg.PaymentID, err)
	}

	payment, err := w.store.GetPayment(ctx, id)
	if err != nil {
		return fmt.Errorf("get payment from storage: %w", err)
	}

	return w.exportPayment(ctx, payment)
}

// ProcessPending exports any completed payments that have not reached the
// sheet yet. This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingExportPayments(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export payments: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending payment exports", "count", len(pending))

	for _, payment := range pending {
		if err := w.exportPayment(ctx, payment); err != nil {
			slog.ErrorContext(ctx, "Failed to export payment",
				"payment_id", payment.ID,
				"error", err)
			continue
		}
	}

	return nil
}

// StartupCheck drains the export backlog at worker startup. Previously
// failed exports are requeued first, and the batch is larger than the
// periodic scan's to recover quickly from worker downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	requeued, err := w.store.ResetExportErrors(ctx)
	if err != nil {
		return fmt.Errorf("reset export errors: %w", err)
	}
	if requeued > 0 {
		slog.InfoContext(ctx, "Requeued failed payment exports", "count", requeued)
	}

	pending, err := w.store.ListPendingExportPayments(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending payment exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending payment exports on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0

	for _, payment := range pending {
		if err := w.exportPayment(ctx, payment); err != nil {
			slog.ErrorContext(ctx, "Failed to export payment during startup",
				"payment_id", payment.ID,
				"error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", exported,
		"failed", failed)

	return nil
}

func (w *ExportWorker) exportPayment(ctx context.Context, payment core.Payment) error {
	contribution, err := w.store.GetContribution(ctx, payment.ContributionID)
	if err != nil {
		if markErr := w.store.MarkPaymentExportError(ctx, payment.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"payment_id", payment.ID, "error", markErr)
		}
		return fmt.Errorf("get contribution for payment: %w", err)
	}

	row := sheets.PaymentRow{
		PaymentID:   payment.ID.String(),
		MemberName:  contribution.MemberName,
		Year:        contribution.Year,
		Amount:      payment.Amount,
		PaymentDate: payment.PaymentDate,
		Status:      contribution.Status,
	}

	ref, err := w.writer.AppendPayment(ctx, row)
	if err != nil {
		if markErr := w.store.MarkPaymentExportError(ctx, payment.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"payment_id", payment.ID, "error", markErr)
		}
		return fmt.Errorf("append payment to sheet: %w", err)
	}

	if err := w.store.MarkPaymentExported(ctx, payment.ID); err != nil {
		// The row reached the sheet; a failed status update only means
		// the backup scan may export it again.
		slog.ErrorContext(ctx, "Failed to mark payment as exported",
			"payment_id", payment.ID, "error", err)
	}

	slog.InfoContext(ctx, "Payment exported",
		"payment_id", payment.ID,
		"member_name", contribution.MemberName,
		"year", contribution.Year,
		"amount_ariary", payment.Amount.Ariary,
		"sheets_ref", ref)

	return nil
}
