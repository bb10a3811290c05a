// Package memory is an in-memory export target, used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kotizy/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.PaymentRow
}

func New() *Store {
	return &Store{}
}

// AppendPayment stores the row and returns a synthetic row reference.
func (s *Store) AppendPayment(_ context.Context, row sheets.PaymentRow) (string, error) {
	if row.PaymentID == "" {
		return "", fmt.Errorf("payment row missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.PaymentRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.PaymentRow(nil), s.rows...)
}
