// Package storage is the SQLite persistence layer: the roster, the
// contribution ledger and the payment export queue all live in one database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kotizy/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping reports whether the database is reachable. Used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return core.ErrConflict
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return core.ErrConflict
	default:
		return err
	}
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Migration defaults use the sqlite datetime format.
		t, _ = time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	}
	return t
}

// --- members ---

const memberColumns = `
	m.id, m.sequence_number, m.first_name, m.last_name,
	COALESCE(m.birth_date, ''), m.gender, m.phone_number, m.status,
	m.active, m.image_url,
	COALESCE(m.district_id, 0), COALESCE(d.name, ''),
	COALESCE(m.tribute_id, 0), COALESCE(t.name, ''),
	m.parent_id, COALESCE(p.first_name || ' ' || p.last_name, ''),
	(SELECT COUNT(*) FROM members c WHERE c.parent_id = m.id),
	m.created_at`

const memberJoins = `
	FROM members m
	LEFT JOIN districts d ON d.id = m.district_id
	LEFT JOIN tributes t ON t.id = m.tribute_id
	LEFT JOIN members p ON p.id = m.parent_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (core.Member, error) {
	var (
		m         core.Member
		id        string
		birthDate string
		active    int64
		parentID  sql.NullString
		createdAt string
	)
	err := row.Scan(
		&id, &m.SequenceNumber, &m.FirstName, &m.LastName,
		&birthDate, &m.Gender, &m.PhoneNumber, &m.Status,
		&active, &m.ImageURL,
		&m.DistrictID, &m.DistrictName,
		&m.TributeID, &m.TributeName,
		&parentID, &m.ParentName,
		&m.ChildrenCount,
		&createdAt,
	)
	if err != nil {
		return core.Member{}, mapErr(err)
	}

	m.ID, err = uuid.Parse(id)
	if err != nil {
		return core.Member{}, fmt.Errorf("parse member id: %w", err)
	}
	if birthDate != "" {
		m.BirthDate = parseTime(birthDate)
	}
	m.Active = active != 0
	if parentID.Valid {
		pid, err := uuid.Parse(parentID.String)
		if err != nil {
			return core.Member{}, fmt.Errorf("parse parent id: %w", err)
		}
		m.ParentID = &pid
	}
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func (s *SQLiteStore) CreateMember(ctx context.Context, m core.Member) (core.Member, error) {
	var birthDate any
	if !m.BirthDate.IsZero() {
		birthDate = fmtTime(m.BirthDate)
	}
	var districtID, tributeID any
	if m.DistrictID != 0 {
		districtID = m.DistrictID
	}
	if m.TributeID != 0 {
		tributeID = m.TributeID
	}
	var parentID any
	if m.ParentID != nil {
		parentID = m.ParentID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (
			id, sequence_number, first_name, last_name, birth_date, gender,
			phone_number, status, active, image_url, district_id, tribute_id,
			parent_id, created_at
		) VALUES (
			?, (SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM members),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)`,
		m.ID.String(), m.FirstName, m.LastName, birthDate, string(m.Gender),
		m.PhoneNumber, string(m.Status), boolToInt(m.Active), m.ImageURL,
		districtID, tributeID, parentID, fmtTime(m.CreatedAt),
	)
	if err != nil {
		return core.Member{}, mapErr(err)
	}
	return s.GetMember(ctx, m.ID)
}

func (s *SQLiteStore) GetMember(ctx context.Context, id uuid.UUID) (core.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+memberJoins+` WHERE m.id = ?`, id.String())
	return scanMember(row)
}

// ListMembers returns the roster ordered by sequence number. With activeOnly
// set, inactive members are excluded.
func (s *SQLiteStore) ListMembers(ctx context.Context, activeOnly bool) ([]core.Member, error) {
	query := `SELECT ` + memberColumns + memberJoins
	if activeOnly {
		query += ` WHERE m.active = 1`
	}
	query += ` ORDER BY m.sequence_number`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) UpdateMember(ctx context.Context, m core.Member) (core.Member, error) {
	var birthDate any
	if !m.BirthDate.IsZero() {
		birthDate = fmtTime(m.BirthDate)
	}
	var districtID, tributeID any
	if m.DistrictID != 0 {
		districtID = m.DistrictID
	}
	if m.TributeID != 0 {
		tributeID = m.TributeID
	}
	var parentID any
	if m.ParentID != nil {
		parentID = m.ParentID.String()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE members SET
			first_name = ?, last_name = ?, birth_date = ?, gender = ?,
			phone_number = ?, status = ?, active = ?, image_url = ?,
			district_id = ?, tribute_id = ?, parent_id = ?
		WHERE id = ?`,
		m.FirstName, m.LastName, birthDate, string(m.Gender),
		m.PhoneNumber, string(m.Status), boolToInt(m.Active), m.ImageURL,
		districtID, tributeID, parentID, m.ID.String(),
	)
	if err != nil {
		return core.Member{}, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Member{}, core.ErrNotFound
	}
	return s.GetMember(ctx, m.ID)
}

func (s *SQLiteStore) DeleteMember(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CountDependents returns how many roster members name this member as their
// head of family.
func (s *SQLiteStore) CountDependents(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE parent_id = ?`, id.String()).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// --- districts and tributes ---

func (s *SQLiteStore) ListDistricts(ctx context.Context) ([]core.District, error) {
	return s.listTaxonomy(ctx, "districts")
}

func (s *SQLiteStore) CreateDistrict(ctx context.Context, name string) (core.District, error) {
	return s.createTaxonomy(ctx, "districts", name)
}

func (s *SQLiteStore) DeleteDistrict(ctx context.Context, id int64) error {
	return s.deleteTaxonomy(ctx, "districts", id)
}

func (s *SQLiteStore) ListTributes(ctx context.Context) ([]core.Tribute, error) {
	entries, err := s.listTaxonomy(ctx, "tributes")
	if err != nil {
		return nil, err
	}
	tributes := make([]core.Tribute, len(entries))
	for i, e := range entries {
		tributes[i] = core.Tribute(e)
	}
	return tributes, nil
}

func (s *SQLiteStore) CreateTribute(ctx context.Context, name string) (core.Tribute, error) {
	d, err := s.createTaxonomy(ctx, "tributes", name)
	return core.Tribute(d), err
}

func (s *SQLiteStore) DeleteTribute(ctx context.Context, id int64) error {
	return s.deleteTaxonomy(ctx, "tributes", id)
}

func (s *SQLiteStore) listTaxonomy(ctx context.Context, table string) ([]core.District, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var entries []core.District
	for rows.Next() {
		var e core.District
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, mapErr(err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) createTaxonomy(ctx context.Context, table, name string) (core.District, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return core.District{}, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.District{}, err
	}
	return core.District{ID: id, Name: name}, nil
}

func (s *SQLiteStore) deleteTaxonomy(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- contributions ---

const contributionColumns = `
	c.id, c.member_id, m.first_name || ' ' || m.last_name,
	c.year, c.amount_ariary, c.total_paid_ariary, c.remaining_ariary,
	c.status, c.due_date, c.created_at, c.updated_at`

const contributionJoins = `
	FROM contributions c
	JOIN members m ON m.id = c.member_id`

func scanContribution(row rowScanner) (core.Contribution, error) {
	var (
		c                            core.Contribution
		id, memberID                 string
		dueDate, createdAt, updatedAt string
	)
	err := row.Scan(
		&id, &memberID, &c.MemberName,
		&c.Year, &c.Amount.Ariary, &c.TotalPaid.Ariary, &c.Remaining.Ariary,
		&c.Status, &dueDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return core.Contribution{}, mapErr(err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return core.Contribution{}, fmt.Errorf("parse contribution id: %w", err)
	}
	if c.MemberID, err = uuid.Parse(memberID); err != nil {
		return core.Contribution{}, fmt.Errorf("parse member id: %w", err)
	}
	c.DueDate = parseTime(dueDate)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// EnsureContribution inserts the contribution unless one already exists for
// the same member and year. It reports whether a row was created and returns
// the stored row either way.
func (s *SQLiteStore) EnsureContribution(ctx context.Context, c core.Contribution) (core.Contribution, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contributions (
			id, member_id, year, amount_ariary, total_paid_ariary,
			remaining_ariary, status, due_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (member_id, year) DO NOTHING`,
		c.ID.String(), c.MemberID.String(), c.Year,
		c.Amount.Ariary, c.TotalPaid.Ariary, c.Remaining.Ariary,
		string(c.Status), fmtTime(c.DueDate), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt),
	)
	if err != nil {
		return core.Contribution{}, false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Contribution{}, false, err
	}

	stored, err := s.GetContributionByMemberAndYear(ctx, c.MemberID, c.Year)
	if err != nil {
		return core.Contribution{}, false, err
	}
	return stored, n > 0, nil
}

func (s *SQLiteStore) GetContribution(ctx context.Context, id uuid.UUID) (core.Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+contributionJoins+` WHERE c.id = ?`, id.String())
	c, err := scanContribution(row)
	if err != nil {
		return core.Contribution{}, err
	}
	c.Payments, err = s.ListPaymentsByContribution(ctx, c.ID)
	return c, err
}

func (s *SQLiteStore) GetContributionByMemberAndYear(ctx context.Context, memberID uuid.UUID, year int) (core.Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+contributionJoins+` WHERE c.member_id = ? AND c.year = ?`,
		memberID.String(), year)
	c, err := scanContribution(row)
	if err != nil {
		return core.Contribution{}, err
	}
	c.Payments, err = s.ListPaymentsByContribution(ctx, c.ID)
	return c, err
}

// ListContributionsByYear returns the full year snapshot with payments
// attached, ordered by member sequence number.
func (s *SQLiteStore) ListContributionsByYear(ctx context.Context, year int) ([]core.Contribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contributionColumns+contributionJoins+`
		 WHERE c.year = ? ORDER BY m.sequence_number`, year)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var contributions []core.Contribution
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(contributions)
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// One pass over the year's payments instead of a query per contribution.
	payRows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.contribution_id, p.amount_ariary, p.payment_date, p.status, p.created_at
		FROM payments p
		JOIN contributions c ON c.id = p.contribution_id
		WHERE c.year = ?
		ORDER BY p.payment_date, p.created_at`, year)
	if err != nil {
		return nil, mapErr(err)
	}
	defer payRows.Close()

	for payRows.Next() {
		p, err := scanPayment(payRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[p.ContributionID]; ok {
			contributions[i].Payments = append(contributions[i].Payments, p)
		}
	}
	return contributions, payRows.Err()
}

func (s *SQLiteStore) UpdateContribution(ctx context.Context, c core.Contribution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contributions SET
			amount_ariary = ?, total_paid_ariary = ?, remaining_ariary = ?,
			status = ?, due_date = ?, updated_at = ?
		WHERE id = ?`,
		c.Amount.Ariary, c.TotalPaid.Ariary, c.Remaining.Ariary,
		string(c.Status), fmtTime(c.DueDate), fmtTime(c.UpdatedAt), c.ID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteContribution(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contributions WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// MarkOverdue flips pending contributions past their due date to OVERDUE and
// returns how many rows changed.
func (s *SQLiteStore) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contributions SET status = ?, updated_at = ?
		WHERE status = ? AND total_paid_ariary = 0 AND remaining_ariary > 0 AND due_date < ?`,
		string(core.Overdue), fmtTime(now), string(core.Pending), fmtTime(now),
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// --- payments ---

func scanPayment(row rowScanner) (core.Payment, error) {
	var (
		p                      core.Payment
		id, contributionID     string
		paymentDate, createdAt string
	)
	err := row.Scan(&id, &contributionID, &p.Amount.Ariary, &paymentDate, &p.Status, &createdAt)
	if err != nil {
		return core.Payment{}, mapErr(err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return core.Payment{}, fmt.Errorf("parse payment id: %w", err)
	}
	if p.ContributionID, err = uuid.Parse(contributionID); err != nil {
		return core.Payment{}, fmt.Errorf("parse contribution id: %w", err)
	}
	p.PaymentDate = parseTime(paymentDate)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (s *SQLiteStore) GetPayment(ctx context.Context, id uuid.UUID) (core.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, contribution_id, amount_ariary, payment_date, status, created_at
		FROM payments WHERE id = ?`, id.String())
	return scanPayment(row)
}

func (s *SQLiteStore) ListPaymentsByContribution(ctx context.Context, contributionID uuid.UUID) ([]core.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contribution_id, amount_ariary, payment_date, status, created_at
		FROM payments WHERE contribution_id = ?
		ORDER BY payment_date, created_at`, contributionID.String())
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// InsertPaymentAndTotals records the payment and writes the recomputed
// contribution totals in one transaction.
func (s *SQLiteStore) InsertPaymentAndTotals(ctx context.Context, p core.Payment, c core.Contribution) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, contribution_id, amount_ariary, payment_date, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID.String(), p.ContributionID.String(), p.Amount.Ariary,
			fmtTime(p.PaymentDate), string(p.Status), fmtTime(p.CreatedAt),
		)
		if err != nil {
			return mapErr(err)
		}
		return updateTotalsTx(ctx, tx, c)
	})
}

// UpdatePaymentAndTotals rewrites the payment and the recomputed contribution
// totals in one transaction.
func (s *SQLiteStore) UpdatePaymentAndTotals(ctx context.Context, p core.Payment, c core.Contribution) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE payments SET amount_ariary = ?, payment_date = ?, status = ?
			WHERE id = ?`,
			p.Amount.Ariary, fmtTime(p.PaymentDate), string(p.Status), p.ID.String(),
		)
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return updateTotalsTx(ctx, tx, c)
	})
}

// DeletePaymentAndTotals removes the payment and writes the recomputed
// contribution totals in one transaction.
func (s *SQLiteStore) DeletePaymentAndTotals(ctx context.Context, paymentID uuid.UUID, c core.Contribution) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, paymentID.String())
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return updateTotalsTx(ctx, tx, c)
	})
}

func updateTotalsTx(ctx context.Context, tx *sql.Tx, c core.Contribution) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE contributions SET
			total_paid_ariary = ?, remaining_ariary = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		c.TotalPaid.Ariary, c.Remaining.Ariary, string(c.Status),
		fmtTime(c.UpdatedAt), c.ID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- export queue ---

// ListPendingExportPayments returns completed payments not yet pushed to the
// export target, oldest first.
func (s *SQLiteStore) ListPendingExportPayments(ctx context.Context, limit int) ([]core.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contribution_id, amount_ariary, payment_date, status, created_at
		FROM payments
		WHERE export_status = 'pending' AND status = ?
		ORDER BY created_at LIMIT ?`, string(core.PaymentCompleted), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *SQLiteStore) MarkPaymentExported(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET export_status = 'exported', exported_at = ?
		WHERE id = ?`, fmtTime(time.Now()), id.String())
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkPaymentExportError(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET export_status = 'error' WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ResetExportErrors requeues payments whose export previously failed and
// returns how many were reset.
func (s *SQLiteStore) ResetExportErrors(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET export_status = 'pending' WHERE export_status = 'error'`)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
