package sqlite

import (
	"database/sql"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// dateLayout is the wire and storage format for bill due dates.
const dateLayout = "2006-01-02"

// ─── Bill Repository ────────────────────────────────────────────────────────

// InsertBill creates a bill on first sighting and returns its id.
func (d *DB) InsertBill(b domain.Bill) (int64, error) {
	result, err := d.db.Exec(
		`INSERT INTO bills (account_id, external_id, amount_cents, currency, due_date, status, fetched_at, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.AccountID, b.ExternalID, b.AmountCents, b.Currency,
		b.DueDate.Format(dateLayout), string(b.Status),
		time.Now().Unix(), nullableUnix(b.PaidAt),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetBill retrieves a bill by row id.
func (d *DB) GetBill(id int64) (*domain.Bill, error) {
	row := d.db.QueryRow(
		`SELECT id, account_id, external_id, amount_cents, currency, due_date, status, fetched_at, paid_at
		 FROM bills WHERE id = ?`, id,
	)
	return scanBill(row)
}

// GetBillByExternalID looks a bill up by its reconciliation key.
// Returns (nil, nil) when no bill exists for that key.
func (d *DB) GetBillByExternalID(accountID int64, externalID string) (*domain.Bill, error) {
	row := d.db.QueryRow(
		`SELECT id, account_id, external_id, amount_cents, currency, due_date, status, fetched_at, paid_at
		 FROM bills WHERE account_id = ? AND external_id = ?`, accountID, externalID,
	)
	b, err := scanBill(row)
	if err == domain.ErrBillNotFound {
		return nil, nil
	}
	return b, err
}

// ListBills returns bills ordered by due date descending, optionally
// filtered by account and status (0 / "" disable a filter).
func (d *DB) ListBills(accountID int64, status domain.BillStatus) ([]domain.Bill, error) {
	query := `SELECT id, account_id, external_id, amount_cents, currency, due_date, status, fetched_at, paid_at
		 FROM bills WHERE 1=1`
	var args []any
	if accountID != 0 {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY due_date DESC`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

// UpdateBillDetails overwrites the driver-reported fields in place,
// preserving row identity. Used by reconciliation upserts.
func (d *DB) UpdateBillDetails(id int64, amountCents int64, currency string, dueDate time.Time, status domain.BillStatus) error {
	result, err := d.db.Exec(
		`UPDATE bills SET amount_cents = ?, currency = ?, due_date = ?, status = ? WHERE id = ?`,
		amountCents, currency, dueDate.Format(dateLayout), string(status), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

// MarkBillPaid transitions a bill to PAID and stamps paid_at.
func (d *DB) MarkBillPaid(id int64, paidAt time.Time) error {
	result, err := d.db.Exec(
		`UPDATE bills SET status = ?, paid_at = ? WHERE id = ?`,
		string(domain.BillPaid), paidAt.Unix(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

func scanBill(s scanner) (*domain.Bill, error) {
	var b domain.Bill
	var dueDate, status string
	var fetchedAt int64
	var paidAt sql.NullInt64

	err := s.Scan(&b.ID, &b.AccountID, &b.ExternalID, &b.AmountCents,
		&b.Currency, &dueDate, &status, &fetchedAt, &paidAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Status = domain.BillStatus(status)
	b.FetchedAt = time.Unix(fetchedAt, 0)
	if paidAt.Valid {
		b.PaidAt = time.Unix(paidAt.Int64, 0)
	}
	b.DueDate, err = time.Parse(dateLayout, dueDate)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
