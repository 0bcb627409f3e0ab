package sqlite

import (
	"database/sql"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// ─── Payment Repository ─────────────────────────────────────────────────────

// InsertPayment appends a payment record and returns its id.
// Payments are never mutated after creation.
func (d *DB) InsertPayment(p domain.Payment) (int64, error) {
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	result, err := d.db.Exec(
		`INSERT INTO payments (account_id, payment_method_id, bill_id, amount, paid_at, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.AccountID, nullID(p.PaymentMethodID), nullID(p.BillID),
		p.Amount, paidAt.Unix(), p.Status, nullStr(p.Notes),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetPayment retrieves a payment by id.
func (d *DB) GetPayment(id int64) (*domain.Payment, error) {
	row := d.db.QueryRow(
		`SELECT id, account_id, payment_method_id, bill_id, amount, paid_at, status, notes
		 FROM payments WHERE id = ?`, id,
	)
	return scanPayment(row)
}

// ListPayments returns payments newest first, optionally filtered by account.
func (d *DB) ListPayments(accountID int64) ([]domain.Payment, error) {
	query := `SELECT id, account_id, payment_method_id, bill_id, amount, paid_at, status, notes
		 FROM payments`
	var args []any
	if accountID != 0 {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY paid_at DESC`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// DeletePayment removes a payment record (manual correction only — the
// core never deletes payments).
func (d *DB) DeletePayment(id int64) error {
	result, err := d.db.Exec(`DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var methodID, billID sql.NullInt64
	var paidAt int64
	var notes sql.NullString

	err := s.Scan(&p.ID, &p.AccountID, &methodID, &billID,
		&p.Amount, &paidAt, &p.Status, &notes)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	p.PaymentMethodID = methodID.Int64
	p.BillID = billID.Int64
	p.PaidAt = time.Unix(paidAt, 0)
	p.Notes = notes.String
	return &p, nil
}
