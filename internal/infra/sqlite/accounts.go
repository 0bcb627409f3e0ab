package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// ─── Account Repository ─────────────────────────────────────────────────────

// InsertAccount creates an account and returns its id.
func (d *DB) InsertAccount(a domain.Account) (int64, error) {
	ids, err := json.Marshal(a.Identifiers)
	if err != nil {
		return 0, fmt.Errorf("encode identifiers: %w", err)
	}
	result, err := d.db.Exec(
		`INSERT INTO accounts (name, frequency, website_url, driver_name, identifiers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, a.Frequency, nullStr(a.WebsiteURL), nullStr(a.DriverName),
		string(ids), time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAccount retrieves an account by id.
func (d *DB) GetAccount(id int64) (*domain.Account, error) {
	row := d.db.QueryRow(
		`SELECT id, name, frequency, website_url, driver_name, identifiers, created_at, updated_at
		 FROM accounts WHERE id = ?`, id,
	)
	return scanAccount(row)
}

// ListAccounts returns all accounts ordered by creation time.
func (d *DB) ListAccounts() ([]domain.Account, error) {
	rows, err := d.db.Query(
		`SELECT id, name, frequency, website_url, driver_name, identifiers, created_at, updated_at
		 FROM accounts ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccount overwrites mutable account fields.
func (d *DB) UpdateAccount(a domain.Account) error {
	ids, err := json.Marshal(a.Identifiers)
	if err != nil {
		return fmt.Errorf("encode identifiers: %w", err)
	}
	result, err := d.db.Exec(
		`UPDATE accounts SET name = ?, frequency = ?, website_url = ?, driver_name = ?,
		 identifiers = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Frequency, nullStr(a.WebsiteURL), nullStr(a.DriverName),
		string(ids), time.Now().Unix(), a.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account record.
func (d *DB) DeleteAccount(id int64) error {
	result, err := d.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	var website, driver sql.NullString
	var identifiers string
	var createdAt int64
	var updatedAt sql.NullInt64

	err := s.Scan(&a.ID, &a.Name, &a.Frequency, &website, &driver,
		&identifiers, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	a.WebsiteURL = website.String
	a.DriverName = driver.String
	a.CreatedAt = time.Unix(createdAt, 0)
	if updatedAt.Valid {
		a.UpdatedAt = time.Unix(updatedAt.Int64, 0)
	}
	if err := json.Unmarshal([]byte(identifiers), &a.Identifiers); err != nil {
		return nil, fmt.Errorf("decode identifiers: %w", err)
	}
	return &a, nil
}

// ─── Payment Method Repository ──────────────────────────────────────────────

// InsertPaymentMethod stores an encrypted card and returns its id.
func (d *DB) InsertPaymentMethod(pm domain.PaymentMethod) (int64, error) {
	result, err := d.db.Exec(
		`INSERT INTO payment_methods (name, card_type, last_four_digits, encrypted_data, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		pm.Name, pm.CardType, pm.LastFourDigits, pm.EncryptedData, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetPaymentMethod retrieves a payment method by id.
func (d *DB) GetPaymentMethod(id int64) (*domain.PaymentMethod, error) {
	row := d.db.QueryRow(
		`SELECT id, name, card_type, last_four_digits, encrypted_data, created_at
		 FROM payment_methods WHERE id = ?`, id,
	)
	return scanPaymentMethod(row)
}

// ListPaymentMethods returns all stored payment methods.
func (d *DB) ListPaymentMethods() ([]domain.PaymentMethod, error) {
	rows, err := d.db.Query(
		`SELECT id, name, card_type, last_four_digits, encrypted_data, created_at
		 FROM payment_methods ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *pm)
	}
	return methods, rows.Err()
}

// RenamePaymentMethod updates the display name only — card material is
// immutable once stored.
func (d *DB) RenamePaymentMethod(id int64, name string) error {
	result, err := d.db.Exec(`UPDATE payment_methods SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrPaymentMethodNotFound
	}
	return nil
}

// DeletePaymentMethod removes a payment method record.
func (d *DB) DeletePaymentMethod(id int64) error {
	result, err := d.db.Exec(`DELETE FROM payment_methods WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrPaymentMethodNotFound
	}
	return nil
}

func scanPaymentMethod(s scanner) (*domain.PaymentMethod, error) {
	var pm domain.PaymentMethod
	var createdAt int64

	err := s.Scan(&pm.ID, &pm.Name, &pm.CardType, &pm.LastFourDigits,
		&pm.EncryptedData, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPaymentMethodNotFound
	}
	if err != nil {
		return nil, err
	}

	pm.CreatedAt = time.Unix(createdAt, 0)
	return &pm, nil
}
