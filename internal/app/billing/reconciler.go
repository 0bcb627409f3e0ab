// Package billing applies driver results to persistent bill and
// payment state: reconciliation merges fetched bill lists via upsert
// keyed by (account, external id), and the recorder writes the side
// effect of a successful pay.
package billing

import (
	"fmt"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/infra/driver"
	"github.com/cuentas-labs/cuentas/internal/infra/metrics"
	"github.com/cuentas-labs/cuentas/internal/infra/sqlite"
)

// DefaultCurrency applies when a driver omits the currency field.
const DefaultCurrency = "ARS"

const dateLayout = "2006-01-02"

// Reconciler merges driver-reported bills into persisted state.
type Reconciler struct {
	db *sqlite.DB
}

// NewReconciler creates a reconciler.
func NewReconciler(db *sqlite.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Reconcile upserts each reported record for one account. Records are
// processed independently: a malformed record is collected as an error
// and does not abort the rest of the batch; upserts already applied
// stay committed. Returns the per-record errors (empty on full success).
//
// Reconciling the same record twice is idempotent — the second pass
// overwrites the row with identical values, preserving row identity.
func (r *Reconciler) Reconcile(accountID int64, records []driver.BillRecord) []error {
	var errs []error
	for _, rec := range records {
		if err := r.apply(accountID, rec); err != nil {
			errs = append(errs, fmt.Errorf("bill %q: %w", rec.ID, err))
			continue
		}
		metrics.BillsReconciled.Inc()
	}
	return errs
}

// apply upserts a single record.
func (r *Reconciler) apply(accountID int64, rec driver.BillRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("missing external id")
	}
	dueDate, err := time.Parse(dateLayout, rec.DueDate)
	if err != nil {
		return fmt.Errorf("parse due date %q: %w", rec.DueDate, err)
	}
	currency := rec.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	status := domain.BillStatus(rec.Status)

	existing, err := r.db.GetBillByExternalID(accountID, rec.ID)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if existing != nil {
		// A later sync may correct a previously-fetched bill (amount
		// revision, or a PAID transition observed out-of-band).
		return r.db.UpdateBillDetails(existing.ID, rec.AmountCents, currency, dueDate, status)
	}

	_, err = r.db.InsertBill(domain.Bill{
		AccountID:   accountID,
		ExternalID:  rec.ID,
		AmountCents: rec.AmountCents,
		Currency:    currency,
		DueDate:     dueDate,
		Status:      status,
	})
	return err
}
