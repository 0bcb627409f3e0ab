package billing

import (
	"fmt"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/infra/driver"
	"github.com/cuentas-labs/cuentas/internal/infra/metrics"
	"github.com/cuentas-labs/cuentas/internal/infra/sqlite"
)

// Recorder applies the side effect of a successful pay task.
type Recorder struct {
	db *sqlite.DB
}

// NewRecorder creates a payment recorder.
func NewRecorder(db *sqlite.DB) *Recorder {
	return &Recorder{db: db}
}

// RecordPayment marks the bill PAID and inserts exactly one Payment —
// if and only if the driver reported PAID. Any other reported status
// leaves bill and payment state untouched (a submitted-but-unconfirmed
// payment is not an error; the task still completes).
//
// The payment amount is the bill's amount converted from minor to
// major currency units.
func (r *Recorder) RecordPayment(bill *domain.Bill, reported *driver.BillRecord, paymentMethodID int64) error {
	if reported == nil || domain.BillStatus(reported.Status) != domain.BillPaid {
		return nil
	}

	now := time.Now()
	if err := r.db.MarkBillPaid(bill.ID, now); err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}

	_, err := r.db.InsertPayment(domain.Payment{
		AccountID:       bill.AccountID,
		PaymentMethodID: paymentMethodID,
		BillID:          bill.ID,
		Amount:          float64(bill.AmountCents) / 100,
		PaidAt:          now,
		Status:          "completed",
	})
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	metrics.PaymentsRecorded.Inc()
	return nil
}
