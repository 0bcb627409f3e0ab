package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestAccount(t *testing.T, db *DB) int64 {
	t.Helper()
	id, err := db.InsertAccount(domain.Account{
		Name:        "Gas natural",
		Frequency:   "bimonthly",
		DriverName:  "ecogas",
		Identifiers: map[string]string{"numero_cuenta": "123456"},
	})
	if err != nil {
		t.Fatalf("InsertAccount() error: %v", err)
	}
	return id
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "cuentas.db")); os.IsNotExist(err) {
		t.Error("cuentas.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestAccount_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	id := insertTestAccount(t, db)

	got, err := db.GetAccount(id)
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if got.Name != "Gas natural" {
		t.Errorf("Name = %q, want %q", got.Name, "Gas natural")
	}
	if got.DriverName != "ecogas" {
		t.Errorf("DriverName = %q, want %q", got.DriverName, "ecogas")
	}
	if got.Identifiers["numero_cuenta"] != "123456" {
		t.Errorf("Identifiers = %v, missing numero_cuenta", got.Identifiers)
	}
}

func TestAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetAccount(999); err != domain.ErrAccountNotFound {
		t.Errorf("GetAccount(999) error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccount_Update(t *testing.T) {
	db := newTestDB(t)
	id := insertTestAccount(t, db)

	a, _ := db.GetAccount(id)
	a.Name = "Gas natural (casa)"
	a.Identifiers["cliente"] = "999"
	if err := db.UpdateAccount(*a); err != nil {
		t.Fatalf("UpdateAccount() error: %v", err)
	}

	got, _ := db.GetAccount(id)
	if got.Name != "Gas natural (casa)" {
		t.Errorf("Name = %q after update", got.Name)
	}
	if got.Identifiers["cliente"] != "999" {
		t.Errorf("Identifiers = %v, missing cliente", got.Identifiers)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set after update")
	}
}

// ─── Bills ──────────────────────────────────────────────────────────────────

func TestBill_InsertAndLookupByExternalID(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	due, _ := time.Parse("2006-01-02", "2026-03-10")
	id, err := db.InsertBill(domain.Bill{
		AccountID:   accountID,
		ExternalID:  "X1",
		AmountCents: 125099,
		Currency:    "ARS",
		DueDate:     due,
		Status:      domain.BillUnpaid,
	})
	if err != nil {
		t.Fatalf("InsertBill() error: %v", err)
	}

	got, err := db.GetBillByExternalID(accountID, "X1")
	if err != nil {
		t.Fatalf("GetBillByExternalID() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetBillByExternalID() returned nil")
	}
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.AmountCents != 125099 {
		t.Errorf("AmountCents = %d, want 125099", got.AmountCents)
	}
	if !got.DueDate.Equal(due) {
		t.Errorf("DueDate = %v, want %v", got.DueDate, due)
	}
}

func TestBill_ExternalIDMissing(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	got, err := db.GetBillByExternalID(accountID, "nope")
	if err != nil {
		t.Fatalf("GetBillByExternalID() error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown external id, got %+v", got)
	}
}

func TestBill_UpdateDetailsPreservesIdentity(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	due, _ := time.Parse("2006-01-02", "2026-03-10")
	id, _ := db.InsertBill(domain.Bill{
		AccountID: accountID, ExternalID: "X1", AmountCents: 1000,
		Currency: "ARS", DueDate: due, Status: domain.BillUnpaid,
	})

	newDue, _ := time.Parse("2006-01-02", "2026-04-01")
	if err := db.UpdateBillDetails(id, 2000, "ARS", newDue, domain.BillPaid); err != nil {
		t.Fatalf("UpdateBillDetails() error: %v", err)
	}

	got, _ := db.GetBillByExternalID(accountID, "X1")
	if got.ID != id {
		t.Errorf("row identity changed: ID = %d, want %d", got.ID, id)
	}
	if got.AmountCents != 2000 || got.Status != domain.BillPaid {
		t.Errorf("got amount=%d status=%s, want 2000/PAID", got.AmountCents, got.Status)
	}

	bills, _ := db.ListBills(accountID, "")
	if len(bills) != 1 {
		t.Errorf("ListBills() = %d rows, want 1", len(bills))
	}
}

func TestBill_MarkPaid(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	due, _ := time.Parse("2006-01-02", "2026-03-10")
	id, _ := db.InsertBill(domain.Bill{
		AccountID: accountID, ExternalID: "X1", AmountCents: 1000,
		Currency: "ARS", DueDate: due, Status: domain.BillUnpaid,
	})

	if err := db.MarkBillPaid(id, time.Now()); err != nil {
		t.Fatalf("MarkBillPaid() error: %v", err)
	}
	got, _ := db.GetBill(id)
	if got.Status != domain.BillPaid {
		t.Errorf("Status = %s, want PAID", got.Status)
	}
	if got.PaidAt.IsZero() {
		t.Error("PaidAt should be stamped")
	}
}

func TestBill_ListFilters(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	due, _ := time.Parse("2006-01-02", "2026-03-10")
	db.InsertBill(domain.Bill{AccountID: accountID, ExternalID: "A", AmountCents: 1, Currency: "ARS", DueDate: due, Status: domain.BillUnpaid})
	db.InsertBill(domain.Bill{AccountID: accountID, ExternalID: "B", AmountCents: 2, Currency: "ARS", DueDate: due, Status: domain.BillPaid})

	unpaid, err := db.ListBills(accountID, domain.BillUnpaid)
	if err != nil {
		t.Fatalf("ListBills() error: %v", err)
	}
	if len(unpaid) != 1 || unpaid[0].ExternalID != "A" {
		t.Errorf("unpaid filter returned %+v", unpaid)
	}
}

// ─── Payments ───────────────────────────────────────────────────────────────

func TestPayment_InsertAndList(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	id, err := db.InsertPayment(domain.Payment{
		AccountID: accountID,
		Amount:    500.00,
		Status:    "completed",
	})
	if err != nil {
		t.Fatalf("InsertPayment() error: %v", err)
	}

	got, err := db.GetPayment(id)
	if err != nil {
		t.Fatalf("GetPayment() error: %v", err)
	}
	if got.Amount != 500.00 {
		t.Errorf("Amount = %f, want 500.00", got.Amount)
	}
	if got.PaidAt.IsZero() {
		t.Error("PaidAt should default to now")
	}

	payments, _ := db.ListPayments(accountID)
	if len(payments) != 1 {
		t.Errorf("ListPayments() = %d rows, want 1", len(payments))
	}
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func TestTask_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	task := domain.Task{
		ID:        "task-1",
		Type:      domain.TaskSync,
		Status:    domain.TaskPending,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
	if err := db.InsertTask(task); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}

	if err := db.MarkTaskRunning("task-1"); err != nil {
		t.Fatalf("MarkTaskRunning() error: %v", err)
	}
	got, _ := db.GetTask("task-1")
	if got.Status != domain.TaskRunning {
		t.Errorf("Status = %s, want running", got.Status)
	}
	if !got.FinishedAt.IsZero() {
		t.Error("FinishedAt must not be set before the terminal transition")
	}

	result := json.RawMessage(`{"errors":[],"bills":[]}`)
	if err := db.FinishTask("task-1", domain.TaskCompleted, result, ""); err != nil {
		t.Fatalf("FinishTask() error: %v", err)
	}
	got, _ = db.GetTask("task-1")
	if got.Status != domain.TaskCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if string(got.Result) != string(result) {
		t.Errorf("Result = %s, want %s", got.Result, result)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt should be stamped on the terminal transition")
	}
}

func TestTask_TransitionsAreMonotonic(t *testing.T) {
	db := newTestDB(t)
	accountID := insertTestAccount(t, db)

	db.InsertTask(domain.Task{
		ID: "task-2", Type: domain.TaskSync, Status: domain.TaskPending,
		AccountID: accountID, CreatedAt: time.Now(),
	})

	// pending → completed directly must not happen
	if err := db.FinishTask("task-2", domain.TaskCompleted, nil, ""); err == nil {
		t.Error("FinishTask on a pending task should fail")
	}

	db.MarkTaskRunning("task-2")
	if err := db.FinishTask("task-2", domain.TaskFailed, nil, "boom"); err != nil {
		t.Fatalf("FinishTask() error: %v", err)
	}

	// A second terminal transition must be rejected
	if err := db.FinishTask("task-2", domain.TaskCompleted, nil, ""); err == nil {
		t.Error("second terminal transition should fail")
	}
	// Re-running a finished task must be rejected
	if err := db.MarkTaskRunning("task-2"); err == nil {
		t.Error("MarkTaskRunning on a failed task should fail")
	}

	got, _ := db.GetTask("task-2")
	if got.Status != domain.TaskFailed || got.Error != "boom" {
		t.Errorf("task = %s/%q, want failed/boom", got.Status, got.Error)
	}
}

func TestTask_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetTask("missing"); err != domain.ErrTaskNotFound {
		t.Errorf("GetTask(missing) error = %v, want ErrTaskNotFound", err)
	}
}

// ─── Payment Methods ────────────────────────────────────────────────────────

func TestPaymentMethod_StoresOnlyCiphertext(t *testing.T) {
	db := newTestDB(t)

	id, err := db.InsertPaymentMethod(domain.PaymentMethod{
		Name:           "Visa terminada en 1234",
		CardType:       "credit",
		LastFourDigits: "1234",
		EncryptedData:  []byte{0xde, 0xad, 0xbe, 0xef},
	})
	if err != nil {
		t.Fatalf("InsertPaymentMethod() error: %v", err)
	}

	got, err := db.GetPaymentMethod(id)
	if err != nil {
		t.Fatalf("GetPaymentMethod() error: %v", err)
	}
	if got.LastFourDigits != "1234" {
		t.Errorf("LastFourDigits = %q", got.LastFourDigits)
	}
	if len(got.EncryptedData) != 4 {
		t.Errorf("EncryptedData length = %d, want 4", len(got.EncryptedData))
	}
}
