// Package orchestrator owns the task state machine and drives driver
// invocations to completion without blocking the caller.
//
// Lifecycle: pending → running → {completed, failed}, one-directional,
// no retries, no re-entry, no cancellation of in-flight tasks. The
// pending row is persisted before Submit returns so callers can poll
// immediately; the running transition is persisted before the driver
// starts; the terminal transition lands atomically with its result and
// error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuentas-labs/cuentas/internal/app/billing"
	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/infra/driver"
	"github.com/cuentas-labs/cuentas/internal/infra/metrics"
	"github.com/cuentas-labs/cuentas/internal/infra/sqlite"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// Config configures the orchestrator's worker pool.
type Config struct {
	// MaxConcurrent bounds simultaneously running tasks. Default 4.
	MaxConcurrent int
}

// Orchestrator schedules and executes tasks on a bounded worker pool.
// Tasks for the same account serialize on a per-account mutex so two
// syncs never race on bill upserts.
type Orchestrator struct {
	db         *sqlite.DB
	registry   *driver.Registry
	runner     *driver.Runner
	cards      *security.Gateway
	reconciler *billing.Reconciler
	recorder   *billing.Recorder

	slots        chan struct{} // worker pool semaphore
	accountLocks sync.Map      // account id → *sync.Mutex
	wg           sync.WaitGroup
}

// New creates an orchestrator over its collaborators.
func New(cfg Config, db *sqlite.DB, registry *driver.Registry, runner *driver.Runner, cards *security.Gateway) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Orchestrator{
		db:         db,
		registry:   registry,
		runner:     runner,
		cards:      cards,
		reconciler: billing.NewReconciler(db),
		recorder:   billing.NewRecorder(db),
		slots:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// SubmitSync creates a sync task for an account and schedules it.
// Fails with ErrNoDriverAvailable before any Task row is created when
// the account's driver cannot be resolved.
func (o *Orchestrator) SubmitSync(account *domain.Account) (string, error) {
	if account.DriverName == "" || !o.registry.Available(account.DriverName) {
		return "", fmt.Errorf("%w: account %d", domain.ErrNoDriverAvailable, account.ID)
	}
	return o.submit(domain.Task{
		Type:      domain.TaskSync,
		AccountID: account.ID,
	})
}

// SubmitPay creates a pay task for a bill, optionally naming a payment
// method, and schedules it.
func (o *Orchestrator) SubmitPay(account *domain.Account, bill *domain.Bill, paymentMethodID int64) (string, error) {
	if account.DriverName == "" || !o.registry.Available(account.DriverName) {
		return "", fmt.Errorf("%w: account %d", domain.ErrNoDriverAvailable, account.ID)
	}
	return o.submit(domain.Task{
		Type:            domain.TaskPay,
		AccountID:       account.ID,
		BillID:          bill.ID,
		PaymentMethodID: paymentMethodID,
	})
}

// submit persists the pending row, then hands the task to the pool.
func (o *Orchestrator) submit(task domain.Task) (string, error) {
	task.ID = uuid.NewString()
	task.Status = domain.TaskPending
	task.CreatedAt = time.Now()

	if err := o.db.InsertTask(task); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	metrics.TaskQueueDepth.Inc()
	o.wg.Add(1)
	go o.execute(task)

	return task.ID, nil
}

// Wait blocks until all in-flight tasks have finished, or the context
// expires. Used for graceful shutdown.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// accountLock returns the serialization mutex for one account.
func (o *Orchestrator) accountLock(accountID int64) *sync.Mutex {
	mu, _ := o.accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// execute runs one task to its terminal state. Every failure path —
// driver call, reconciliation, recording, persistence — lands in a
// failed transition; a task is never left running.
func (o *Orchestrator) execute(task domain.Task) {
	defer o.wg.Done()

	// Serialize per account, then take a pool slot.
	lock := o.accountLock(task.AccountID)
	lock.Lock()
	defer lock.Unlock()

	o.slots <- struct{}{}
	defer func() { <-o.slots }()

	metrics.TaskQueueDepth.Dec()
	metrics.TasksActive.Inc()
	defer metrics.TasksActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			o.fail(task, nil, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	if err := o.db.MarkTaskRunning(task.ID); err != nil {
		log.Printf("[orchestrator] task %s: mark running: %v", task.ID, err)
		return
	}

	result, err := o.perform(task)
	if err != nil {
		o.fail(task, result, err)
		return
	}

	if err := o.db.FinishTask(task.ID, domain.TaskCompleted, result.Raw, ""); err != nil {
		log.Printf("[orchestrator] task %s: finish: %v", task.ID, err)
		return
	}
	metrics.TasksCompleted.WithLabelValues(string(task.Type)).Inc()
	log.Printf("[orchestrator] task %s (%s) completed", task.ID, task.Type)
}

// fail writes the terminal failed transition. The raw driver document,
// when one was parsed, is kept on the task alongside the error.
func (o *Orchestrator) fail(task domain.Task, result *driver.Result, cause error) {
	var raw []byte
	if result != nil {
		raw = result.Raw
	}
	if err := o.db.FinishTask(task.ID, domain.TaskFailed, raw, cause.Error()); err != nil {
		log.Printf("[orchestrator] task %s: finish failed: %v", task.ID, err)
		return
	}
	metrics.TasksFailed.WithLabelValues(string(task.Type), failReason(cause)).Inc()
	log.Printf("[orchestrator] task %s (%s) failed: %v", task.ID, task.Type, cause)
}

// perform executes the driver call and its side effects, returning the
// parsed driver result (possibly alongside an error for soft failures).
func (o *Orchestrator) perform(task domain.Task) (*driver.Result, error) {
	account, err := o.db.GetAccount(task.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	switch task.Type {
	case domain.TaskSync:
		return o.performSync(task, account)
	case domain.TaskPay:
		return o.performPay(task, account)
	default:
		return nil, fmt.Errorf("unknown task type %q", task.Type)
	}
}

func (o *Orchestrator) performSync(task domain.Task, account *domain.Account) (*driver.Result, error) {
	result, err := o.runner.Run(context.Background(), driver.Invocation{
		Driver:      account.DriverName,
		Command:     driver.CmdFetch,
		Identifiers: account.Identifiers,
	})
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return result, errors.New(result.JoinedErrors())
	}

	if errs := o.reconciler.Reconcile(account.ID, result.Bills); len(errs) > 0 {
		return result, fmt.Errorf("reconciliation: %w", errors.Join(errs...))
	}
	return result, nil
}

func (o *Orchestrator) performPay(task domain.Task, account *domain.Account) (*driver.Result, error) {
	bill, err := o.db.GetBill(task.BillID)
	if err != nil {
		return nil, fmt.Errorf("load bill: %w", err)
	}

	// Card data is decrypted transiently, for this invocation only; the
	// plaintext is dropped as soon as Run returns.
	var card *security.CardData
	if task.PaymentMethodID != 0 {
		pm, err := o.db.GetPaymentMethod(task.PaymentMethodID)
		if err != nil {
			return nil, fmt.Errorf("load payment method: %w", err)
		}
		decrypted, err := o.cards.Decrypt(pm.EncryptedData)
		if err != nil {
			return nil, err
		}
		card = &decrypted
	}

	result, err := o.runner.Run(context.Background(), driver.Invocation{
		Driver:         account.DriverName,
		Command:        driver.CmdPay,
		Identifiers:    account.Identifiers,
		BillExternalID: bill.ExternalID,
		Card:           card,
	})
	card = nil
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return result, errors.New(result.JoinedErrors())
	}

	if err := o.recorder.RecordPayment(bill, result.Bill, task.PaymentMethodID); err != nil {
		return result, err
	}
	return result, nil
}

// failReason maps a failure to a coarse metrics label.
func failReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDriverNotFound):
		return "driver_not_found"
	case errors.Is(err, domain.ErrDriverTimeout):
		return "driver_timeout"
	case errors.Is(err, domain.ErrDriverCrashed):
		return "driver_crashed"
	case errors.Is(err, domain.ErrDriverBadOutput):
		return "driver_bad_output"
	case errors.Is(err, domain.ErrEncryptionKeyMissing), errors.Is(err, domain.ErrDecryptionFailed):
		return "card_decryption"
	default:
		return "other"
	}
}
