package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

// InsertTask creates a new task record in pending state. The row exists
// before any background work starts, so callers can poll immediately.
func (d *DB) InsertTask(task domain.Task) error {
	_, err := d.db.Exec(
		`INSERT INTO tasks (id, type, status, account_id, bill_id, payment_method_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(task.Type), string(task.Status), task.AccountID,
		nullID(task.BillID), nullID(task.PaymentMethodID), task.CreatedAt.Unix(),
	)
	return err
}

// MarkTaskRunning transitions pending → running. Persisted before the
// driver is invoked so pollers observe the running state.
func (d *DB) MarkTaskRunning(id string) error {
	result, err := d.db.Exec(
		`UPDATE tasks SET status = ? WHERE id = ? AND status = ?`,
		string(domain.TaskRunning), id, string(domain.TaskPending),
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// FinishTask writes the terminal transition in a single UPDATE: status,
// result, error, and finished_at land atomically with respect to pollers.
// Only a running task can be finished.
func (d *DB) FinishTask(id string, status domain.TaskStatus, result json.RawMessage, errMsg string) error {
	res, err := d.db.Exec(
		`UPDATE tasks SET status = ?, result = ?, error = ?, finished_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), nullStr(string(result)), nullStr(errMsg),
		time.Now().Unix(), id, string(domain.TaskRunning),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// GetTask retrieves a task by id.
func (d *DB) GetTask(id string) (*domain.Task, error) {
	row := d.db.QueryRow(
		`SELECT id, type, status, account_id, bill_id, payment_method_id, result, error, created_at, finished_at
		 FROM tasks WHERE id = ?`, id,
	)
	return scanTask(row)
}

// ListTasks returns tasks for an account, newest first.
func (d *DB) ListTasks(accountID int64, limit int) ([]domain.Task, error) {
	rows, err := d.db.Query(
		`SELECT id, type, status, account_id, bill_id, payment_method_id, result, error, created_at, finished_at
		 FROM tasks WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var billID, methodID, finishedAt sql.NullInt64
	var result, errMsg sql.NullString
	var createdAt int64

	err := s.Scan(&t.ID, &t.Type, &t.Status, &t.AccountID, &billID, &methodID,
		&result, &errMsg, &createdAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	t.BillID = billID.Int64
	t.PaymentMethodID = methodID.Int64
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	t.Error = errMsg.String
	t.CreatedAt = time.Unix(createdAt, 0)
	if finishedAt.Valid {
		t.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	return &t, nil
}
