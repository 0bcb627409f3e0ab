// Package domain holds the core entities: accounts, bills, payments,
// payment methods, and the tasks that drive them through external
// provider drivers.
package domain

import (
	"encoding/json"
	"time"
)

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskType categorizes the kind of driver work.
type TaskType string

const (
	TaskSync TaskType = "sync"
	TaskPay  TaskType = "pay"
)

// Task is a persisted unit of asynchronous driver work.
// Transitions are one-directional: pending → running → {completed, failed}.
// Result is set only on completed, Error only on failed, and FinishedAt
// exactly once, on the terminal transition.
type Task struct {
	ID              string          `json:"id"`
	Type            TaskType        `json:"type"`
	Status          TaskStatus      `json:"status"`
	AccountID       int64           `json:"account_id"`
	BillID          int64           `json:"bill_id,omitempty"`
	PaymentMethodID int64           `json:"payment_method_id,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	FinishedAt      time.Time       `json:"finished_at,omitempty"`
}

// IsTerminal returns true if the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// Duration returns how long the task took (0 if not finished).
func (t *Task) Duration() time.Duration {
	if t.CreatedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.CreatedAt)
}
