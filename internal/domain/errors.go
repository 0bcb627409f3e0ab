package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Entity lookups
	ErrAccountNotFound       = errors.New("account not found")
	ErrBillNotFound          = errors.New("bill not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrTaskNotFound          = errors.New("task not found")

	// Task submission
	ErrNoDriverAvailable = errors.New("no driver available for this account")

	// Driver protocol
	ErrDriverNotFound  = errors.New("driver script not found")
	ErrDriverTimeout   = errors.New("driver exceeded the time limit")
	ErrDriverCrashed   = errors.New("driver exited without output")
	ErrDriverBadOutput = errors.New("driver produced unparseable output")

	// Encryption gateway
	ErrEncryptionKeyMissing = errors.New("card encryption key not configured")
	ErrDecryptionFailed     = errors.New("card data decryption failed")
)
