package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/infra/metrics"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// DefaultTimeout is the wall-clock bound on one driver invocation.
// It is a configuration constant, not negotiable per call.
const DefaultTimeout = 120 * time.Second

const (
	stderrExcerptLimit = 500
	stdoutExcerptLimit = 200
)

// Invocation describes one driver call.
type Invocation struct {
	Driver      string
	Command     Command
	Identifiers map[string]string

	// BillExternalID is the second positional argument, pay only.
	BillExternalID string

	// Card is the decrypted card payload for pay, passed to the child
	// via environment variables only. Nil when no payment method was
	// selected. The caller discards it once Run returns.
	Card *security.CardData
}

// Runner executes driver scripts under the subprocess contract.
type Runner struct {
	registry *Registry

	// Timeout bounds one invocation. Defaults to DefaultTimeout;
	// tests shorten it.
	Timeout time.Duration
}

// NewRunner creates a runner over a driver registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry, Timeout: DefaultTimeout}
}

// Run invokes a driver and classifies the outcome:
//
//  1. script missing             → ErrDriverNotFound (no process started)
//  2. wall-clock timeout         → ErrDriverTimeout
//  3. non-zero exit, no stdout   → ErrDriverCrashed (stderr excerpt)
//  4. stdout not parseable JSON  → ErrDriverBadOutput (stdout excerpt)
//  5. otherwise the parsed result, even on non-zero exit — a driver may
//     report a soft error with exit 0 or vice versa.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	script, err := r.registry.Resolve(inv.Driver)
	if err != nil {
		return nil, err
	}

	args := []string{string(inv.Command)}
	if inv.Command == CmdPay && inv.BillExternalID != "" {
		args = append(args, inv.BillExternalID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: 8192}

	cmd := exec.CommandContext(ctx, script, args...)
	cmd.Env = buildEnv(inv.Identifiers, inv.Card)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	started := time.Now()
	runErr := cmd.Run()
	metrics.DriverRunSeconds.WithLabelValues(string(inv.Command)).Observe(time.Since(started).Seconds())

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w (%s)", domain.ErrDriverTimeout, r.Timeout)
	}

	out := strings.TrimSpace(stdout.String())
	if runErr != nil && out == "" {
		detail := excerpt(stderr.String(), stderrExcerptLimit)
		if detail == "" {
			detail = runErr.Error()
		}
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrDriverCrashed, inv.Driver, detail)
	}

	result, err := parseResult([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDriverBadOutput, excerpt(out, stdoutExcerptLimit))
	}
	return result, nil
}

// buildEnv assembles the child environment: the parent env, one
// UPPERCASED variable per identifier, and — for pay with card data —
// the CARD_* variables. Card values never touch the command line.
func buildEnv(identifiers map[string]string, card *security.CardData) []string {
	env := os.Environ()
	for key, value := range identifiers {
		env = append(env, strings.ToUpper(key)+"="+value)
	}
	if card != nil {
		env = append(env,
			"CARD_NUMBER="+card.CardNumber,
			"CARD_EXP_MONTH="+card.ExpMonth(),
			"CARD_EXP_YEAR="+card.ExpYear(),
			"CARD_CVV="+card.CVV,
		)
	}
	return env
}

// excerpt truncates free-text process output for error messages.
func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// limitedBuffer is a thread-safe buffer that keeps only the last N
// bytes. Captures driver stderr without unbounded memory usage.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	if b.buf.Len() > b.max {
		data := b.buf.Bytes()
		b.buf.Reset()
		b.buf.Write(data[len(data)-b.max:])
	}
	return n, err
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
