package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// writeDriver installs an executable shell script as a fake driver.
func writeDriver(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write driver: %v", err)
	}
}

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRunner(NewRegistry(dir)), dir
}

// ─── Registry ───────────────────────────────────────────────────────────────

func TestRegistry_ResolveVariants(t *testing.T) {
	dir := t.TempDir()
	writeDriver(t, dir, "ecogas.py", `echo '{}'`)
	reg := NewRegistry(dir)

	path, err := reg.Resolve("ecogas")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if filepath.Base(path) != "ecogas.py" {
		t.Errorf("Resolve() = %q, want ecogas.py", path)
	}
	if !reg.Available("ecogas") {
		t.Error("Available() = false, want true")
	}
}

func TestRegistry_MissingDriver(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	if _, err := reg.Resolve("nope"); !errors.Is(err, domain.ErrDriverNotFound) {
		t.Errorf("Resolve() error = %v, want ErrDriverNotFound", err)
	}
	if reg.Available("") {
		t.Error("Available(\"\") = true, want false")
	}
}

// ─── Failure Classification ─────────────────────────────────────────────────

func TestRun_SuccessfulFetch(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "edenor", `echo '{"errors":[],"bills":[{"id":"X1","amountCents":125099,"currency":"ARS","dueDate":"2026-03-10","status":"UNPAID"}]}'`)

	res, err := r.Run(context.Background(), Invocation{
		Driver:      "edenor",
		Command:     CmdFetch,
		Identifiers: map[string]string{"numero_cuenta": "42"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Failed() {
		t.Errorf("Failed() = true, errors = %v", res.Errors)
	}
	if len(res.Bills) != 1 || res.Bills[0].ID != "X1" || res.Bills[0].AmountCents != 125099 {
		t.Errorf("Bills = %+v", res.Bills)
	}
	if len(res.Raw) == 0 {
		t.Error("Raw stdout should be preserved")
	}
}

func TestRun_ScriptNotFound(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), Invocation{Driver: "ghost", Command: CmdFetch})
	if !errors.Is(err, domain.ErrDriverNotFound) {
		t.Errorf("Run() error = %v, want ErrDriverNotFound", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "slow", `sleep 30`)
	r.Timeout = 200 * time.Millisecond

	_, err := r.Run(context.Background(), Invocation{Driver: "slow", Command: CmdFetch})
	if !errors.Is(err, domain.ErrDriverTimeout) {
		t.Errorf("Run() error = %v, want ErrDriverTimeout", err)
	}
	if !strings.Contains(err.Error(), "time limit") {
		t.Errorf("timeout error should mention the time limit: %v", err)
	}
}

func TestRun_CrashCapturesStderr(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "broken", `echo "login page changed" >&2
exit 3`)

	_, err := r.Run(context.Background(), Invocation{Driver: "broken", Command: CmdFetch})
	if !errors.Is(err, domain.ErrDriverCrashed) {
		t.Fatalf("Run() error = %v, want ErrDriverCrashed", err)
	}
	if !strings.Contains(err.Error(), "login page changed") {
		t.Errorf("crash error should carry a stderr excerpt: %v", err)
	}
}

func TestRun_BadOutput(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "noisy", `echo "<html>not json</html>"`)

	_, err := r.Run(context.Background(), Invocation{Driver: "noisy", Command: CmdFetch})
	if !errors.Is(err, domain.ErrDriverBadOutput) {
		t.Fatalf("Run() error = %v, want ErrDriverBadOutput", err)
	}
	if !strings.Contains(err.Error(), "not json") {
		t.Errorf("bad-output error should carry a stdout excerpt: %v", err)
	}
}

func TestRun_NonZeroExitWithValidJSON(t *testing.T) {
	// A driver that exits non-zero but writes valid JSON is a parsed
	// result, not a crash — output takes precedence over exit code.
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "softfail", `echo '{"errors":["no debt interface found"],"bills":[]}'
exit 1`)

	res, err := r.Run(context.Background(), Invocation{Driver: "softfail", Command: CmdFetch})
	if err != nil {
		t.Fatalf("Run() error = %v, want parsed result", err)
	}
	if !res.Failed() {
		t.Error("Failed() = false, want true")
	}
	if res.JoinedErrors() != "no debt interface found" {
		t.Errorf("JoinedErrors() = %q", res.JoinedErrors())
	}
}

// ─── Parameter Passing ──────────────────────────────────────────────────────

func TestRun_IdentifiersPassedAsUppercasedEnv(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "envcheck", `echo "{\"errors\":[],\"bills\":[{\"id\":\"$NUMERO_CUENTA\",\"amountCents\":1,\"dueDate\":\"2026-01-01\",\"status\":\"UNPAID\"}]}"`)

	res, err := r.Run(context.Background(), Invocation{
		Driver:      "envcheck",
		Command:     CmdFetch,
		Identifiers: map[string]string{"numero_cuenta": "777"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Bills) != 1 || res.Bills[0].ID != "777" {
		t.Errorf("identifier not visible to driver: bills = %+v", res.Bills)
	}
}

func TestRun_PayPassesBillIDAndCardEnv(t *testing.T) {
	r, dir := newTestRunner(t)
	writeDriver(t, dir, "payer", `echo "{\"errors\":[],\"bill\":{\"id\":\"$1\",\"amountCents\":1,\"dueDate\":\"2026-01-01\",\"status\":\"$CARD_EXP_MONTH/$CARD_EXP_YEAR\"}}"`)

	res, err := r.Run(context.Background(), Invocation{
		Driver:         "payer",
		Command:        CmdPay,
		BillExternalID: "F-0099",
		Card:           &security.CardData{CardNumber: "4111111111111111", ExpiryDate: "3/27", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Bill == nil {
		t.Fatal("Bill = nil")
	}
	if res.Bill.ID != "F-0099" {
		t.Errorf("bill external id not passed as argv: %q", res.Bill.ID)
	}
	if res.Bill.Status != "03/2027" {
		t.Errorf("card expiry not normalized in env: %q", res.Bill.Status)
	}
}
