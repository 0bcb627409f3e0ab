// Package driver implements the subprocess contract for provider
// automation drivers.
//
// A driver is an independent executable resolved by name. It is invoked
// as:
//
//	<script> <command> [<bill_external_id>]
//
// with account identifiers passed as UPPERCASED environment variables,
// and must write exactly one JSON document to stdout:
//
//	{"errors": [...], "bills": [BillRecord...]}   for fetch/history
//	{"errors": [...], "bill": BillRecord}         for pay
//
// A non-empty errors list is a handled failure reported by the driver
// itself; process-level failures (missing script, timeout, crash,
// unparseable output) are classified by the Runner. The exit code is
// advisory only once stdout parses.
package driver

import (
	"encoding/json"
	"strings"
)

// Command is a driver subcommand.
type Command string

const (
	CmdFetch   Command = "fetch"
	CmdPay     Command = "pay"
	CmdHistory Command = "history"
)

// BillRecord is the wire-format representation of one bill as reported
// by a driver.
type BillRecord struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency,omitempty"`
	DueDate     string `json:"dueDate"` // YYYY-MM-DD
	Status      string `json:"status"`  // UNPAID | PAID
}

// Result is a driver's parsed output. It is decoded exactly once at the
// subprocess boundary; downstream code never re-inspects raw JSON.
type Result struct {
	Errors []string     `json:"errors"`
	Bills  []BillRecord `json:"bills,omitempty"`
	Bill   *BillRecord  `json:"bill,omitempty"`

	// Raw is the verbatim stdout document, stored on the task record.
	Raw json.RawMessage `json:"-"`
}

// Failed reports whether the driver signalled a handled failure.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// JoinedErrors returns the driver's error list as one readable string.
func (r *Result) JoinedErrors() string {
	return strings.Join(r.Errors, "; ")
}

// parseResult decodes a driver's stdout document.
func parseResult(stdout []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(stdout, &res); err != nil {
		return nil, err
	}
	res.Raw = json.RawMessage(stdout)
	return &res, nil
}
