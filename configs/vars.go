// Package configs holds process-wide constants and knobs read once at
// startup and handed to actors at spawn, per the no-shared-mutable-globals
// rule: nothing here is mutated after main() finishes flag parsing.
package configs

import "time"

// Message kinds carried on the wire as the Mark field of an envelope.
const (
	MarkStart     string = "Start"
	MarkPrepare   string = "Prepare"
	MarkYes       string = "Yes"
	MarkExecute   string = "Execute"
	MarkFinish    string = "Finish"
	MarkAbort     string = "Abort"
	MarkCommit    string = "Commit"
	MarkAbortAll  string = "AbortAll"
	MarkOkey      string = "Okey"
	MarkOkeyAbort string = "OkeyAbort"
	MarkDisconnect string = "Disconnect"
	MarkConnect   string = "Connect"
)

// Operation kinds for a Transaction.
const (
	KindAdd string = "Add"
	KindSub string = "Sub"
)

// Transaction states, shared by the origin-side and coordinator-side
// state machines described in spec.md §4.1/§4.2.
const (
	None       uint8 = 0
	Starting   uint8 = 1
	Preparing  uint8 = 2
	Executing  uint8 = 3
	Finishing  uint8 = 4
	Committed  uint8 = 5
	Aborted    uint8 = 6
)

// Node actor state (origin view of a debit), spec.md §4.1.
const (
	Idle          uint8 = 0
	AwaitExecute  uint8 = 1
	Brewing       uint8 = 2
	AwaitCommit   uint8 = 3
	Done          uint8 = 4
)

// Client-facing status codes for the Branch protocol, spec.md §6.
const (
	StatusOk                    string = "Ok"
	StatusInsufficientFunds     string = "InsufficientFunds"
	StatusOffline               string = "Offline"
	StatusCoordinatorUnavailable string = "CoordinatorUnavailable"
	StatusBrewFailed            string = "BrewFailed"
	StatusTimeout               string = "Timeout"
	StatusInvalidAmount         string = "InvalidAmount"
)

// System parameters. SaldoInicial and NMax are fixed at build/flag-parse
// time for the lifetime of the process, per spec.md §2/§3.
var (
	SaldoInicial uint64 = 100
	NMax         int    = 3
)

// Port bases, spec.md §6. Exact values are configuration, not protocol.
var (
	BaseTCP    = 6000
	BaseBully  = 7000
	BaseBranch = 8000
	BaseFault  = 9000
)

// Timeouts named directly after the spec's T_bully/T_exec/T_client/T_ping.
var (
	TBully              = 500 * time.Millisecond
	TExec               = 3 * time.Second
	TClient             = 2 * time.Second
	TPing               = 500 * time.Millisecond
	CrashFailureTimeout = 5 * time.Second
	MaxConnectionHandler = 16
)

// UseWAL gates the optional on-disk audit trail for transaction state
// transitions (network/coordinator/log_manager.go). It is off
// by default: balances themselves are never persisted, per spec.md's
// non-goals.
var UseWAL = false

// Debugging parameters, mirrored from the teacher's configs/glob_var.go.
var (
	ShowDebugInfo = false
	ShowWarnings  = ShowDebugInfo
	ShowTestInfo  = ShowDebugInfo
	LogToFile     = false
)
