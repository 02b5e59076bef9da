package coordinator

import (
	"github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"coffeewards/configs"
)

// LogManager is an optional append-only audit trail of transaction
// state transitions, backed by tidwall/wal. The ledger's balances
// themselves are never persisted (spec.md Non-goals: no durable
// storage) — this is strictly a debugging/forensics trail, off by
// default and gated by configs.UseWAL, mirroring how the teacher's
// network/coordinator/log_manager.go wraps the same library around its
// own commit log.
type LogManager struct {
	log *wal.Log
}

type stateRecord struct {
	TxnID uint64 `json:"txn_id"`
	State uint8  `json:"state"`
}

// NewLogManager opens (or no-ops, if configs.UseWAL is false) the audit
// log at path.
func NewLogManager(path string) *LogManager {
	if !configs.UseWAL {
		return &LogManager{}
	}
	l, err := wal.Open(path, nil)
	if err != nil {
		configs.Warn(false, "could not open audit log at "+path+": "+err.Error())
		return &LogManager{}
	}
	return &LogManager{log: l}
}

// writeState appends a transaction's new state to the audit trail. It
// never blocks transaction processing on a write failure: the log is
// advisory, not part of the commit path.
func (m *LogManager) writeState(txnID uint64, state uint8) {
	if m == nil || m.log == nil {
		return
	}
	rec := stateRecord{TxnID: txnID, State: state}
	buf, err := json.Marshal(rec)
	if err != nil {
		configs.Warn(false, err.Error())
		return
	}
	idx, err := m.log.LastIndex()
	if err != nil {
		configs.Warn(false, err.Error())
		return
	}
	if err := m.log.Write(idx+1, buf); err != nil {
		configs.Warn(false, err.Error())
	}
}

// Close releases the underlying log file, if one was opened.
func (m *LogManager) Close() error {
	if m == nil || m.log == nil {
		return nil
	}
	return m.log.Close()
}
