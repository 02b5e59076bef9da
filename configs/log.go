package configs

import (
	"fmt"
	"log"
	"strconv"
	"time"
)

func txnTag(txnID uint64) string {
	return "TXN" + strconv.FormatUint(txnID, 10)
}

func emit(format string, a ...interface{}) {
	if !LogToFile {
		fmt.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
	} else {
		log.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
	}
}

// TxnPrintf logs transaction-scoped debug output, gated by ShowDebugInfo.
func TxnPrintf(txnID uint64, format string, a ...interface{}) {
	if ShowDebugInfo {
		emit(txnTag(txnID)+": "+format, a...)
	}
}

// DPrintf logs general debug output, gated by ShowDebugInfo.
func DPrintf(format string, a ...interface{}) {
	if ShowDebugInfo {
		emit(format, a...)
	}
}

// TPrintf logs test/trace output, gated by ShowTestInfo.
func TPrintf(format string, a ...interface{}) {
	if ShowTestInfo {
		emit(format, a...)
	}
}

// Warn reports a condition violation when cond is false, gated by ShowWarnings.
// Returns cond so call sites can use it inline.
func Warn(cond bool, msg string) bool {
	if ShowWarnings && !cond {
		emit("[WARNING] %s", msg)
	}
	return cond
}

// Assert panics with msg if cond is false. Internal invariant violations
// are fatal to the process — undefined cluster state is worse than a
// restart (spec.md §7).
func Assert(cond bool, msg string) bool {
	if !cond {
		panic("[ASSERT] " + msg)
	}
	return cond
}

// CheckError panics on a non-nil error. Used at the edges of the network
// stack where an error means the process is in a state the actor model
// was not designed to recover from on its own (e.g. a bind failure).
func CheckError(err error) {
	if err != nil {
		panic(err.Error())
	}
}
