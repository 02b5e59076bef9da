// Package branch implements the client-facing UDP protocol of
// spec.md §6: a coffee-machine branch submits a credit or debit request
// and receives a status back, unaware of which node happens to be
// hosting the coordinator role at the time.
package branch

// Request is a client-submitted transaction: a branch terminal applying
// a credit or debit to an account, correlated by CorrID so a retried
// request on packet loss can be told apart from a fresh one.
type Request struct {
	CorrID    uint64 `json:"corr_id"`
	AccountID uint64 `json:"account_id"`
	Amount    uint64 `json:"amount"`
	Kind      string `json:"kind"`
}

// Reply carries the outcome back to the branch terminal.
type Reply struct {
	CorrID  uint64 `json:"corr_id"`
	Status  string `json:"status"`
	Balance uint64 `json:"balance"`
}
