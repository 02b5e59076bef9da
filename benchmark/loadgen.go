// Package benchmark drives synthetic load against a running cluster's
// branch protocol (network/branch), favoring a small set of "regular"
// accounts the way real coffee-shop traffic clusters around repeat
// customers. Grounded on the teacher's benchmark/ycsb.go, which uses
// the same generator for skewed key selection over a much larger
// OLTP keyspace; here it drives account ids instead of DB keys.
package benchmark

import (
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/pingcap/go-ycsb/pkg/generator"

	"coffeewards/configs"
	"coffeewards/network/branch"
)

// accountSkewness mirrors the teacher's YCSBDataSkewness: most requests
// land on a small set of regular accounts rather than spreading evenly.
const accountSkewness = 0.9

// Config controls one load generator run.
type Config struct {
	NumAccounts uint64
	CreditRatio float64 // fraction of requests that are credits, the rest debits
	Amount      uint64
	Requests    int
	Target      string // branch-protocol UDP address to send requests to
}

// Result tallies outcomes by status string, plus how many requests got
// no usable reply: a read timeout or error at the UDP layer itself, or
// a reply that did not decode (distinct from a StatusTimeout reply,
// which means the server answered "too slow").
type Result struct {
	ByStatus  map[string]int
	NoReply   int
	Completed int
}

// Run fires cfg.Requests sequential requests at cfg.Target and
// summarizes the outcomes. It is intentionally simple: this generator
// demonstrates skewed access and the status vocabulary, not a
// high-throughput benchmarking harness.
func Run(cfg Config) (Result, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		return Result{}, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	zipf := generator.NewZipfianWithRange(0, int64(cfg.NumAccounts-1), accountSkewness)
	rnd := rand.New(rand.NewSource(int64(cfg.NumAccounts) + 1))
	var corr uint64

	res := Result{ByStatus: make(map[string]int)}
	buf := make([]byte, 512)
	for i := 0; i < cfg.Requests; i++ {
		accountID := uint64(zipf.Next(rnd))
		kind := configs.KindSub
		if rnd.Float64() < cfg.CreditRatio {
			kind = configs.KindAdd
		}
		corr = atomic.AddUint64(&corr, 1)
		req := branch.Request{CorrID: corr, AccountID: accountID, Amount: cfg.Amount, Kind: kind}
		payload, err := json.Marshal(req)
		if err != nil {
			return res, err
		}
		if _, err := conn.Write(payload); err != nil {
			return res, err
		}
		conn.SetReadDeadline(time.Now().Add(configs.TClient))
		n, err := conn.Read(buf)
		if err != nil {
			res.NoReply++
			continue
		}
		var reply branch.Reply
		if err := json.Unmarshal(buf[:n], &reply); err != nil {
			res.NoReply++
			continue
		}
		res.ByStatus[reply.Status]++
		res.Completed++
	}
	return res, nil
}
