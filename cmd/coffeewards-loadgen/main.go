// Command coffeewards-loadgen fires synthetic credit/debit traffic at
// one node's branch listener, reporting how outcomes split across the
// client-facing status vocabulary (spec.md §6). It does not simulate a
// real coffee machine's order format or brew timing — see
// SPEC_FULL.md §12 for this generator.
package main

import (
	"flag"
	"fmt"

	"coffeewards/benchmark"
	"coffeewards/configs"
)

func main() {
	target := flag.String("target", "127.0.0.1:8001", "branch-protocol UDP address to target")
	accounts := flag.Uint64("accounts", 20, "number of distinct accounts to spread requests across")
	creditRatio := flag.Float64("credit-ratio", 0.3, "fraction of requests that are credits")
	amount := flag.Uint64("amount", 5, "amount per request")
	requests := flag.Int("requests", 200, "number of requests to send")
	flag.Parse()

	res, err := benchmark.Run(benchmark.Config{
		NumAccounts: *accounts,
		CreditRatio: *creditRatio,
		Amount:      *amount,
		Requests:    *requests,
		Target:      *target,
	})
	configs.CheckError(err)

	fmt.Printf("completed=%d no_reply=%d\n", res.Completed, res.NoReply)
	for status, count := range res.ByStatus {
		fmt.Printf("  %s: %d\n", status, count)
	}
}
