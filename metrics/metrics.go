// Package metrics implements the coordinator's Prometheus counters for
// escrow transitions, deposit scans, and release attempts, the custom
// instrumentation escrowrpc's go-grpc-prometheus wiring does not cover on
// its own since that library only counts RPC calls, not domain events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EscrowTransitions counts every Status change the trade state
	// machine commits, labeled by the (from, to) pair.
	EscrowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowd",
		Name:      "escrow_transitions_total",
		Help:      "Total number of escrow status transitions, by from/to status.",
	}, []string{"from", "to"})

	// DepositScans counts each vault address the watcher polls, labeled
	// by chain and whether the scan found any new transfers.
	DepositScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowd",
		Name:      "deposit_scans_total",
		Help:      "Total number of deposit-watcher scan passes, by chain and outcome.",
	}, []string{"chain", "outcome"})

	// ReleaseAttempts counts every ReleaseFunds/RefundFunds call the
	// trade state machine makes, labeled by chain, kind (release or
	// refund) and outcome.
	ReleaseAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowd",
		Name:      "release_attempts_total",
		Help:      "Total number of on-chain release/refund attempts, by chain and outcome.",
	}, []string{"chain", "kind", "outcome"})
)
