// Package metrics exposes the node's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerWrites counts ledger write attempts by result:
	// success, reverted, timeout, unavailable, rejected.
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_ledger_writes_total",
		Help: "Ledger event write attempts by result.",
	}, []string{"result"})

	// EventsReconciled counts events drained from the ledger stream by
	// outcome: upserted, skipped, failed.
	EventsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_events_reconciled_total",
		Help: "Ledger stream events processed by the reconciler by outcome.",
	}, []string{"outcome"})

	// StreamReconnects counts reconnects of the ledger event subscription.
	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_stream_reconnects_total",
		Help: "Reconnects of the ledger event subscription.",
	})
)
