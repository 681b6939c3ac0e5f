// Package metrics exposes Prometheus counters for wallet activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lsc",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger operations by name and outcome.",
}, []string{"op", "result"})

var CoinsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lsc",
	Subsystem: "ledger",
	Name:      "coins_issued_total",
	Help:      "LSC created by the system, by transaction type.",
}, []string{"type"})

var CoinsTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lsc",
	Subsystem: "ledger",
	Name:      "coins_transferred_total",
	Help:      "LSC moved between users, by transfer stage.",
}, []string{"stage"})

var BackupsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lsc",
	Subsystem: "jobs",
	Name:      "backups_total",
	Help:      "Users blob snapshots by outcome.",
}, []string{"result"})

// Observe records the outcome of one ledger operation.
func Observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	LedgerOperations.WithLabelValues(op, result).Inc()
}

// Issued records coins minted by the system.
func Issued(txType string, amount decimal.Decimal) {
	CoinsIssued.WithLabelValues(txType).Add(amount.InexactFloat64())
}

// Transferred records coins moving through a send ("sent") or accept ("accepted").
func Transferred(stage string, amount decimal.Decimal) {
	CoinsTransferred.WithLabelValues(stage).Add(amount.InexactFloat64())
}

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lsc",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route template, method and status code.",
}, []string{"route", "method", "code"})
