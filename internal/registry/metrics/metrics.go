// Package metrics exposes the registry's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry's collectors, registered on construction.
type Metrics struct {
	RegistrationsPrepared prometheus.Counter
	TitlesMinted          prometheus.Counter
	MintsReplayed         prometheus.Counter
	RegistrationFailures  *prometheus.CounterVec
	ChainRetries          *prometheus.CounterVec
	MintDuration          prometheus.Histogram
	ConsistencyFailures   prometheus.Counter
	SalesConfirmed        prometheus.Counter
	EscrowWithdrawals     prometheus.Counter
}

// New registers the collectors on reg. Passing nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RegistrationsPrepared: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_registrations_prepared_total",
			Help: "Registrations that produced a payload hash awaiting signature.",
		}),
		TitlesMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_titles_minted_total",
			Help: "Titles minted and recorded in the ledger.",
		}),
		MintsReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_mints_replayed_total",
			Help: "Ledger records recovered by replaying a confirmed mint transaction.",
		}),
		RegistrationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_registration_failures_total",
			Help: "Registration executions that failed, by reason.",
		}, []string{"reason"}),
		ChainRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_chain_retries_total",
			Help: "Chain submissions re-attempted after a transient failure, by operation.",
		}, []string{"op"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "landledger_mint_duration_seconds",
			Help:    "Wall time from mint submission to confirmed receipt.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ConsistencyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_consistency_failures_total",
			Help: "Mints confirmed on chain whose ledger write failed.",
		}),
		SalesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_sales_confirmed_total",
			Help: "Ownership transfers confirmed from marketplace sale events.",
		}),
		EscrowWithdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "landledger_escrow_withdrawals_total",
			Help: "Escrow withdrawals paid out to sellers.",
		}),
	}
}

// Failure reasons recorded on landledger_registration_failures_total.
const (
	ReasonSignature   = "signature_mismatch"
	ReasonIntegrity   = "integrity_mismatch"
	ReasonChain       = "chain_rejected"
	ReasonUnavailable = "chain_unavailable"
	ReasonConsistency = "consistency"
)
