package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ownership subsystem's Prometheus metrics.
type Metrics struct {
	TransfersTotal         *prometheus.CounterVec
	ClaimsSubmitted        prometheus.Counter
	ClaimsReviewed         *prometheus.CounterVec
	ClaimCodesGenerated    prometheus.Counter
	ClaimAttemptsThrottled prometheus.Counter
}

// New creates and registers all ownership metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhub_ownership_transfers_total",
			Help: "Ownership changes appended to the transfer ledger, by transfer type.",
		}, []string{"type"}),
		ClaimsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_ownership_claims_submitted_total",
			Help: "Claim requests submitted for review.",
		}),
		ClaimsReviewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhub_ownership_claims_reviewed_total",
			Help: "Claim requests reviewed, by decision.",
		}, []string{"decision"}),
		ClaimCodesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_ownership_claim_codes_generated_total",
			Help: "Claim codes minted or regenerated.",
		}),
		ClaimAttemptsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clubhub_ownership_claim_attempts_throttled_total",
			Help: "Code claim attempts rejected by the attempt limiter.",
		}),
	}
}

func (m *Metrics) IncrementTransfers(transferType string) {
	m.TransfersTotal.WithLabelValues(transferType).Inc()
}

func (m *Metrics) IncrementClaimsSubmitted() {
	m.ClaimsSubmitted.Inc()
}

func (m *Metrics) IncrementClaimsReviewed(decision string) {
	m.ClaimsReviewed.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementClaimCodesGenerated() {
	m.ClaimCodesGenerated.Inc()
}

func (m *Metrics) IncrementClaimAttemptsThrottled() {
	m.ClaimAttemptsThrottled.Inc()
}
