package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts funding and reward outcomes. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	depositsRequested *prometheus.CounterVec
	fundingsConfirmed *prometheus.CounterVec
	fundingsExpired   prometheus.Counter
	rewardsSent       *prometheus.CounterVec
	rewardsFailed     *prometheus.CounterVec
	rewardAmount      *prometheus.CounterVec
	addressesReleased prometheus.Counter
}

func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		depositsRequested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_deposits_requested_total",
				Help: "Deposit addresses handed out",
			},
			[]string{"chain"},
		),
		fundingsConfirmed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_fundings_confirmed_total",
				Help: "Funding records moved to confirmed",
			},
			[]string{"chain"},
		),
		fundingsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "icy_funding_fundings_expired_total",
				Help: "Pending funding records expired by cleanup",
			},
		),
		rewardsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_rewards_sent_total",
				Help: "ICY rewards paid",
			},
			[]string{"chain"},
		),
		rewardsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_rewards_failed_total",
				Help: "Failed reward attempts",
			},
			[]string{"chain", "permanent"},
		),
		rewardAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_reward_tokens_total",
				Help: "ICY paid out in whole tokens",
			},
			[]string{"chain"},
		),
		addressesReleased: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "icy_funding_addresses_released_total",
				Help: "Deposit addresses returned to the pool",
			},
		),
	}
}

func (m *PipelineMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.depositsRequested,
		m.fundingsConfirmed,
		m.fundingsExpired,
		m.rewardsSent,
		m.rewardsFailed,
		m.rewardAmount,
		m.addressesReleased,
	)
}

func (m *PipelineMetrics) DepositRequested(chain string) {
	if m == nil {
		return
	}
	m.depositsRequested.WithLabelValues(chain).Inc()
}

func (m *PipelineMetrics) FundingConfirmed(chain string) {
	if m == nil {
		return
	}
	m.fundingsConfirmed.WithLabelValues(chain).Inc()
}

func (m *PipelineMetrics) FundingsExpired(n int) {
	if m == nil {
		return
	}
	m.fundingsExpired.Add(float64(n))
}

func (m *PipelineMetrics) RewardSent(chain string, amount float64) {
	if m == nil {
		return
	}
	m.rewardsSent.WithLabelValues(chain).Inc()
	m.rewardAmount.WithLabelValues(chain).Add(amount)
}

func (m *PipelineMetrics) RewardFailed(chain string, permanent bool) {
	if m == nil {
		return
	}
	label := "false"
	if permanent {
		label = "true"
	}
	m.rewardsFailed.WithLabelValues(chain, label).Inc()
}

func (m *PipelineMetrics) AddressesReleased(n int64) {
	if m == nil {
		return
	}
	m.addressesReleased.Add(float64(n))
}
