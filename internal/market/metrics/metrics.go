package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the market module. A nil *Metrics is
// valid and records nothing, so tests can pass nil.
type Metrics struct {
	// Listings created, bought out, and settled
	ListingTransitions *prometheus.CounterVec

	// Fraction trades by side and result
	Trades *prometheus.CounterVec

	// Shares moved per trade, by side
	TradeVolume *prometheus.CounterVec

	// Native funds moved per trade, by side
	TradeValue *prometheus.CounterVec

	// Redemption payouts in native units
	RedemptionValue prometheus.Counter

	// Full trade transaction latency, by operation
	TradeLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all market metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		ListingTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fracmarket_listing_transitions_total",
			Help: "Total listing state transitions by target state",
		}, []string{"state"}), // state: "listed", "sold", "settled"

		Trades: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fracmarket_trades_total",
			Help: "Total fraction trades by side and result",
		}, []string{"side", "result"}), // side: "buy", "sell"

		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fracmarket_trade_shares_total",
			Help: "Total shares moved by completed trades, by side",
		}, []string{"side"}),

		TradeValue: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fracmarket_trade_value_total",
			Help: "Total native funds moved by completed trades, by side",
		}, []string{"side"}),

		RedemptionValue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracmarket_redemption_value_total",
			Help: "Total native funds paid out by redemptions",
		}),

		TradeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fracmarket_trade_duration_seconds",
			Help:    "Duration of market transactions by operation",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}), // operation: "list", "buy", "sell", "buyout", "redeem"
	}
}

// IncrementTransition records a listing entering a state.
func (m *Metrics) IncrementTransition(state string) {
	if m != nil {
		m.ListingTransitions.WithLabelValues(state).Inc()
	}
}

// RecordTrade records a completed or failed fraction trade.
func (m *Metrics) RecordTrade(side, result string) {
	if m != nil {
		m.Trades.WithLabelValues(side, result).Inc()
	}
}

// RecordVolume records the shares and funds moved by a completed trade.
func (m *Metrics) RecordVolume(side string, shares, value uint64) {
	if m != nil {
		m.TradeVolume.WithLabelValues(side).Add(float64(shares))
		m.TradeValue.WithLabelValues(side).Add(float64(value))
	}
}

// RecordRedemption records a redemption payout.
func (m *Metrics) RecordRedemption(value uint64) {
	if m != nil {
		m.RedemptionValue.Add(float64(value))
	}
}

// ObserveTradeLatency records the duration of a market transaction.
func (m *Metrics) ObserveTradeLatency(operation string, d time.Duration) {
	if m != nil {
		m.TradeLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
