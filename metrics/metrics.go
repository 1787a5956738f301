package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ParlaysLocked      prometheus.Counter
	ParlaysResolved    *prometheus.CounterVec
	ResolutionRetries  prometheus.Counter
	ResolutionFailures prometheus.Counter
	OrderingBlocks     prometheus.Counter
	InvalidState       prometheus.Counter
	InsuranceChanges   *prometheus.CounterVec
	NotifyErrors       *prometheus.CounterVec
	ScanDuration       *prometheus.HistogramVec
	ActiveLanes        prometheus.Gauge
}

// New builds the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ParlaysLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_parlays_locked_total",
			Help: "Parlays moved from BUILDING to LOCKED.",
		}),
		ParlaysResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_parlays_resolved_total",
			Help: "Parlays resolved, by outcome.",
		}, []string{"outcome"}),
		ResolutionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_resolution_retries_total",
			Help: "Transient resolution failures that were retried.",
		}),
		ResolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_resolution_failures_total",
			Help: "Parlays marked RESOLUTION_FAILED.",
		}),
		OrderingBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_ordering_blocks_total",
			Help: "Ready parlays withheld behind an earlier unresolved parlay of the same user.",
		}),
		InvalidState: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_invalid_state_total",
			Help: "Parlays skipped because they were no longer resolvable.",
		}),
		InsuranceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_insurance_transitions_total",
			Help: "Insurance lock and unlock transitions.",
		}, []string{"transition"}),
		NotifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_notify_errors_total",
			Help: "Dropped notifications, by sink.",
		}, []string{"sink"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streak_scan_duration_seconds",
			Help:    "Duration of periodic scans.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scan"}),
		ActiveLanes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streak_active_user_lanes",
			Help: "Per-user resolution lanes currently draining.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ParlaysLocked, m.ParlaysResolved, m.ResolutionRetries, m.ResolutionFailures,
			m.OrderingBlocks, m.InvalidState, m.InsuranceChanges, m.NotifyErrors,
			m.ScanDuration, m.ActiveLanes,
		)
	}
	return m
}

func (m *Metrics) Locked(n int) {
	if m != nil {
		m.ParlaysLocked.Add(float64(n))
	}
}

func (m *Metrics) Resolved(outcome string) {
	if m != nil {
		m.ParlaysResolved.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Retry() {
	if m != nil {
		m.ResolutionRetries.Inc()
	}
}

func (m *Metrics) Failed() {
	if m != nil {
		m.ResolutionFailures.Inc()
	}
}

func (m *Metrics) Blocked(n int) {
	if m != nil && n > 0 {
		m.OrderingBlocks.Add(float64(n))
	}
}

func (m *Metrics) Skipped() {
	if m != nil {
		m.InvalidState.Inc()
	}
}

func (m *Metrics) Insurance(transition string) {
	if m != nil {
		m.InsuranceChanges.WithLabelValues(transition).Inc()
	}
}

func (m *Metrics) NotifyError(sink string) {
	if m != nil {
		m.NotifyErrors.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) ObserveScan(scan string, seconds float64) {
	if m != nil {
		m.ScanDuration.WithLabelValues(scan).Observe(seconds)
	}
}

func (m *Metrics) LaneStarted() {
	if m != nil {
		m.ActiveLanes.Inc()
	}
}

func (m *Metrics) LaneDone() {
	if m != nil {
		m.ActiveLanes.Dec()
	}
}
