// Package metrics is the service's Prometheus registry: analyzer
// latency, pump-detection/signal/outcome counters, exchange-adapter
// health, and classifier state, exposed via internal/httpserver's
// /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this service exports.
type Registry struct {
	AnalyzerDuration *prometheus.HistogramVec
	AnalyzerErrors   *prometheus.CounterVec

	PumpEventsDetected *prometheus.CounterVec
	ActiveActors       prometheus.Gauge

	SignalsEmitted *prometheus.CounterVec
	SignalScore    *prometheus.HistogramVec

	OutcomesFinalized *prometheus.CounterVec

	ExchangeCallDuration *prometheus.HistogramVec
	ExchangeCallErrors   *prometheus.CounterVec
	CircuitBreakerOpen   *prometheus.GaugeVec

	ClassifierTrained      prometheus.Gauge
	ClassifierTrainingSize prometheus.Gauge
}

// New builds and registers every metric against reg (pass
// prometheus.NewRegistry() in tests to avoid the global registerer's
// panic-on-duplicate-registration behavior; pass prometheus.DefaultRegisterer
// in production).
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pumpshort_analyzer_duration_seconds",
			Help:    "Duration of each analyzer's Run call.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		}, []string{"analyzer"}),

		AnalyzerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpshort_analyzer_errors_total",
			Help: "Analyzer failures (timeout, panic, or error return) by analyzer.",
		}, []string{"analyzer"}),

		PumpEventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpshort_pump_events_detected_total",
			Help: "Pump events detected by kind (fast, elite).",
		}, []string{"kind"}),

		ActiveActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpshort_active_actors",
			Help: "Number of per-symbol orchestrator actors currently running.",
		}),

		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpshort_signals_emitted_total",
			Help: "Signals emitted by tier (A, B).",
		}, []string{"tier"}),

		SignalScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pumpshort_signal_score",
			Help:    "Final combined score of emitted signals.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}, []string{"tier"}),

		OutcomesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpshort_outcomes_finalized_total",
			Help: "Tracked signals finalized by final_result.",
		}, []string{"final_result"}),

		ExchangeCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pumpshort_exchange_call_duration_seconds",
			Help:    "Duration of exchange adapter calls by call class.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"call_class"}),

		ExchangeCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpshort_exchange_call_errors_total",
			Help: "Exchange adapter call failures by call class.",
		}, []string{"call_class"}),

		CircuitBreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pumpshort_circuit_breaker_open",
			Help: "1 if the named call class's circuit breaker is open, else 0.",
		}, []string{"call_class"}),

		ClassifierTrained: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpshort_classifier_trained",
			Help: "1 once the classifier has reached its minimum training sample count.",
		}),

		ClassifierTrainingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpshort_classifier_training_samples",
			Help: "Number of samples the classifier has been fit on.",
		}),
	}

	reg.MustRegister(
		m.AnalyzerDuration, m.AnalyzerErrors,
		m.PumpEventsDetected, m.ActiveActors,
		m.SignalsEmitted, m.SignalScore,
		m.OutcomesFinalized,
		m.ExchangeCallDuration, m.ExchangeCallErrors, m.CircuitBreakerOpen,
		m.ClassifierTrained, m.ClassifierTrainingSize,
	)
	return m
}

// AnalyzerTimer times a single analyzer invocation.
type AnalyzerTimer struct {
	m     *Registry
	name  string
	start time.Time
}

// StartAnalyzer begins timing an analyzer call.
func (m *Registry) StartAnalyzer(name string) *AnalyzerTimer {
	return &AnalyzerTimer{m: m, name: name, start: time.Now()}
}

// Stop records the observed duration, and an error count if err != nil.
func (t *AnalyzerTimer) Stop(err error) {
	t.m.AnalyzerDuration.WithLabelValues(t.name).Observe(time.Since(t.start).Seconds())
	if err != nil {
		t.m.AnalyzerErrors.WithLabelValues(t.name).Inc()
	}
}

// RecordPumpEvent increments the detected-events counter for kind.
func (m *Registry) RecordPumpEvent(kind string) {
	m.PumpEventsDetected.WithLabelValues(kind).Inc()
}

// RecordSignal increments the emitted-signal counter and observes its score.
func (m *Registry) RecordSignal(tier string, score float64) {
	m.SignalsEmitted.WithLabelValues(tier).Inc()
	m.SignalScore.WithLabelValues(tier).Observe(score)
}

// RecordOutcome increments the finalized-outcome counter for finalResult.
func (m *Registry) RecordOutcome(finalResult string) {
	m.OutcomesFinalized.WithLabelValues(finalResult).Inc()
}

// ExchangeCallTimer times a single exchange adapter call.
type ExchangeCallTimer struct {
	m         *Registry
	callClass string
	start     time.Time
}

// StartExchangeCall begins timing an exchange adapter call.
func (m *Registry) StartExchangeCall(callClass string) *ExchangeCallTimer {
	return &ExchangeCallTimer{m: m, callClass: callClass, start: time.Now()}
}

// Stop records the observed duration, and an error count if err != nil.
func (t *ExchangeCallTimer) Stop(err error) {
	t.m.ExchangeCallDuration.WithLabelValues(t.callClass).Observe(time.Since(t.start).Seconds())
	if err != nil {
		t.m.ExchangeCallErrors.WithLabelValues(t.callClass).Inc()
	}
}

// SetCircuitBreakerOpen reports a call class's breaker state.
func (m *Registry) SetCircuitBreakerOpen(callClass string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.CircuitBreakerOpen.WithLabelValues(callClass).Set(v)
}

// SetClassifierState reports the classifier's trained flag and sample count.
func (m *Registry) SetClassifierState(trained bool, sampleCount int) {
	if trained {
		m.ClassifierTrained.Set(1)
	} else {
		m.ClassifierTrained.Set(0)
	}
	m.ClassifierTrainingSize.Set(float64(sampleCount))
}
