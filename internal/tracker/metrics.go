package tracker

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sample outcomes for geofence_samples_total
const (
	ResultOK       = "ok"
	ResultPartial  = "partial"
	ResultInvalid  = "invalid"
	ResultStale    = "stale"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// Skip reasons for geofence_zones_skipped_total
const (
	SkipInactive   = "inactive"
	SkipMalformed  = "malformed"
	SkipStateError = "state_error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Samples      *prometheus.CounterVec
	Alerts       *prometheus.CounterVec
	AlertErrors  prometheus.Counter
	ZonesSkipped *prometheus.CounterVec
	Duration     prometheus.Histogram
}

// NewMetrics registers the tracker collectors on reg, reusing collectors that
// are already registered under the same name.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_samples_total",
		Help: "Location samples processed by the containment tracker, by result.",
	}, []string{"result"}), "geofence_samples_total")
	if err != nil {
		return nil, err
	}

	alerts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_alerts_total",
		Help: "Zone entry and exit alerts persisted, by tipo.",
	}, []string{"tipo"}), "geofence_alerts_total")
	if err != nil {
		return nil, err
	}

	alertErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_alert_persist_failures_total",
		Help: "Transitions detected whose alert could not be stored.",
	}), "geofence_alert_persist_failures_total")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_zones_skipped_total",
		Help: "Assigned zones left out of an evaluation cycle, by reason.",
	}, []string{"reason"}), "geofence_zones_skipped_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofence_evaluation_duration_seconds",
		Help:    "Time spent evaluating one location sample against its zones.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "geofence_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Samples:      samples,
		Alerts:       alerts,
		AlertErrors:  alertErrors,
		ZonesSkipped: skipped,
		Duration:     duration,
	}, nil
}

func (m *Metrics) sample(result string) {
	if m == nil || m.Samples == nil {
		return
	}
	m.Samples.WithLabelValues(result).Inc()
}

func (m *Metrics) alert(tipo string) {
	if m == nil || m.Alerts == nil {
		return
	}
	m.Alerts.WithLabelValues(tipo).Inc()
}

func (m *Metrics) alertFailed() {
	if m == nil || m.AlertErrors == nil {
		return
	}
	m.AlertErrors.Inc()
}

func (m *Metrics) skipped(reason string) {
	if m == nil || m.ZonesSkipped == nil {
		return
	}
	m.ZonesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observe(d time.Duration) {
	if m == nil || m.Duration == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
