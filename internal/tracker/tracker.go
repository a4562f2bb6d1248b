// Package tracker turns a stream of location samples into zone entry and
// exit alerts. For every sample it checks each zone the subject is assigned
// to, compares against the containment it remembered from the previous
// sample and emits an alert only when that containment flips.
//
// The tracker holds no timers; callers decide how often samples arrive.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vigilia/guard-backend/internal/zones"
)

// ErrAlertPersistence wraps sink failures. The state transition behind the
// alert has already been recorded when this is returned.
var ErrAlertPersistence = errors.New("alert persistence failed")

// AlertSink stores detected alerts and returns them as stored.
type AlertSink interface {
	InsertAlert(ctx context.Context, alert zones.Alert) (zones.Alert, error)
}

// ZoneStatus is the outcome for one evaluated zone.
type ZoneStatus struct {
	ZoneID   uuid.UUID `json:"zona_id"`
	Nombre   string    `json:"nombre"`
	Inside   bool      `json:"dentro"`
	Previous State     `json:"anterior"`
}

type Result struct {
	Alerts    []zones.Alert `json:"alertas"`
	Zones     []ZoneStatus  `json:"zonas"`
	Evaluated int           `json:"evaluadas"`
	Skipped   int           `json:"omitidas"`
}

type Tracker struct {
	registry zones.Registry
	states   StateStore
	sink     AlertSink
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Tracker)

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithClock replaces time.Now for samples that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(registry zones.Registry, states StateStore, sink AlertSink, opts ...Option) *Tracker {
	t := &Tracker{registry: registry, states: states, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Evaluate processes one sample. Failures that concern a single zone are
// collected and returned joined, alongside a Result covering every zone that
// did succeed; one zone never stops its siblings from being evaluated.
func (t *Tracker) Evaluate(ctx context.Context, s Sample) (Result, error) {
	if err := s.Validate(); err != nil {
		t.metrics.sample(ResultInvalid)
		return Result{}, err
	}

	start := time.Now()
	defer func() { t.metrics.observe(time.Since(start)) }()

	asOf := s.Timestamp
	if asOf.IsZero() {
		asOf = t.now()
	}

	active, err := t.registry.ActiveAssignmentsFor(ctx, s.SubjectID, asOf)
	if err != nil {
		t.metrics.sample(ResultError)
		return Result{}, fmt.Errorf("tracker: active assignments: %w", err)
	}

	point := s.Point()
	var res Result
	var errs []error

	for _, aa := range active {
		zone := aa.Zone

		if !zone.Activo {
			res.Skipped++
			t.metrics.skipped(SkipInactive)
			continue
		}
		if aa.ShapeErr != nil || aa.Shape == nil {
			log.Printf("[tracker] skipping zone %s for %s: %v", zone.ID, s.SubjectID, aa.ShapeErr)
			res.Skipped++
			t.metrics.skipped(SkipMalformed)
			continue
		}

		key := Key{SubjectID: s.SubjectID, ZoneID: zone.ID}
		inside := aa.Shape.Contains(point)

		prev, known, err := t.states.Get(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", zone.ID, err))
			res.Skipped++
			t.metrics.skipped(SkipStateError)
			continue
		}

		// State is written first and kept even if the alert below fails
		if err := t.states.Put(ctx, key, ContainmentState{Inside: inside, EvaluatedAt: asOf}); err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", zone.ID, err))
			res.Skipped++
			t.metrics.skipped(SkipStateError)
			continue
		}
		res.Evaluated++

		status := ZoneStatus{ZoneID: zone.ID, Nombre: zone.Nombre, Inside: inside, Previous: Unknown}
		if known {
			status.Previous = prev.State()
		}
		res.Zones = append(res.Zones, status)

		if !known || prev.Inside == inside {
			continue
		}

		kind := zones.AlertSalida
		if inside {
			kind = zones.AlertEntrada
		}

		stored, err := t.sink.InsertAlert(ctx, zones.Alert{
			GuardiaID: s.SubjectID,
			ZonaID:    zone.ID,
			Tipo:      kind,
			Timestamp: asOf,
		})
		if err != nil {
			log.Printf("[tracker] %s alert for %s in zone %s not stored: %v", kind, s.SubjectID, zone.ID, err)
			errs = append(errs, fmt.Errorf("%w: zone %s: %w", ErrAlertPersistence, zone.ID, err))
			t.metrics.alertFailed()
			continue
		}
		res.Alerts = append(res.Alerts, stored)
		t.metrics.alert(string(kind))
	}

	if len(errs) > 0 {
		t.metrics.sample(ResultPartial)
		return res, errors.Join(errs...)
	}
	t.metrics.sample(ResultOK)
	return res, nil
}
