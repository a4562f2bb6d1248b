package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStaleSample is returned for a sample not newer than the last one seen
// for the same subject.
var ErrStaleSample = errors.New("stale or duplicate sample")

// OrderGuard drops out-of-order and replayed samples per subject. Ordering
// only holds within one process; run one instance per subject (sticky routing).
type OrderGuard struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewOrderGuard() *OrderGuard {
	return &OrderGuard{last: make(map[string]time.Time)}
}

// Check reports ErrStaleSample if ts is not after the last recorded sample.
// Samples without a timestamp cannot be ordered and always pass.
func (g *OrderGuard) Check(subjectID string, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.check(subjectID, ts)
}

func (g *OrderGuard) check(subjectID string, ts time.Time) error {
	if last, ok := g.last[subjectID]; ok && !ts.After(last) {
		return fmt.Errorf("%w: %s at %s, last %s", ErrStaleSample, subjectID,
			ts.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}
	return nil
}

// Record marks ts as processed for subject. Older timestamps never move it back.
func (g *OrderGuard) Record(subjectID string, ts time.Time) {
	if ts.IsZero() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[subjectID]; !ok || ts.After(last) {
		g.last[subjectID] = ts
	}
}

// Admit is Check followed by Record in one step.
func (g *OrderGuard) Admit(subjectID string, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(subjectID, ts); err != nil {
		return err
	}
	g.last[subjectID] = ts
	return nil
}

// Last returns the newest recorded timestamp for subject.
func (g *OrderGuard) Last(subjectID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts, ok := g.last[subjectID]
	return ts, ok
}
