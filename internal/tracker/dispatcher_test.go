package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEvaluator logs the order samples are seen per subject and checks
// that no two samples of one subject are ever evaluated at the same time.
type recordingEvaluator struct {
	mu       sync.Mutex
	seen     map[string][]time.Time
	inFlight map[string]int
	overlap  atomic.Bool
	delay    time.Duration
}

func newRecordingEvaluator(delay time.Duration) *recordingEvaluator {
	return &recordingEvaluator{seen: make(map[string][]time.Time), inFlight: make(map[string]int), delay: delay}
}

func (e *recordingEvaluator) Evaluate(ctx context.Context, s Sample) (Result, error) {
	e.mu.Lock()
	e.inFlight[s.SubjectID]++
	if e.inFlight[s.SubjectID] > 1 {
		e.overlap.Store(true)
	}
	e.mu.Unlock()

	time.Sleep(e.delay)

	e.mu.Lock()
	e.inFlight[s.SubjectID]--
	e.seen[s.SubjectID] = append(e.seen[s.SubjectID], s.Timestamp)
	e.mu.Unlock()
	return Result{Evaluated: 1}, nil
}

func TestDispatcher_PerSubjectOrder(t *testing.T) {
	ev := newRecordingEvaluator(100 * time.Microsecond)
	d := NewDispatcher(ev, DispatcherConfig{Shards: 4, QueueSize: 8})
	defer d.Close()

	const subjects = 6
	const perSubject = 25

	var wg sync.WaitGroup
	for i := 0; i < subjects; i++ {
		wg.Add(1)
		go func(subject string) {
			defer wg.Done()
			for j := 0; j < perSubject; j++ {
				res, err := d.Submit(context.Background(), Sample{SubjectID: subject, Timestamp: base.Add(time.Duration(j) * time.Second)})
				assert.NoError(t, err)
				assert.Equal(t, 1, res.Evaluated)
			}
		}(fmt.Sprintf("guard-%d", i))
	}
	wg.Wait()

	assert.False(t, ev.overlap.Load(), "one subject was evaluated concurrently")
	for i := 0; i < subjects; i++ {
		got := ev.seen[fmt.Sprintf("guard-%d", i)]
		require.Len(t, got, perSubject)
		for j := 1; j < len(got); j++ {
			assert.True(t, got[j].After(got[j-1]), "subject %d out of order at %d", i, j)
		}
	}
}

func TestDispatcher_OrderGuardDropsStale(t *testing.T) {
	ev := newRecordingEvaluator(0)
	d := NewDispatcher(ev, DispatcherConfig{Shards: 2, Order: NewOrderGuard()})
	defer d.Close()
	ctx := context.Background()

	_, err := d.Submit(ctx, Sample{SubjectID: "g1", Timestamp: base.Add(time.Minute)})
	require.NoError(t, err)

	_, err = d.Submit(ctx, Sample{SubjectID: "g1", Timestamp: base})
	assert.ErrorIs(t, err, ErrStaleSample)

	_, err = d.Submit(ctx, Sample{SubjectID: "g1", Timestamp: base.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrStaleSample, "duplicates are stale too")

	_, err = d.Submit(ctx, Sample{SubjectID: "g2", Timestamp: base})
	assert.NoError(t, err, "order is tracked per subject")

	assert.Len(t, ev.seen["g1"], 1)
}

// flakyEvaluator returns err for its first `failures` calls, then succeeds.
type flakyEvaluator struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (e *flakyEvaluator) Evaluate(ctx context.Context, s Sample) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failures {
		return Result{}, e.err
	}
	return Result{Evaluated: 1}, nil
}

func TestDispatcher_FailedEvaluationCanBeRetried(t *testing.T) {
	ev := &flakyEvaluator{failures: 1, err: errors.New("registry: connection refused")}
	order := NewOrderGuard()
	d := NewDispatcher(ev, DispatcherConfig{Shards: 1, Order: order})
	defer d.Close()
	ctx := context.Background()
	s := Sample{SubjectID: "g1", Timestamp: base.Add(100 * time.Second)}

	_, err := d.Submit(ctx, s)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleSample)
	_, seen := order.Last("g1")
	assert.False(t, seen, "a failed sample is not marked as processed")

	res, err := d.Submit(ctx, s)
	require.NoError(t, err, "the same sample is evaluated again")
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 2, ev.calls)

	_, err = d.Submit(ctx, s)
	assert.ErrorIs(t, err, ErrStaleSample, "once processed it is a duplicate")
	assert.Equal(t, 2, ev.calls)
}

func TestDispatcher_AlertFailureCountsAsProcessed(t *testing.T) {
	ev := &flakyEvaluator{failures: 1, err: fmt.Errorf("%w: zone z: insert failed", ErrAlertPersistence)}
	d := NewDispatcher(ev, DispatcherConfig{Shards: 1, Order: NewOrderGuard()})
	defer d.Close()
	ctx := context.Background()
	s := Sample{SubjectID: "g1", Timestamp: base}

	_, err := d.Submit(ctx, s)
	require.ErrorIs(t, err, ErrAlertPersistence)

	_, err = d.Submit(ctx, s)
	assert.ErrorIs(t, err, ErrStaleSample, "state was written, so a replay would not alert again")
	assert.Equal(t, 1, ev.calls)
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher(newRecordingEvaluator(0), DispatcherConfig{Shards: 1})
	d.Close()
	d.Close()

	_, err := d.Submit(context.Background(), Sample{SubjectID: "g1"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_CanceledContext(t *testing.T) {
	ev := newRecordingEvaluator(0)
	d := NewDispatcher(ev, DispatcherConfig{Shards: 1})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Submit(ctx, Sample{SubjectID: "g1", Timestamp: base})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ev.seen["g1"])
}

// End to end through a real tracker: concurrent subjects each see exactly one entry
func TestDispatcher_WithTracker(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		assign(t, f.reg, fmt.Sprintf("w%d", i), f.zone.ID)
	}
	d := NewDispatcher(f.tr, DispatcherConfig{Shards: 3, QueueSize: 4, Order: NewOrderGuard()})
	defer d.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(subject string) {
			defer wg.Done()
			for j, p := range []Sample{
				{Latitude: outsidePoint.Latitude, Longitude: outsidePoint.Longitude},
				{Latitude: insidePoint.Latitude, Longitude: insidePoint.Longitude},
				{Latitude: insidePoint.Latitude, Longitude: insidePoint.Longitude},
			} {
				p.SubjectID = subject
				p.Timestamp = base.Add(time.Duration(j) * time.Minute)
				_, err := d.Submit(context.Background(), p)
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("w%d", i))
	}
	wg.Wait()

	assert.Len(t, f.sink.kinds(), 5)
	for i := 0; i < 5; i++ {
		st, ok, err := f.states.Get(context.Background(), Key{SubjectID: fmt.Sprintf("w%d", i), ZoneID: f.zone.ID})
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, st.Inside)
	}
}

func TestOrderGuard(t *testing.T) {
	g := NewOrderGuard()

	require.NoError(t, g.Admit("g1", base))
	assert.ErrorIs(t, g.Admit("g1", base), ErrStaleSample)
	assert.ErrorIs(t, g.Admit("g1", base.Add(-time.Second)), ErrStaleSample)
	require.NoError(t, g.Admit("g1", base.Add(time.Nanosecond)))
	require.NoError(t, g.Admit("g1", time.Time{}), "untimed samples are admitted")

	last, ok := g.Last("g1")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Nanosecond), last)
}

func TestOrderGuard_CheckDoesNotRecord(t *testing.T) {
	g := NewOrderGuard()

	require.NoError(t, g.Check("g1", base))
	require.NoError(t, g.Check("g1", base), "check alone leaves no trace")

	g.Record("g1", base)
	assert.ErrorIs(t, g.Check("g1", base), ErrStaleSample)

	g.Record("g1", base.Add(-time.Hour))
	last, _ := g.Last("g1")
	assert.Equal(t, base, last, "record never moves backwards")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	zoneA, zoneB := uuid.New(), uuid.New()

	_, ok, err := s.Get(ctx, Key{SubjectID: "g1", ZoneID: zoneA})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, Key{SubjectID: "g1", ZoneID: zoneA}, ContainmentState{Inside: true, EvaluatedAt: base}))
	require.NoError(t, s.Put(ctx, Key{SubjectID: "g1", ZoneID: zoneB}, ContainmentState{Inside: false, EvaluatedAt: base}))
	require.NoError(t, s.Put(ctx, Key{SubjectID: "g2", ZoneID: zoneA}, ContainmentState{Inside: false, EvaluatedAt: base}))

	st, ok, err := s.Get(ctx, Key{SubjectID: "g1", ZoneID: zoneA})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Inside, st.State())

	all, err := s.States(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, Outside, all[zoneB].State())
}

func TestStateText(t *testing.T) {
	for st, want := range map[State]string{Unknown: "unknown", Inside: "inside", Outside: "outside"} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestStateText_RoundTrip(t *testing.T) {
	for _, st := range []State{Unknown, Inside, Outside} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var bad State
	assert.Error(t, bad.UnmarshalText([]byte("sideways")))
}
