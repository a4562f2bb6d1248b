package tracker

import (
	"context"
	"errors"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Evaluator is satisfied by *Tracker.
type Evaluator interface {
	Evaluate(ctx context.Context, s Sample) (Result, error)
}

type outcome struct {
	res Result
	err error
}

type job struct {
	ctx    context.Context
	sample Sample
	reply  chan outcome
}

type DispatcherConfig struct {
	Shards    int
	QueueSize int
	// Order, when set, is checked inside the subject's worker before
	// evaluation and updated after it, in the same serialized step.
	Order   *OrderGuard
	Metrics *Metrics
}

// Dispatcher fans samples out to a fixed set of workers. A subject always
// hashes to the same worker, so one subject's samples are evaluated one at a
// time in submission order while different subjects proceed in parallel.
type Dispatcher struct {
	ev      Evaluator
	order   *OrderGuard
	metrics *Metrics
	shards  []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(ev Evaluator, cfg DispatcherConfig) *Dispatcher {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	d := &Dispatcher{
		ev:      ev,
		order:   cfg.Order,
		metrics: cfg.Metrics,
		shards:  make([]chan job, cfg.Shards),
	}
	for i := range d.shards {
		ch := make(chan job, cfg.QueueSize)
		d.shards[i] = ch
		d.wg.Add(1)
		go d.worker(ch)
	}
	return d
}

func (d *Dispatcher) worker(ch <-chan job) {
	defer d.wg.Done()
	for j := range ch {
		j.reply <- d.run(j)
	}
}

func (d *Dispatcher) run(j job) outcome {
	if err := j.ctx.Err(); err != nil {
		d.metrics.sample(ResultCanceled)
		return outcome{err: err}
	}
	if d.order != nil {
		if err := d.order.Check(j.sample.SubjectID, j.sample.Timestamp); err != nil {
			d.metrics.sample(ResultStale)
			return outcome{err: err}
		}
	}
	res, err := d.ev.Evaluate(j.ctx, j.sample)
	// A failed evaluation stays retryable. Once only the alert insert failed,
	// state is already written and the sample counts as processed.
	if d.order != nil && (err == nil || errors.Is(err, ErrAlertPersistence)) {
		d.order.Record(j.sample.SubjectID, j.sample.Timestamp)
	}
	return outcome{res: res, err: err}
}

// Submit queues s on its subject's worker and waits for the result.
func (d *Dispatcher) Submit(ctx context.Context, s Sample) (Result, error) {
	reply := make(chan outcome, 1)
	j := job{ctx: ctx, sample: s, reply: reply}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return Result{}, ErrDispatcherClosed
	}
	ch := d.shards[shardIndex(s.SubjectID, len(d.shards))]
	select {
	case ch <- j:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return Result{}, ctx.Err()
	}

	select {
	case out := <-reply:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops accepting samples and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
