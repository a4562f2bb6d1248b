package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// State is the last known relation between a subject and a zone.
type State int

const (
	Unknown State = iota
	Inside
	Outside
)

func (s State) String() string {
	switch s {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inside":
		*s = Inside
	case "outside":
		*s = Outside
	case "unknown", "":
		*s = Unknown
	default:
		return fmt.Errorf("unknown containment state %q", b)
	}
	return nil
}

// Key identifies one (subject, zone) pair.
type Key struct {
	SubjectID string
	ZoneID    uuid.UUID
}

// ContainmentState is what the tracker remembers per key.
type ContainmentState struct {
	Inside      bool      `json:"dentro"`
	EvaluatedAt time.Time `json:"evaluado_en"`
}

func (c ContainmentState) State() State {
	if c.Inside {
		return Inside
	}
	return Outside
}

// StateStore persists containment per key. Get reports ok=false for a key
// that was never written, which is how a first observation is recognized.
type StateStore interface {
	Get(ctx context.Context, key Key) (ContainmentState, bool, error)
	Put(ctx context.Context, key Key, state ContainmentState) error
}

// SubjectLister is implemented by stores that can enumerate a subject's keys.
type SubjectLister interface {
	States(ctx context.Context, subjectID string) (map[uuid.UUID]ContainmentState, error)
}

type memShard struct {
	mu     sync.RWMutex
	states map[Key]ContainmentState
}

// MemoryStore keeps state in process, split into shards by subject so
// subjects on different shards never contend.
type MemoryStore struct {
	shards []*memShard
}

func NewMemoryStore(shards int) *MemoryStore {
	if shards <= 0 {
		shards = 1
	}
	m := &MemoryStore{shards: make([]*memShard, shards)}
	for i := range m.shards {
		m.shards[i] = &memShard{states: make(map[Key]ContainmentState)}
	}
	return m
}

func shardIndex(subjectID string, n int) int {
	return int(xxhash.Sum64String(subjectID) % uint64(n))
}

func (m *MemoryStore) shard(subjectID string) *memShard {
	return m.shards[shardIndex(subjectID, len(m.shards))]
}

func (m *MemoryStore) Get(ctx context.Context, key Key) (ContainmentState, bool, error) {
	if err := ctx.Err(); err != nil {
		return ContainmentState{}, false, err
	}
	sh := m.shard(key.SubjectID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.states[key]
	return st, ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, key Key, state ContainmentState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := m.shard(key.SubjectID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.states[key] = state
	return nil
}

func (m *MemoryStore) States(ctx context.Context, subjectID string) (map[uuid.UUID]ContainmentState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := m.shard(subjectID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	out := make(map[uuid.UUID]ContainmentState)
	for k, v := range sh.states {
		if k.SubjectID == subjectID {
			out[k.ZoneID] = v
		}
	}
	return out, nil
}
