package lock

import (
	"context"
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard struct {
	mu    sync.Mutex
	locks map[string]Holder
}

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry is a process-local registry sharded by record id.
type MemoryRegistry struct {
	shards [shardCount]*shard
}

func NewMemoryRegistry() *MemoryRegistry {
	r := &MemoryRegistry{}
	for i := range r.shards {
		r.shards[i] = &shard{locks: make(map[string]Holder)}
	}

	return r
}

func (r *MemoryRegistry) shard(recordID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recordID))
	return r.shards[h.Sum32()%shardCount]
}

func (r *MemoryRegistry) Acquire(_ context.Context, recordID string, h Holder) (Holder, bool, error) {
	if !h.Valid() {
		return Holder{}, false, ErrInvalidHolder
	}

	s := r.shard(recordID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.locks[recordID]
	if !ok {
		s.locks[recordID] = h
		return h, true, nil
	}

	return current, current == h, nil
}

func (r *MemoryRegistry) Release(_ context.Context, recordID string, h Holder) (bool, error) {
	s := r.shard(recordID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.locks[recordID]
	if !ok || current != h {
		return false, nil
	}
	delete(s.locks, recordID)

	return true, nil
}

func (r *MemoryRegistry) ForceRelease(_ context.Context, recordID string) error {
	s := r.shard(recordID)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, recordID)
	return nil
}

func (r *MemoryRegistry) ReleaseSession(_ context.Context, sessionID string) ([]string, error) {
	var released []string
	for _, s := range r.shards {
		s.mu.Lock()
		for recordID, h := range s.locks {
			if h.SessionID == sessionID {
				delete(s.locks, recordID)
				released = append(released, recordID)
			}
		}
		s.mu.Unlock()
	}

	return released, nil
}

func (r *MemoryRegistry) Holder(_ context.Context, recordID string) (Holder, bool, error) {
	s := r.shard(recordID)
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.locks[recordID]
	return h, ok, nil
}
