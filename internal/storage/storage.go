package storage

import (
	"errors"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/eugenenazirov/oxido"
)

var (
	// ErrInvalidCapacity indicates a cache size that is not positive.
	ErrInvalidCapacity = errors.New("program cache capacity must be positive")
)

// Stats is a snapshot of cache usage.
type Stats struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// ProgramStore keeps recently parsed programs in a fixed-size LRU. It
// satisfies oxido.ProgramCache and is safe for concurrent use.
type ProgramStore struct {
	cache    *lru.Cache[string, *oxido.Program]
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ oxido.ProgramCache = (*ProgramStore)(nil)

// NewProgramStore creates a store holding at most capacity programs.
func NewProgramStore(capacity int) (*ProgramStore, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	cache, err := lru.New[string, *oxido.Program](capacity)
	if err != nil {
		return nil, err
	}
	return &ProgramStore{cache: cache, capacity: capacity}, nil
}

// Get returns the program stored under key and marks it recently used.
func (s *ProgramStore) Get(key string) (*oxido.Program, bool) {
	program, ok := s.cache.Get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return program, ok
}

// Add stores program under key, evicting the least recently used entry when
// the store is full.
func (s *ProgramStore) Add(key string, program *oxido.Program) {
	if program == nil {
		return
	}
	s.cache.Add(key, program)
}

// Purge drops every cached program. Counters are kept.
func (s *ProgramStore) Purge() {
	s.cache.Purge()
}

// Stats reports current usage.
func (s *ProgramStore) Stats() Stats {
	return Stats{
		Entries:  s.cache.Len(),
		Capacity: s.capacity,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}
