package refstore

import (
	"sync"

	"github.com/grafana/cinder/pkg/iter"
)

// Set is the registry of every storage the runtime created, partitioned by
// reference strength. Root walkers do not care about individual stores, they
// ask the set for all strong or all weak storages and iterate.
type Set struct {
	mu     sync.Mutex
	strong []*Store
	weak   []*Store
}

func NewSet() *Set { return &Set{} }

// CreateStrong registers a new storage whose entries keep their targets
// alive.
func (s *Set) CreateStrong(name string) *Store {
	st := newStore(name, false)
	s.mu.Lock()
	s.strong = append(s.strong, st)
	s.mu.Unlock()
	return st
}

// CreateWeak registers a new storage whose entries are subject to weak-root
// processing.
func (s *Set) CreateWeak(name string) *Store {
	st := newStore(name, true)
	s.mu.Lock()
	s.weak = append(s.weak, st)
	s.mu.Unlock()
	return st
}

func (s *Set) Strong() iter.Iterator[*Store] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return iter.NewSliceIterator(append([]*Store(nil), s.strong...))
}

func (s *Set) Weak() iter.Iterator[*Store] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return iter.NewSliceIterator(append([]*Store(nil), s.weak...))
}
