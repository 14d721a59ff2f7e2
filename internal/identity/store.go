package identity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Lister is the read side of the identity repository used to rebuild the store.
type Lister interface {
	List(ctx context.Context) ([]domain.Identity, error)
}

// Snapshot is an immutable view of the enrolled identities. Callers must not
// modify the returned slices.
type Snapshot struct {
	Version    uint64
	identities []domain.Identity
	index      map[string]int
}

func (s *Snapshot) Identities() []domain.Identity {
	return s.identities
}

func (s *Snapshot) Get(name string) (domain.Identity, bool) {
	i, ok := s.index[name]
	if !ok {
		return domain.Identity{}, false
	}
	return s.identities[i], true
}

func (s *Snapshot) Len() int {
	return len(s.identities)
}

// Store keeps the in-memory projection of the persistent identities.
// Reads go through Snapshot and never block; writers are serialized and
// publish a fresh snapshot.
type Store struct {
	repo Lister

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

func NewStore(repo Lister) *Store {
	s := &Store{repo: repo}
	s.current.Store(build(0, nil))
	return s
}

func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Load replaces the whole arena with the repository contents. When the
// repository returns duplicate names the last record wins.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(build(s.current.Load().Version+1, records))
	return nil
}

// Put appends identity or replaces the entry with the same name.
func (s *Store) Put(identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	arena := make([]domain.Identity, len(prev.identities), len(prev.identities)+1)
	copy(arena, prev.identities)

	identity.Embedding = identity.Embedding.Clone()
	if i, ok := prev.index[identity.Name]; ok {
		arena[i] = identity
	} else {
		arena = append(arena, identity)
	}
	s.current.Store(build(prev.Version+1, arena))
}

// Remove drops name from the store and reports whether it was present.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	i, ok := prev.index[name]
	if !ok {
		return false
	}

	arena := make([]domain.Identity, 0, len(prev.identities)-1)
	arena = append(arena, prev.identities[:i]...)
	arena = append(arena, prev.identities[i+1:]...)
	s.current.Store(build(prev.Version+1, arena))
	return true
}

func build(version uint64, records []domain.Identity) *Snapshot {
	snap := &Snapshot{
		Version:    version,
		identities: make([]domain.Identity, 0, len(records)),
		index:      make(map[string]int, len(records)),
	}
	for _, rec := range records {
		if i, ok := snap.index[rec.Name]; ok {
			snap.identities[i] = rec
			continue
		}
		snap.index[rec.Name] = len(snap.identities)
		snap.identities = append(snap.identities, rec)
	}
	return snap
}

func (s *Store) replace(records []domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(build(s.current.Load().Version+1, records))
}
