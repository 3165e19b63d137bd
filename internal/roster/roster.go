// Package roster holds the enrolled identities and their reference
// face encodings. The store hands out immutable snapshots: enrollment
// replaces the snapshot wholesale, so a capture session iterating an
// older snapshot never observes a mutation.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrStoreCorrupt indicates the persisted identity data is unreadable
// or malformed (for example an encoding with the wrong dimension).
var ErrStoreCorrupt = errors.New("identity store corrupt")

// Identity is an enrolled person with one or more reference encodings.
// Once handed out in a snapshot an Identity is never mutated; adding
// an encoding installs a fresh copy of the roster.
type Identity struct {
	ID          string
	DisplayName string
	Encodings   [][]float32
}

// Repository is the durable backing store for identities.
type Repository interface {
	// LoadIdentities returns all enrolled identities with their encodings.
	LoadIdentities(ctx context.Context) ([]Identity, error)
	// CreateStudent persists a new identity with its first encoding.
	CreateStudent(ctx context.Context, id Identity) error
	// AppendEncoding adds a reference encoding to an existing identity.
	AppendEncoding(ctx context.Context, identityID string, encoding []float32) error
}

// Store is the in-memory snapshot of the enrolled roster, rebuilt from
// the repository by Load and queried per frame by the capture pipeline.
type Store struct {
	repo Repository
	dim  int

	mu         sync.RWMutex
	identities []Identity // sorted by ID
	byName     map[string]string // normalized display name -> identity ID
	shortlist  *Shortlist
}

// NewStore creates a roster store backed by the given repository.
// dim is the expected encoding dimension; 0 disables validation.
func NewStore(repo Repository, dim int) *Store {
	return &Store{
		repo:   repo,
		dim:    dim,
		byName: make(map[string]string),
	}
}

// Load rebuilds the in-memory snapshot from the repository. Malformed
// data fails with ErrStoreCorrupt; partial state is never installed.
func (s *Store) Load(ctx context.Context) error {
	identities, err := s.repo.LoadIdentities(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}

	byName := make(map[string]string, len(identities))
	for _, id := range identities {
		if id.ID == "" {
			return fmt.Errorf("%w: identity with empty id", ErrStoreCorrupt)
		}
		for _, enc := range id.Encodings {
			if len(enc) == 0 {
				return fmt.Errorf("%w: identity %s has an empty encoding", ErrStoreCorrupt, id.ID)
			}
			if s.dim > 0 && len(enc) != s.dim {
				return fmt.Errorf("%w: identity %s encoding has dim %d, want %d",
					ErrStoreCorrupt, id.ID, len(enc), s.dim)
			}
		}
		byName[NormalizeName(id.DisplayName)] = id.ID
	}

	sort.Slice(identities, func(i, j int) bool { return identities[i].ID < identities[j].ID })

	shortlist, err := BuildShortlist(identities)
	if err != nil {
		return fmt.Errorf("building shortlist index: %w", err)
	}

	s.mu.Lock()
	s.identities = identities
	s.byName = byName
	s.shortlist = shortlist
	s.mu.Unlock()

	return nil
}

// AllIdentities returns the ordered (by ID) roster snapshot.
// The returned slice must be treated as read-only.
func (s *Store) AllIdentities() []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identities
}

// Count returns the number of enrolled identities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// Candidates returns the identities whose reference encodings are the
// k nearest to the probe, falling back to the full roster when the
// roster is small (cutoff) or the shortlist index is unavailable.
// The exact matcher still runs over whatever this returns.
func (s *Store) Candidates(probe []float32, k, cutoff int) []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shortlist == nil || len(s.identities) <= cutoff {
		return s.identities
	}
	return s.shortlist.Nearest(probe, k)
}

// Enroll creates a new identity with its first reference encoding.
// Display names are deduplicated after normalization, so "Jiří" and
// "jiri" count as the same student.
func (s *Store) Enroll(ctx context.Context, displayName string, encoding []float32) (Identity, error) {
	if displayName == "" {
		return Identity{}, errors.New("display name is required")
	}
	if s.dim > 0 && len(encoding) != s.dim {
		return Identity{}, fmt.Errorf("encoding has dim %d, want %d", len(encoding), s.dim)
	}

	normalized := NormalizeName(displayName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byName[normalized]; ok {
		return Identity{}, fmt.Errorf("student %q already enrolled as %s", displayName, existing)
	}

	id := Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Encodings:   [][]float32{encoding},
	}
	if err := s.repo.CreateStudent(ctx, id); err != nil {
		return Identity{}, fmt.Errorf("persisting student: %w", err)
	}

	next := insertSorted(s.identities, id)
	shortlist, err := BuildShortlist(next)
	if err != nil {
		return Identity{}, fmt.Errorf("rebuilding shortlist index: %w", err)
	}

	s.identities = next
	s.shortlist = shortlist
	s.byName[normalized] = id.ID

	return id, nil
}

// AddEncoding appends a reference encoding to an already enrolled
// identity. The new encoding becomes matchable immediately: the roster
// snapshot and the shortlist index are replaced, never edited in place.
func (s *Store) AddEncoding(ctx context.Context, identityID string, encoding []float32) error {
	if s.dim > 0 && len(encoding) != s.dim {
		return fmt.Errorf("encoding has dim %d, want %d", len(encoding), s.dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := sort.Search(len(s.identities), func(i int) bool { return s.identities[i].ID >= identityID })
	if idx >= len(s.identities) || s.identities[idx].ID != identityID {
		return fmt.Errorf("identity %s not found", identityID)
	}

	if err := s.repo.AppendEncoding(ctx, identityID, encoding); err != nil {
		return fmt.Errorf("persisting encoding: %w", err)
	}

	next := make([]Identity, len(s.identities))
	copy(next, s.identities)
	encs := make([][]float32, 0, len(next[idx].Encodings)+1)
	encs = append(encs, next[idx].Encodings...)
	next[idx].Encodings = append(encs, encoding)

	shortlist, err := BuildShortlist(next)
	if err != nil {
		return fmt.Errorf("rebuilding shortlist index: %w", err)
	}

	s.identities = next
	s.shortlist = shortlist
	return nil
}

// FindByName looks up an identity ID by display name (normalized).
func (s *Store) FindByName(displayName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[NormalizeName(displayName)]
	return id, ok
}

// insertSorted returns a new slice with id inserted in ID order. The
// input is left untouched: concurrent readers holding the previous
// snapshot keep iterating it safely.
func insertSorted(identities []Identity, id Identity) []Identity {
	idx := sort.Search(len(identities), func(i int) bool { return identities[i].ID >= id.ID })
	next := make([]Identity, 0, len(identities)+1)
	next = append(next, identities[:idx]...)
	next = append(next, id)
	next = append(next, identities[idx:]...)
	return next
}
