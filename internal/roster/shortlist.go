package roster

import (
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters for face encodings.
const (
	// shortlistMaxNeighbors (M) is the maximum number of neighbors per node.
	shortlistMaxNeighbors = 16
)

// Shortlist is an approximate-nearest-neighbor index over all
// reference encodings in the roster. It maps every encoding to its
// owning identity so a probe can be narrowed to a handful of
// candidate identities before the exact best-of matcher runs.
type Shortlist struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[int]
	identities []Identity // node key -> owning identity, indexed per encoding
}

// BuildShortlist indexes every reference encoding of every identity.
// Returns nil (no index) for an empty roster.
func BuildShortlist(identities []Identity) (*Shortlist, error) {
	total := 0
	for _, id := range identities {
		total += len(id.Encodings)
	}
	if total == 0 {
		return nil, nil
	}

	g := hnsw.NewGraph[int]()
	g.M = shortlistMaxNeighbors
	g.Ml = 1.0 / float64(shortlistMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	owners := make([]Identity, 0, total)
	for _, id := range identities {
		for _, enc := range id.Encodings {
			key := len(owners)
			g.Add(hnsw.MakeNode(key, enc))
			owners = append(owners, id)
		}
	}

	return &Shortlist{graph: g, identities: owners}, nil
}

// Nearest returns the distinct identities owning the k nearest
// reference encodings to the probe, in graph order.
func (s *Shortlist) Nearest(probe []float32, k int) []Identity {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors := s.graph.Search(probe, k)

	seen := make(map[string]struct{}, len(neighbors))
	result := make([]Identity, 0, len(neighbors))
	for _, n := range neighbors {
		owner := s.identities[n.Key]
		if _, ok := seen[owner.ID]; ok {
			continue
		}
		seen[owner.ID] = struct{}{}
		result = append(result, owner)
	}
	return result
}

// Count returns the number of indexed encodings.
func (s *Shortlist) Count() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
