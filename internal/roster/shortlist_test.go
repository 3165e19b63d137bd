package roster

import "testing"

func TestBuildShortlist_EmptyRoster(t *testing.T) {
	s, err := BuildShortlist(nil)
	if err != nil {
		t.Fatalf("BuildShortlist failed: %v", err)
	}
	if s != nil {
		t.Error("expected nil shortlist for an empty roster")
	}
	if s.Count() != 0 {
		t.Error("nil shortlist should report zero encodings")
	}
}

func TestShortlist_FindsOwningIdentity(t *testing.T) {
	identities := []Identity{
		{ID: "alice-1", DisplayName: "Alice", Encodings: [][]float32{{1, 0, 0}}},
		{ID: "bob-2", DisplayName: "Bob", Encodings: [][]float32{{0, 1, 0}}},
		{ID: "carol-3", DisplayName: "Carol", Encodings: [][]float32{{0, 0, 1}}},
	}

	s, err := BuildShortlist(identities)
	if err != nil {
		t.Fatalf("BuildShortlist failed: %v", err)
	}
	if s.Count() != 3 {
		t.Fatalf("expected 3 indexed encodings, got %d", s.Count())
	}

	// An exact-match probe must surface its owner first.
	nearest := s.Nearest([]float32{0, 1, 0}, 1)
	if len(nearest) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(nearest))
	}
	if nearest[0].ID != "bob-2" {
		t.Errorf("expected bob-2, got %s", nearest[0].ID)
	}
}

func TestShortlist_DeduplicatesIdentities(t *testing.T) {
	// One identity with several near-identical enrollment photos must
	// appear once in the candidate list.
	identities := []Identity{
		{ID: "alice-1", DisplayName: "Alice", Encodings: [][]float32{
			{1, 0, 0},
			{0.99, 0.01, 0},
			{0.98, 0.02, 0},
		}},
		{ID: "bob-2", DisplayName: "Bob", Encodings: [][]float32{{0, 1, 0}}},
	}

	s, err := BuildShortlist(identities)
	if err != nil {
		t.Fatalf("BuildShortlist failed: %v", err)
	}

	nearest := s.Nearest([]float32{1, 0, 0}, 3)
	seen := make(map[string]int)
	for _, id := range nearest {
		seen[id.ID]++
	}
	if seen["alice-1"] != 1 {
		t.Errorf("expected alice-1 exactly once, got %d", seen["alice-1"])
	}
}
