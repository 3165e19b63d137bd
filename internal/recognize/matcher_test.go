package recognize

import (
	"math"
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/roster"
)

func identity(id, name string, encodings ...[]float32) roster.Identity {
	return roster.Identity{ID: id, DisplayName: name, Encodings: encodings}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, 2},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"scaled identical", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"dim mismatch", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	got := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("EuclideanDistance = %v; want 5", got)
	}

	if !math.IsInf(EuclideanDistance([]float32{1}, []float32{1, 2}), 1) {
		t.Error("expected +Inf for dimension mismatch")
	}
}

func TestMatch_ExactMatch(t *testing.T) {
	m := NewMatcher(nil)
	alice := identity("alice-1", "Alice", []float32{1, 0, 0})

	result := m.Match([]float32{1, 0, 0}, []roster.Identity{alice}, 0.35)

	if !result.Matched() {
		t.Fatal("expected a match")
	}
	if result.IdentityID != "alice-1" {
		t.Errorf("expected identity alice-1, got %s", result.IdentityID)
	}
	if result.Distance != 0 {
		t.Errorf("expected distance 0, got %v", result.Distance)
	}
}

func TestMatch_BeyondThresholdIsUnknown(t *testing.T) {
	m := NewMatcher(nil)
	alice := identity("alice-1", "Alice", []float32{1, 0, 0})

	// Orthogonal probe: cosine distance 1, well beyond threshold.
	result := m.Match([]float32{0, 1, 0}, []roster.Identity{alice}, 0.35)

	if result.Matched() {
		t.Fatalf("expected unknown, got identity %s", result.IdentityID)
	}
	if result.Distance != 1 {
		t.Errorf("expected reported distance 1, got %v", result.Distance)
	}
}

func TestMatch_DistanceEqualToThresholdMatches(t *testing.T) {
	m := NewMatcher(nil)
	alice := identity("alice-1", "Alice", []float32{1, 0, 0})

	// Orthogonal probe is exactly at distance 1.
	result := m.Match([]float32{0, 1, 0}, []roster.Identity{alice}, 1.0)

	if !result.Matched() {
		t.Error("distance equal to threshold should still match")
	}
}

func TestMatch_BestOfMultipleEncodings(t *testing.T) {
	m := NewMatcher(nil)
	// Alice enrolled with one bad and one perfect photo. The bad photo
	// must not dilute the match.
	alice := identity("alice-1", "Alice",
		[]float32{0, 1, 0}, // distance 1 to probe
		[]float32{1, 0, 0}, // distance 0 to probe
	)
	bob := identity("bob-1", "Bob", []float32{0.8, 0.6, 0}) // distance 0.2

	result := m.Match([]float32{1, 0, 0}, []roster.Identity{alice, bob}, 0.35)

	if result.IdentityID != "alice-1" {
		t.Errorf("expected alice-1 via her best encoding, got %s", result.IdentityID)
	}
	if result.Distance != 0 {
		t.Errorf("expected best-of distance 0, got %v", result.Distance)
	}
}

func TestMatch_TieBreaksOnLowestID(t *testing.T) {
	m := NewMatcher(nil)
	enc := []float32{1, 0, 0}
	first := identity("id-aaa", "First", enc)
	second := identity("id-bbb", "Second", enc)

	// Run repeatedly and with both candidate orders: the winner must
	// be the lowest ID every time.
	for i := 0; i < 10; i++ {
		for _, candidates := range [][]roster.Identity{
			{first, second},
			{second, first},
		} {
			result := m.Match(enc, candidates, 0.35)
			if result.IdentityID != "id-aaa" {
				t.Fatalf("tie-break picked %s; want id-aaa", result.IdentityID)
			}
		}
	}
}

func TestMatch_NoCandidates(t *testing.T) {
	m := NewMatcher(nil)
	result := m.Match([]float32{1, 0, 0}, nil, 0.35)
	if result.Matched() {
		t.Error("expected no match with empty roster")
	}
	if result.Distance != 0 {
		t.Errorf("expected zero-value distance, got %v", result.Distance)
	}
}

func TestMatch_CustomDistanceFunc(t *testing.T) {
	m := NewMatcher(EuclideanDistance)
	alice := identity("alice-1", "Alice", []float32{0, 0})

	result := m.Match([]float32{3, 4}, []roster.Identity{alice}, 6.0)
	if !result.Matched() {
		t.Fatal("expected match within euclidean threshold")
	}
	if math.Abs(result.Distance-5) > 1e-9 {
		t.Errorf("expected distance 5, got %v", result.Distance)
	}
}
