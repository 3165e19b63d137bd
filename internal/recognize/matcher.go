// Package recognize implements the identity-matching decision rule:
// given a probe encoding from a detected face, find the enrolled
// identity it belongs to, or report it as unknown.
package recognize

import (
	"github.com/kozaktomas/smart-attendance/internal/roster"
)

// MatchResult is the outcome of matching one probe encoding.
// IdentityID is empty when no enrolled identity is within threshold.
type MatchResult struct {
	IdentityID  string
	DisplayName string
	Distance    float64
}

// Matched reports whether the probe was attributed to an identity.
func (r MatchResult) Matched() bool {
	return r.IdentityID != ""
}

// Matcher matches probe encodings against enrolled identities.
// The zero value is not usable; construct with NewMatcher.
type Matcher struct {
	distance DistanceFunc
}

// NewMatcher creates a matcher with the given distance function.
// A nil distance function defaults to cosine distance.
func NewMatcher(distance DistanceFunc) *Matcher {
	if distance == nil {
		distance = CosineDistance
	}
	return &Matcher{distance: distance}
}

// Match finds the best enrolled identity for the probe within threshold.
//
// Per identity, the distance is the minimum over that identity's
// reference encodings: a student enrolled with several photos is as
// good as their best photo, never diluted by an average. The identity
// with the globally smallest such distance wins. If even the best
// distance exceeds the threshold the result carries no identity —
// an ambiguous face must never be attributed to the wrong student.
//
// Ties on distance are broken by the lowest identity ID, so repeated
// calls with the same inputs always pick the same candidate.
// Pure function of its inputs.
func (m *Matcher) Match(probe []float32, candidates []roster.Identity, threshold float64) MatchResult {
	best := MatchResult{Distance: -1}

	for _, candidate := range candidates {
		d, ok := m.identityDistance(probe, candidate)
		if !ok {
			continue
		}

		switch {
		case best.Distance < 0, d < best.Distance:
			best = MatchResult{IdentityID: candidate.ID, DisplayName: candidate.DisplayName, Distance: d}
		case d == best.Distance && candidate.ID < best.IdentityID:
			best = MatchResult{IdentityID: candidate.ID, DisplayName: candidate.DisplayName, Distance: d}
		}
	}

	if best.Distance < 0 {
		return MatchResult{}
	}
	if best.Distance > threshold {
		return MatchResult{Distance: best.Distance}
	}
	return best
}

// identityDistance returns the minimum distance between the probe and
// any of the identity's reference encodings.
func (m *Matcher) identityDistance(probe []float32, id roster.Identity) (float64, bool) {
	found := false
	min := 0.0
	for _, enc := range id.Encodings {
		d := m.distance(probe, enc)
		if !found || d < min {
			min = d
			found = true
		}
	}
	return min, found
}
