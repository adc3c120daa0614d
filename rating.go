package kgain

import (
	"encoding"
	"fmt"
	"math"
)

// Rating is the review grade a simulated outcome corresponds to.
type Rating int

const (
	Again Rating = iota + 1 // Forgotten.
	Hard                    // Recalled with significant difficulty.
	Good                    // Recalled.
	Easy                    // Recalled effortlessly.
)

// The simulator models two outcomes only.
var simulatedRatings = [2]Rating{Again, Good}

// RatingProbs weights the four ratings of a first review, indexed by
// Rating-1. The zero value means uniform.
type RatingProbs [4]float64

// UniformRatingProbs is the first-rating distribution with no history.
var UniformRatingProbs = RatingProbs{0.25, 0.25, 0.25, 0.25}

// FirstRatingProbs estimates the first-rating distribution from observed
// counts of Again, Hard, Good and Easy, with add-one smoothing.
func FirstRatingProbs(counts [4]int) RatingProbs {
	total := 0
	for _, c := range counts {
		total += c
	}
	var p RatingProbs
	for i, c := range counts {
		p[i] = float64(c+1) / float64(total+4)
	}
	return p
}

// Of returns the weight of rating r.
func (p RatingProbs) Of(r Rating) float64 {
	return p[r-1]
}

// normalized fills the zero value with UniformRatingProbs and scales the
// weights to sum to 1.
func (p RatingProbs) normalized() (RatingProbs, error) {
	if p == (RatingProbs{}) {
		return UniformRatingProbs, nil
	}
	var sum float64
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return RatingProbs{}, fmt.Errorf("%w: first rating probability %s = %v", ErrInvalidConfig, Rating(i+1), v)
		}
		sum += v
	}
	for i := range p {
		p[i] /= sum
	}
	return p, nil
}

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// IsValid reports whether r is a valid rating (Again through Easy).
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the name of the rating. For invalid values it returns "Rating(n)".
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler; JSON and YAML use it too.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("kgain: invalid rating: %d", int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	for v := Again; v <= Easy; v++ {
		if ratingNames[v] == string(text) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("kgain: invalid rating: %q", text)
}
