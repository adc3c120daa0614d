package kgain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingValues(t *testing.T) {
	assert.Equal(t, Rating(1), Again)
	assert.Equal(t, Rating(2), Hard)
	assert.Equal(t, Rating(3), Good)
	assert.Equal(t, Rating(4), Easy)
}

func TestSimulatedRatings(t *testing.T) {
	assert.Equal(t, [2]Rating{Again, Good}, simulatedRatings)
}

func TestRatingString(t *testing.T) {
	tests := []struct {
		r    Rating
		want string
	}{
		{Again, "Again"},
		{Hard, "Hard"},
		{Good, "Good"},
		{Easy, "Easy"},
		{Rating(0), "Rating(0)"},
		{Rating(5), "Rating(5)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.String())
	}
}

func TestRatingIsValid(t *testing.T) {
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		assert.True(t, r.IsValid(), "Rating(%d)", int(r))
	}
	for _, r := range []Rating{0, -1, 5, 100} {
		assert.False(t, r.IsValid(), "Rating(%d)", int(r))
	}
}

func TestRatingJSONRoundTrip(t *testing.T) {
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Equal(t, `"`+r.String()+`"`, string(data))

		var got Rating
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, r, got)
	}
}

func TestRatingJSONInvalid(t *testing.T) {
	_, err := json.Marshal(Rating(0))
	assert.Error(t, err)

	for _, input := range []string{`"Unknown"`, `""`, `42`} {
		var r Rating
		assert.Error(t, json.Unmarshal([]byte(input), &r), input)
	}
}

func TestFirstRatingProbs(t *testing.T) {
	assert.Equal(t, UniformRatingProbs, FirstRatingProbs([4]int{}))
	p := FirstRatingProbs([4]int{3, 0, 12, 1})
	assert.Equal(t, RatingProbs{0.2, 0.05, 0.65, 0.1}, p)
	assert.Equal(t, 0.65, p.Of(Good))
}

func TestRatingProbsNormalized(t *testing.T) {
	p, err := RatingProbs{}.normalized()
	require.NoError(t, err)
	assert.Equal(t, UniformRatingProbs, p)

	p, err = RatingProbs{2, 0, 6, 0}.normalized()
	require.NoError(t, err)
	assert.Equal(t, RatingProbs{0.25, 0, 0.75, 0}, p)

	_, err = RatingProbs{1, 1, -1, 1}.normalized()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "Good")
}
