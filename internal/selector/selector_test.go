package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

func TestPick_SequenceWithinYearBounds(t *testing.T) {
	weights := DefaultWeights()
	s := New(nil)

	for i := 0; i < 5000; i++ {
		key := s.Pick(nil)
		bound, ok := weights[key.Year]
		require.True(t, ok, "drawn year %d is not in the weight table", key.Year)
		assert.GreaterOrEqual(t, key.Sequence, 1)
		assert.LessOrEqual(t, key.Sequence, bound)
	}
}

func TestPick_DistributionFollowsWeights(t *testing.T) {
	s := New(map[int]int{2010: 100, 2020: 900})

	const draws = 20000
	perYear := map[int]int{}
	for i := 0; i < draws; i++ {
		perYear[s.Pick(nil).Year]++
	}

	// Expect roughly a 1:9 split; allow generous sampling tolerance.
	frac2020 := float64(perYear[2020]) / draws
	assert.InDelta(t, 0.9, frac2020, 0.03)
	assert.Equal(t, draws, perYear[2010]+perYear[2020])
}

func TestPick_EdgeSequencesReachable(t *testing.T) {
	s := New(map[int]int{2005: 3})

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		seen[s.Pick(nil).Sequence] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, seen,
		"every sequence from 1 to the year weight must be drawable")
}

func TestPick_AvoidsExcludedKeys(t *testing.T) {
	s := New(map[int]int{2010: 2, 2020: 2})

	exclude := map[string]struct{}{
		"2010_0001": {},
		"2010_0002": {},
		"2020_0001": {},
	}
	for i := 0; i < 200; i++ {
		key := s.Pick(exclude)
		assert.Equal(t, domain.PaperKey{Year: 2020, Sequence: 2}, key)
	}
}

func TestPick_ExhaustionReturnsAKeyAnyway(t *testing.T) {
	s := New(map[int]int{2010: 1})

	exclude := map[string]struct{}{"2010_0001": {}}
	key := s.Pick(exclude)

	// With every key excluded the redraw budget runs out and the last
	// draw is returned rather than failing.
	assert.Equal(t, domain.PaperKey{Year: 2010, Sequence: 1}, key)
}

func TestNew_DropsNonPositiveWeights(t *testing.T) {
	s := New(map[int]int{2010: 0, 2015: -5, 2020: 10})
	assert.Equal(t, 10, s.TotalWeight())

	for i := 0; i < 100; i++ {
		assert.Equal(t, 2020, s.Pick(nil).Year)
	}
}
