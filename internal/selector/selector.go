// Package selector draws random paper keys weighted by per-year corpus
// volume, so years with more published papers are drawn proportionally
// more often.
package selector

import (
	"math/rand/v2"
	"sort"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

// maxRedraws bounds the attempts to avoid a key in the exclude set.
// Exhaustion is accepted: serving a repeat beats serving nothing.
const maxRedraws = 50

// DefaultWeights maps publication year to the approximate number of
// papers the archive holds for that year. The weight doubles as the
// upper bound of the year's 1-indexed sequence numbers.
func DefaultWeights() map[int]int {
	return map[int]int{
		2000: 69, 2001: 113, 2002: 195, 2003: 265, 2004: 377,
		2005: 469, 2006: 486, 2007: 482, 2008: 545, 2009: 638,
		2010: 661, 2011: 714, 2012: 733, 2013: 882, 2014: 1029,
		2015: 1257, 2016: 1196, 2017: 1262, 2018: 1251, 2019: 1499,
		2020: 1620, 2021: 1705, 2022: 1781, 2023: 1973, 2024: 2100,
	}
}

// Selector performs weighted draws over a fixed year/weight table using
// a prefix-sum lookup. It is stateless after construction and safe for
// concurrent use.
type Selector struct {
	years      []int
	cumulative []int
	total      int
}

// New builds a selector from the given weight table. A nil or empty
// table falls back to DefaultWeights. Years with non-positive weights
// are dropped.
func New(weights map[int]int) *Selector {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}

	years := make([]int, 0, len(weights))
	for year, weight := range weights {
		if weight > 0 {
			years = append(years, year)
		}
	}
	sort.Ints(years)

	s := &Selector{
		years:      years,
		cumulative: make([]int, len(years)),
	}
	for i, year := range years {
		s.total += weights[year]
		s.cumulative[i] = s.total
	}
	return s
}

// Pick draws a paper key with year probability proportional to its
// weight and a uniform 1-indexed sequence within the year. Keys whose
// cache key appears in exclude are redrawn up to maxRedraws times; if
// every attempt collides the last draw is returned anyway.
func (s *Selector) Pick(exclude map[string]struct{}) domain.PaperKey {
	var key domain.PaperKey
	for attempt := 0; attempt < maxRedraws; attempt++ {
		key = s.draw()
		if _, seen := exclude[key.CacheKey()]; !seen {
			return key
		}
	}
	return key
}

// draw samples one key via the prefix-sum table.
func (s *Selector) draw() domain.PaperKey {
	n := rand.IntN(s.total)
	idx := sort.SearchInts(s.cumulative, n+1)

	start := 0
	if idx > 0 {
		start = s.cumulative[idx-1]
	}
	return domain.PaperKey{
		Year:     s.years[idx],
		Sequence: n - start + 1,
	}
}

// TotalWeight returns the sum of all year weights.
func (s *Selector) TotalWeight() int {
	return s.total
}
