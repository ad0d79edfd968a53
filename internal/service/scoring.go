package service

import "math"

// maxScore is the per-dimension score for a perfect guess.
const maxScore = 5000

// yearPenalty maps year distance to the score deduction for distances
// up to five years.
var yearPenalty = map[int]int{0: 0, 1: 100, 2: 500, 3: 1000, 4: 2000, 5: 4000}

// citePenaltyPerLog2 is the deduction per doubling of error between the
// guessed and actual citation counts.
const citePenaltyPerLog2 = 1500.0

// ScorePaperGuess scores a round. It is a pure function: no I/O, fully
// deterministic. An exact guess on a dimension always scores maxScore.
//
// The citation score compares guess and actual on a log2 scale with a
// +20 offset, so being off by a factor matters equally for small and
// large counts while tiny absolute misses near zero stay cheap.
// Negative citation guesses are clamped to zero before scoring.
func ScorePaperGuess(yearGuess, citeGuess, actualYear, actualCites int) (yearScore, citeScore int) {
	return scoreYear(yearGuess, actualYear), scoreCitations(citeGuess, actualCites)
}

func scoreYear(guess, actual int) int {
	dist := guess - actual
	if dist < 0 {
		dist = -dist
	}
	if penalty, ok := yearPenalty[dist]; ok {
		return maxScore - penalty
	}
	score := maxScore - (dist-5)*1000
	if score < 0 {
		return 0
	}
	return score
}

func scoreCitations(guess, actual int) int {
	if guess < 0 {
		guess = 0
	}
	if guess == actual {
		return maxScore
	}

	err := math.Abs(math.Log2(float64(guess)+20) - math.Log2(float64(actual)+20))
	score := maxScore - citePenaltyPerLog2*err
	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}
