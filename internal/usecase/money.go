package usecase

import "math"

// amountEpsilon is the tolerance for every ledger and amount comparison.
const amountEpsilon = 0.01

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
