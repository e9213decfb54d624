package model

import "math"

// RoundCents rounds a dollar amount to whole cents.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
