package dsp

import "math"

func cos2pi(x float64) float64 { return math.Cos(2 * math.Pi * x) }

func clampDB(db, maxAbs float64) float64 {
	if db > maxAbs {
		return maxAbs
	}
	if db < -maxAbs {
		return -maxAbs
	}
	return db
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func linearToDB(linear float64) float64 {
	if linear <= 0 {
		return -math.MaxFloat64
	}
	return 20 * math.Log10(linear)
}
