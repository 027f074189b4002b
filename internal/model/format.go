package model

import (
	"math"
	"strconv"
)

// FormatNumber renders whole numbers without a fraction and everything else
// with one decimal.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
