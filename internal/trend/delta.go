package trend

import (
	"math"

	"github.com/temirov/pageaudit/internal/model"
)

const deltaRoundingPlacesConstant = 6

// NewNumericDelta compares current against an optional previous value. The delta
// is rounded to six decimals and is nil whenever previous is nil.
func NewNumericDelta(current float64, previous *float64) model.NumericDelta {
	numericDelta := model.NumericDelta{Current: current}
	if previous == nil {
		return numericDelta
	}
	previousValue := *previous
	delta := round(current-previousValue, deltaRoundingPlacesConstant)
	numericDelta.Previous = &previousValue
	numericDelta.Delta = &delta
	return numericDelta
}

func unmatchedNumericDelta(current float64) model.NumericDelta {
	return model.NumericDelta{Current: current}
}

func round(value float64, places int) float64 {
	power := math.Pow(10, float64(places))
	return math.Round(value*power) / power
}

func floatPointer(value float64) *float64 {
	return &value
}

func valueOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
