package finance

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// Change is the difference between two consecutive values.
type Change struct {
	Delta core.Money `json:"delta"`
	// Pct is Delta relative to the previous value, 0 when that base is 0.
	Pct float64 `json:"pct"`
}

// ChangeBetween computes current - previous and its ratio to previous.
func ChangeBetween(current, previous core.Money) Change {
	c := Change{Delta: current.Sub(previous)}
	if previous.Cents != 0 {
		c.Pct = decimal.NewFromInt(c.Delta.Cents).
			DivRound(decimal.NewFromInt(previous.Cents), 6).
			InexactFloat64()
	}
	return c
}
