// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoring

import (
	"github.com/podiumhq/podium/console"
)

// WriteDecision is the outcome of combining an incoming score with the
// stored one under an update mode.
type WriteDecision struct {
	// Write is false when the store must be left untouched.
	Write bool
	// Increment selects an atomic add instead of a set.
	Increment bool
	// Value is the score to set, or the delta when Increment is set.
	Value float64
}

// Apply decides how an incoming score combines with the current one.
// current is nil for absent members. Ties under best mode produce no write.
func Apply(mode console.UpdateMode, order console.SortOrder, current *float64, incoming float64) WriteDecision {
	switch mode {
	case console.ModeIncrement:
		return WriteDecision{Write: true, Increment: true, Value: incoming}
	case console.ModeBest:
		if current == nil {
			return WriteDecision{Write: true, Value: incoming}
		}
		better := incoming > *current
		if order == console.SortAsc {
			better = incoming < *current
		}
		return WriteDecision{Write: better, Value: incoming}
	default: // replace
		return WriteDecision{Write: true, Value: incoming}
	}
}
