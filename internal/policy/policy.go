// Package policy defines the pluggable throttle-optimizer interface
// referenced by spec.md §9 ("A* optimizer. Not specified here beyond its
// interface...") and its trivial conformant implementation.
package policy

import "netrailsim/internal/model"

// Lookahead is one future tick's track context, used by a ThrottlePolicy to
// plan ahead.
type Lookahead struct {
	Grade, Curvature, FreeFlowSpeed float64
}

// ThrottlePolicy returns a throttle schedule given a train's current
// dynamics state and an array of future ticks' lookahead. No search
// algorithm is specified by spec.md — only this interface.
type ThrottlePolicy interface {
	PlanThrottle(current model.TrainDynamicsState, lookahead []Lookahead) []float64
}

// Constant always returns the current discrete throttle, repeated for every
// lookahead tick: "a trivial implementation that always returns the current
// discrete throttle is a valid core-conformant implementation" (spec.md §9).
type Constant struct{}

func (Constant) PlanThrottle(current model.TrainDynamicsState, lookahead []Lookahead) []float64 {
	out := make([]float64, len(lookahead))
	for i := range out {
		out[i] = current.NotchThrottle
	}
	return out
}
