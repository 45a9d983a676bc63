package policy_test

import (
	"testing"

	"netrailsim/internal/model"
	"netrailsim/internal/policy"

	"github.com/stretchr/testify/require"
)

func TestConstant_RepeatsCurrentThrottleForEveryLookahead(t *testing.T) {
	var c policy.Constant
	current := model.TrainDynamicsState{NotchThrottle: 0.42}
	lookahead := make([]policy.Lookahead, 5)

	out := c.PlanThrottle(current, lookahead)
	require.Len(t, out, 5)
	for _, v := range out {
		require.Equal(t, 0.42, v)
	}
}

func TestConstant_EmptyLookaheadReturnsEmptySchedule(t *testing.T) {
	var c policy.Constant
	out := c.PlanThrottle(model.TrainDynamicsState{NotchThrottle: 1}, nil)
	require.Empty(t, out)
}
