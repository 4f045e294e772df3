package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStatusCanTransition(t *testing.T) {
	tests := []struct {
		from ExecutionStatus
		to   ExecutionStatus
		want bool
	}{
		{ExecutionPending, ExecutionRunning, true},
		{ExecutionPending, ExecutionFailed, true},
		{ExecutionPending, ExecutionCompleted, false},
		{ExecutionPending, ExecutionApproved, false},
		{ExecutionRunning, ExecutionRunning, true},
		{ExecutionRunning, ExecutionCompleted, true},
		{ExecutionRunning, ExecutionFailed, true},
		{ExecutionRunning, ExecutionPending, false},
		{ExecutionRunning, ExecutionApproved, false},
		{ExecutionCompleted, ExecutionApproved, true},
		{ExecutionCompleted, ExecutionRunning, true},
		{ExecutionCompleted, ExecutionPending, false},
		{ExecutionFailed, ExecutionRunning, true},
		{ExecutionFailed, ExecutionApproved, false},
		{ExecutionFailed, ExecutionPending, false},
		{ExecutionApproved, ExecutionCompleted, true},
		{ExecutionApproved, ExecutionRunning, false},
		{ExecutionApproved, ExecutionPending, false},
		{ExecutionStatus("BOGUS"), ExecutionRunning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestNothingTransitionsToPending(t *testing.T) {
	for from := range executionTransitions {
		assert.False(t, from.CanTransition(ExecutionPending), "%s -> PENDING", from)
	}
}

func TestExecutionTransition(t *testing.T) {
	e := &Execution{Status: ExecutionPending}
	require.NoError(t, e.Transition(ExecutionRunning, MessageRunning))
	assert.Equal(t, ExecutionRunning, e.Status)
	assert.Equal(t, MessageRunning, e.StatusMessage)

	err := e.Transition(ExecutionPending, "back")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, ExecutionRunning, e.Status, "failed transition leaves state unchanged")
}

func TestSectionExecutionText(t *testing.T) {
	custom := "edited"
	empty := ""
	assert.Equal(t, "gen", SectionExecution{Output: "gen"}.Text())
	assert.Equal(t, "edited", SectionExecution{Output: "gen", CustomOutput: &custom}.Text())
	assert.Equal(t, "gen", SectionExecution{Output: "gen", CustomOutput: &empty}.Text())
}
