package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllStepsAcceptable(t *testing.T) {
	t.Run("no steps is acceptable", func(t *testing.T) {
		assert.True(t, AllStepsAcceptable(nil))
	})

	t.Run("all successes", func(t *testing.T) {
		steps := []ExecutedStep{{Success: true}, {Success: true}}
		assert.True(t, AllStepsAcceptable(steps))
	})

	t.Run("optional failure does not flip the verdict", func(t *testing.T) {
		steps := []ExecutedStep{
			{Success: true},
			{Success: false, Optional: true},
			{Success: true},
		}
		assert.True(t, AllStepsAcceptable(steps))
	})

	t.Run("required failure flips the verdict", func(t *testing.T) {
		steps := []ExecutedStep{
			{Success: true},
			{Success: false},
		}
		assert.False(t, AllStepsAcceptable(steps))
	})
}
