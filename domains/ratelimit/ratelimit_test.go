package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	reset := time.Unix(100, 0)

	r := Evaluate(60, 60, reset)
	assert.False(t, r.Limited)
	assert.Equal(t, 0, r.Remaining)

	r = Evaluate(60, 61, reset)
	assert.True(t, r.Limited)
	assert.Equal(t, 0, r.Remaining)
	assert.Equal(t, 60, r.Limit)

	r = Evaluate(60, 1, reset)
	assert.Equal(t, 59, r.Remaining)
	assert.Equal(t, reset, r.Reset)
}
