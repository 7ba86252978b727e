package taskqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		expr  string
		limit rate.Limit
	}{
		{"10/s", rate.Every(100 * time.Millisecond)},
		{"60/m", rate.Every(time.Second)},
		{"2/h", rate.Every(30 * time.Minute)},
		{"4", rate.Every(250 * time.Millisecond)},
		{" 1/s ", rate.Every(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			limiter, err := ParseRateLimit(tt.expr)
			require.NoError(t, err)
			require.NotNil(t, limiter)
			assert.InDelta(t, float64(tt.limit), float64(limiter.Limit()), 1e-9)
			assert.Equal(t, 1, limiter.Burst())
		})
	}
}

func TestParseRateLimit_Empty(t *testing.T) {
	limiter, err := ParseRateLimit("")
	assert.NoError(t, err)
	assert.Nil(t, limiter)
}

func TestParseRateLimit_Invalid(t *testing.T) {
	for _, expr := range []string{"abc", "0/s", "-1/s", "10/d", "/s", "NaN/s", "nan", "Inf/m", "+Inf", "-Inf/h"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseRateLimit(expr)
			assert.Error(t, err)
		})
	}
}
