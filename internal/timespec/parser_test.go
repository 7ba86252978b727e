package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseETA(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	t.Run("duration is relative to now", func(t *testing.T) {
		got, err := ParseETA("1h30m", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(90*time.Minute), got)
	})

	t.Run("zero duration means now", func(t *testing.T) {
		got, err := ParseETA("0s", now)
		require.NoError(t, err)
		assert.Equal(t, now, got)
	})

	t.Run("RFC3339 timestamp", func(t *testing.T) {
		got, err := ParseETA("2025-10-29T13:00:00Z", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), got)
	})

	tests := []struct {
		name   string
		spec   string
		errMsg string
	}{
		{"empty", "", "empty time specification"},
		{"past timestamp", "2025-10-29T11:00:00Z", "in the past"},
		{"negative duration", "-5m", "negative"},
		{"garbage", "tomorrow", "invalid time specification"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseETA(tt.spec, now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
