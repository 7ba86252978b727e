package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	app := taskqueue.NewApp("test-app")
	require.NoError(t, app.AutodiscoverTasks([]string{Label}))

	task, err := app.Registry.Lookup("notifications.send_email")
	require.NoError(t, err)
	assert.Equal(t, "notifications", task.Queue)
	assert.Equal(t, 3, task.MaxRetries)
	assert.NotNil(t, task.Limiter())
}

func TestSendEmail(t *testing.T) {
	t.Run("accepts valid message", func(t *testing.T) {
		got, err := SendEmail(context.Background(), json.RawMessage(`{"to":"Ada <ada@example.com>","subject":"hi","body":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"to": "ada@example.com", "status": "queued"}, got)
	})

	tests := []struct {
		name   string
		args   string
		errMsg string
	}{
		{"not an object", `[1]`, "invalid email arguments"},
		{"bad recipient", `{"to":"nobody","subject":"hi"}`, "invalid recipient"},
		{"missing subject", `{"to":"ada@example.com"}`, "subject is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SendEmail(context.Background(), json.RawMessage(tt.args))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
