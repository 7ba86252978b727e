package taskqueue

import (
	"encoding/json"
	"testing"

	"github.com/RichardKnop/machinery/v2/tasks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureArgs(t *testing.T) {
	args := signatureArgs(json.RawMessage(`[1,2]`))
	require.Len(t, args, 1)
	assert.Equal(t, "string", args[0].Type)
	assert.Equal(t, "[1,2]", args[0].Value)

	assert.Equal(t, "null", signatureArgs(nil)[0].Value)
}

func TestResultFromState(t *testing.T) {
	id := uuid.New().String()

	t.Run("decodes a success state", func(t *testing.T) {
		r, err := resultFromState(&tasks.TaskState{
			TaskUUID: id,
			TaskName: "core.add",
			State:    tasks.StateSuccess,
			Results:  []*tasks.TaskResult{{Type: "string", Value: "3"}},
		})
		require.NoError(t, err)
		assert.Equal(t, id, r.TaskID)
		assert.Equal(t, "core.add", r.Task)
		assert.Equal(t, StateSuccess, r.State)
		assert.Equal(t, json.RawMessage("3"), r.Result)
	})

	t.Run("failure keeps the error and no result", func(t *testing.T) {
		r, err := resultFromState(&tasks.TaskState{TaskUUID: id, State: tasks.StateFailure, Error: "boom"})
		require.NoError(t, err)
		assert.Equal(t, "boom", r.Error)
		assert.Nil(t, r.Result)
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		_, err := resultFromState(&tasks.TaskState{TaskUUID: id, State: "LOST"})
		assert.Error(t, err)
	})

	t.Run("rejects non-string result", func(t *testing.T) {
		_, err := resultFromState(&tasks.TaskState{
			TaskUUID: id,
			State:    tasks.StateSuccess,
			Results:  []*tasks.TaskResult{{Type: "int64", Value: 3}},
		})
		assert.Error(t, err)
	})

	t.Run("rejects invalid JSON result", func(t *testing.T) {
		_, err := resultFromState(&tasks.TaskState{
			TaskUUID: id,
			State:    tasks.StateSuccess,
			Results:  []*tasks.TaskResult{{Type: "string", Value: "{"}},
		})
		assert.Error(t, err)
	})
}
