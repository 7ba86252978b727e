// Package testutil provides Redis fixtures shared by the package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/RichardKnop/machinery/v2/tasks"
	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/stretchr/testify/require"
)

// StartRedis starts a miniredis server that is closed when the test ends
func StartRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	return mr
}

// BindApp points the app's broker at DB 0 and its result backend at DB 1 of mr,
// mirroring the production layout.
func BindApp(a *taskqueue.App, mr *miniredis.Miniredis) {
	a.Conf.BrokerURL = fmt.Sprintf("redis://%s/0", mr.Addr())
	a.Conf.ResultBackend = fmt.Sprintf("redis://%s/1", mr.Addr())
}

// NewConnectedApp returns an app connected to mr and closed at test end
func NewConnectedApp(t *testing.T, mr *miniredis.Miniredis, name string) *taskqueue.App {
	t.Helper()

	a := taskqueue.NewApp(name)
	BindApp(a, mr)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a
}

// StoreResult writes a task state into the result database of mr in the
// layout the result backend uses. An empty result stores no return value.
func StoreResult(t *testing.T, mr *miniredis.Miniredis, id, task string, state taskqueue.TaskState, result, errMsg string) {
	t.Helper()

	ts := tasks.TaskState{
		TaskUUID: id,
		TaskName: task,
		State:    string(state),
		Error:    errMsg,
	}
	if result != "" {
		ts.Results = []*tasks.TaskResult{{Type: "string", Value: result}}
	}

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	require.NoError(t, mr.DB(1).Set(taskqueue.ResultKey(id), string(data)))
}
