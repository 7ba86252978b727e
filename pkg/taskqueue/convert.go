package taskqueue

import (
	"encoding/json"
	"fmt"

	"github.com/RichardKnop/machinery/v2/tasks"
)

// Conversion helpers between task handlers and machinery signatures.
//
// Every task function takes its arguments as one JSON string and returns
// its result as one JSON string, so handlers never see reflection-typed
// values.

const argsName = "args"

// signatureArgs wraps raw JSON arguments as a signature's single argument.
func signatureArgs(raw json.RawMessage) []tasks.Arg {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return []tasks.Arg{{Name: argsName, Type: "string", Value: string(raw)}}
}

// resultFromState converts a stored task state.
func resultFromState(s *tasks.TaskState) (*TaskResult, error) {
	r := &TaskResult{
		TaskID: s.TaskUUID,
		Task:   s.TaskName,
		State:  TaskState(s.State),
		Error:  s.Error,
	}

	if err := r.State.Validate(); err != nil {
		return nil, err
	}

	if len(s.Results) > 0 && s.Results[0] != nil {
		raw, ok := s.Results[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected result value of type %s", s.Results[0].Type)
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("result is not valid JSON")
		}
		r.Result = json.RawMessage(raw)
	}

	return r, nil
}
