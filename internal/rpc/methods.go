package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/identity"
	"todo-list-backend/internal/tasks"
)

func invalidParams(detail string) error {
	return &Error{Code: InvalidParams, Message: "Invalid params", Data: detail}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// isAbsent reports whether params were omitted or sent as null.
func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeCreate accepts {"description",...} or [description, date, important].
// The positional date may be a "YYYY-MM-DD" string, a unix timestamp, null,
// [] (none) or [timestamp].
func decodeCreate(raw json.RawMessage) (tasks.CreateRequest, error) {
	var req tasks.CreateRequest
	if isAbsent(raw) {
		return req, invalidParams("description is required")
	}

	if !isArray(raw) {
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, invalidParams(err.Error())
		}
		return req, nil
	}

	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return req, invalidParams(err.Error())
	}
	if len(args) == 0 || len(args) > 3 {
		return req, invalidParams("expected [description, date, important]")
	}
	var desc *string
	if err := json.Unmarshal(args[0], &desc); err != nil || desc == nil {
		return req, invalidParams("description must be a string")
	}
	req.Description = *desc
	if len(args) > 1 {
		if err := decodeDate(args[1], &req); err != nil {
			return req, err
		}
	}
	if len(args) > 2 {
		var imp bool
		if err := json.Unmarshal(args[2], &imp); err != nil {
			return req, invalidParams("important must be a bool")
		}
		req.Important = &imp
	}
	return req, nil
}

func decodeDate(raw json.RawMessage, req *tasks.CreateRequest) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &req.Date); err != nil {
			return invalidParams(err.Error())
		}
		return nil
	case raw[0] == '[':
		var opt []int64
		if err := json.Unmarshal(raw, &opt); err != nil || len(opt) > 1 {
			return invalidParams("due date option must be [] or [timestamp]")
		}
		if len(opt) == 1 {
			req.DueDate = &opt[0]
		}
		return nil
	default:
		var ts int64
		if err := json.Unmarshal(raw, &ts); err != nil {
			return invalidParams("due date must be a string or timestamp")
		}
		req.DueDate = &ts
		return nil
	}
}

// decodeTaskID accepts {"task_id": n}, [n] or a bare n.
func decodeTaskID(raw json.RawMessage) (uint64, error) {
	if isAbsent(raw) {
		return 0, invalidParams("task_id is required")
	}
	raw = bytes.TrimSpace(raw)

	switch raw[0] {
	case '{':
		var obj struct {
			TaskID *uint64 `json:"task_id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || obj.TaskID == nil {
			return 0, invalidParams("task_id is required")
		}
		return *obj.TaskID, nil
	case '[':
		var args []*uint64
		if err := json.Unmarshal(raw, &args); err != nil || len(args) != 1 || args[0] == nil {
			return 0, invalidParams("expected [task_id]")
		}
		return *args[0], nil
	default:
		var id uint64
		if err := json.Unmarshal(raw, &id); err != nil {
			return 0, invalidParams("task_id must be an unsigned integer")
		}
		return id, nil
	}
}

func (s *Server) addTask(r *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error) {
	req, err := decodeCreate(params)
	if err != nil {
		return nil, err
	}
	in, err := req.ToNewTask()
	if err != nil {
		return nil, invalidParams(err.Error())
	}

	t := s.store.Create(p, in)
	s.tracker.Track(r, p, analytics.EventTaskCreated, tasks.CreatedProps(t))
	return t, nil
}

// getTask returns null when the caller owns no task with that id.
func (s *Server) getTask(_ *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error) {
	id, err := decodeTaskID(params)
	if err != nil {
		return nil, err
	}
	t, ok := s.store.Get(p, id)
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (s *Server) toggleCompletion(r *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error) {
	id, err := decodeTaskID(params)
	if err != nil {
		return nil, err
	}
	t, ok := s.store.ToggleCompletion(p, id)
	if ok {
		s.tracker.Track(r, p, tasks.CompletionEvent(t), map[string]any{"task_id": t.ID})
	}
	return ok, nil
}

func (s *Server) toggleImportance(r *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error) {
	id, err := decodeTaskID(params)
	if err != nil {
		return nil, err
	}
	t, ok := s.store.ToggleImportance(p, id)
	if ok {
		s.tracker.Track(r, p, analytics.EventTaskImportanceChange, map[string]any{
			"task_id":          t.ID,
			"important":        t.Important,
			"importance_level": t.ImportanceLevel(),
		})
	}
	return ok, nil
}

func (s *Server) getTasks(_ *http.Request, p identity.Principal, _ json.RawMessage) (interface{}, error) {
	return s.store.List(p), nil
}

func (s *Server) getImportantTasks(_ *http.Request, p identity.Principal, _ json.RawMessage) (interface{}, error) {
	return s.store.ListImportant(p), nil
}

func (s *Server) getCompletedTasks(_ *http.Request, p identity.Principal, _ json.RawMessage) (interface{}, error) {
	return s.store.ListCompleted(p), nil
}

func (s *Server) deleteTask(r *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error) {
	id, err := decodeTaskID(params)
	if err != nil {
		return nil, err
	}
	ok := s.store.Delete(p, id)
	if ok {
		s.tracker.Track(r, p, analytics.EventTaskDeleted, map[string]any{"task_id": id})
	}
	return ok, nil
}

func (s *Server) getStats(_ *http.Request, p identity.Principal, _ json.RawMessage) (interface{}, error) {
	return s.store.Stats(p), nil
}
