package rpc

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/identity"
	"todo-list-backend/internal/tasks"
)

func newRPCServer(t *testing.T) (*Server, *tasks.Store, *analytics.MemorySink) {
	t.Helper()
	store := tasks.NewStore()
	sink := analytics.NewMemorySink()
	logger := log.New(io.Discard, "", 0)
	return NewServer(store, analytics.NewTracker(sink, logger), logger), store, sink
}

func call(t *testing.T, s *Server, p identity.Principal, body string) Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	if p != "" {
		req = req.WithContext(identity.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_ParseError(t *testing.T) {
	s, _, _ := newRPCServer(t)

	resp := call(t, s, "alice", "not valid json")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ParseError, resp.Error.Code)
}

func TestServer_InvalidRequest(t *testing.T) {
	s, _, _ := newRPCServer(t)

	resp := call(t, s, "alice", `{"jsonrpc":"1.0","method":"get_tasks","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestServer_MissingMethod(t *testing.T) {
	s, _, _ := newRPCServer(t)

	resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestServer_BatchRejected(t *testing.T) {
	s, store, _ := newRPCServer(t)

	resp := call(t, s, "alice", `[{"jsonrpc":"2.0","id":1,"method":"add_task","params":["x"]}]`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
	assert.Empty(t, store.List("alice"))
}

func TestServer_MethodNotFound(t *testing.T) {
	s, _, _ := newRPCServer(t)

	resp := call(t, s, "alice", `{"jsonrpc":"2.0","method":"update_task","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestServer_NoCaller(t *testing.T) {
	s, _, _ := newRPCServer(t)

	resp := call(t, s, "", `{"jsonrpc":"2.0","method":"get_tasks","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, Unauthorized, resp.Error.Code)
}

func TestServer_RejectsGET(t *testing.T) {
	s, _, _ := newRPCServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Methods(t *testing.T) {
	s, _, _ := newRPCServer(t)

	assert.Equal(t, []string{
		"add_task",
		"delete_task",
		"get_completed_tasks",
		"get_important_tasks",
		"get_stats",
		"get_task",
		"get_tasks",
		"toggle_task_completion",
		"toggle_task_importance",
	}, s.Methods())
}

func TestServer_AddTaskParamForms(t *testing.T) {
	tests := []struct {
		name      string
		params    string
		wantDue   *int64
		important bool
	}{
		{"object", `{"description":"a","date":"2026-01-01","importance":true}`, ptr(1767225600), true},
		{"positional date string", `["a","2026-01-01",true]`, ptr(1767225600), true},
		{"positional empty option", `["a",[],false]`, nil, false},
		{"positional some option", `["a",[99],false]`, ptr(99), false},
		{"positional timestamp", `["a",5]`, ptr(5), false},
		{"positional null", `["a",null,true]`, nil, true},
		{"description only", `["a"]`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newRPCServer(t)

			resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"add_task","params":`+tt.params+`}`)
			require.Nil(t, resp.Error)

			var task tasks.Task
			require.NoError(t, json.Unmarshal(resp.Result, &task))
			assert.Equal(t, uint64(0), task.ID)
			assert.Equal(t, "a", task.Description)
			assert.Equal(t, tt.important, task.Important)
			assert.Equal(t, tt.wantDue, task.DueDate)
			assert.Equal(t, identity.Principal("alice"), task.Owner)
		})
	}
}

func TestServer_AddTaskInvalidParams(t *testing.T) {
	for _, params := range []string{
		`[]`,
		`[1]`,
		`["a","tomorrow"]`,
		`["a",[1,2]]`,
		`["a",null,"yes"]`,
		`["a",null,true,4]`,
		`null`,
		`[null]`,
	} {
		s, _, _ := newRPCServer(t)
		resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"add_task","params":`+params+`}`)
		require.NotNil(t, resp.Error, params)
		assert.Equal(t, InvalidParams, resp.Error.Code, params)
	}
}

func TestServer_TaskIDInvalidParams(t *testing.T) {
	methods := []string{"get_task", "toggle_task_completion", "toggle_task_importance", "delete_task"}
	params := []string{`null`, `{}`, `{"task_id":null}`, `[]`, `[null]`, `[0,1]`, `-1`, `[-1]`, `"0"`, `["0"]`}

	for _, m := range methods {
		for _, p := range params {
			t.Run(m+" "+p, func(t *testing.T) {
				s, store, sink := newRPCServer(t)
				store.Create("alice", tasks.NewTask{Description: "keep me"})
				before := store.List("alice")

				resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"`+m+`","params":`+p+`}`)
				require.NotNil(t, resp.Error)
				assert.Equal(t, InvalidParams, resp.Error.Code)
				assert.Equal(t, before, store.List("alice"))
				assert.Empty(t, sink.Events())
			})
		}
	}

	s, store, _ := newRPCServer(t)
	store.Create("alice", tasks.NewTask{Description: "keep me"})
	resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"delete_task"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.Len(t, store.List("alice"), 1)
}

func TestServer_EndToEnd(t *testing.T) {
	s, _, sink := newRPCServer(t)

	resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"add_task","params":["buy milk","2026-01-01",true]}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{
		"id":0,"description":"buy milk","completed":false,"important":true,
		"due_date":1767225600,"owner":"alice","importance_level":"High Priority"
	}`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":2,"method":"toggle_task_completion","params":[0]}`)
	assert.JSONEq(t, `true`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":3,"method":"add_task","params":{"description":"call bob","important":false}}`)
	var second tasks.Task
	require.NoError(t, json.Unmarshal(resp.Result, &second))
	assert.Equal(t, uint64(1), second.ID)

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":4,"method":"get_important_tasks"}`)
	var important []tasks.Task
	require.NoError(t, json.Unmarshal(resp.Result, &important))
	require.Len(t, important, 1)
	assert.Equal(t, uint64(0), important[0].ID)

	resp = call(t, s, "bob", `{"jsonrpc":"2.0","id":5,"method":"get_task","params":{"task_id":0}}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, "null", string(resp.Result))

	resp = call(t, s, "bob", `{"jsonrpc":"2.0","id":6,"method":"delete_task","params":0}`)
	assert.JSONEq(t, `false`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":7,"method":"delete_task","params":[0]}`)
	assert.JSONEq(t, `true`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":8,"method":"get_task","params":[0]}`)
	assert.Equal(t, "null", string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":9,"method":"get_tasks"}`)
	var all []tasks.Task
	require.NoError(t, json.Unmarshal(resp.Result, &all))
	assert.Equal(t, []tasks.Task{second}, all)

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":10,"method":"get_completed_tasks"}`)
	assert.JSONEq(t, `[]`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":11,"method":"get_stats"}`)
	assert.JSONEq(t, `{"total":1,"completed":0,"important":0,"pending":1}`, string(resp.Result))

	assert.Len(t, sink.Events(analytics.EventTaskCreated), 2)
	assert.Len(t, sink.Events(analytics.EventTaskCompleted), 1)
	assert.Len(t, sink.Events(analytics.EventTaskDeleted), 1)
}

func TestServer_ToggleImportance(t *testing.T) {
	s, store, _ := newRPCServer(t)
	store.Create("alice", tasks.NewTask{Description: "a"})

	resp := call(t, s, "alice", `{"jsonrpc":"2.0","id":1,"method":"toggle_task_importance","params":{"task_id":0}}`)
	assert.JSONEq(t, `true`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":2,"method":"toggle_task_importance","params":{"task_id":9}}`)
	assert.JSONEq(t, `false`, string(resp.Result))

	resp = call(t, s, "alice", `{"jsonrpc":"2.0","id":3,"method":"toggle_task_importance","params":{}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	got, ok := store.Get("alice", 0)
	require.True(t, ok)
	assert.True(t, got.Important)
	assert.Equal(t, tasks.LevelHigh, got.ImportanceLevel())
}

func ptr(v int64) *int64 {
	return &v
}
