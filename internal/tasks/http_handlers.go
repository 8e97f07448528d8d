package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/identity"
)

// DateLayout is the free-text due date form accepted on create.
const DateLayout = "2006-01-02"

var errBadDate = errors.New("date must be YYYY-MM-DD")

// CreateRequest is the body of POST /tasks and the params of add_task.
type CreateRequest struct {
	Description string `json:"description"`
	DueDate     *int64 `json:"due_date"`
	Date        string `json:"date"`
	Important   *bool  `json:"important"`
	Importance  *bool  `json:"importance"`
}

// ToNewTask resolves the two date forms and the two importance spellings.
// due_date wins over date; important wins over importance.
func (c CreateRequest) ToNewTask() (NewTask, error) {
	in := NewTask{Description: c.Description}

	switch {
	case c.Important != nil:
		in.Important = *c.Important
	case c.Importance != nil:
		in.Important = *c.Importance
	}

	switch {
	case c.DueDate != nil:
		in.DueDate = copyDate(c.DueDate)
	case strings.TrimSpace(c.Date) != "":
		d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(c.Date), time.UTC)
		if err != nil {
			return NewTask{}, errBadDate
		}
		ts := d.Unix()
		in.DueDate = &ts
	}

	return in, nil
}

// -------------------------------
// HELPERS
// -------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func callerOrDeny(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return p, true
}

func taskIDFromPath(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

// -------------------------------
// HANDLERS
// -------------------------------

func CreateTaskHandler(store *Store, tracker *analytics.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}

		var body CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		in, err := body.ToNewTask()
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}

		t := store.Create(p, in)
		tracker.Track(r, p, analytics.EventTaskCreated, CreatedProps(t))

		writeJSON(w, http.StatusCreated, t)
	}
}

func ListTasksHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}

		var out []Task
		switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("filter"))) {
		case "", "all":
			out = store.List(p)
		case "important":
			out = store.ListImportant(p)
		case "completed":
			out = store.ListCompleted(p)
		default:
			writeErr(w, http.StatusBadRequest, "invalid filter")
			return
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func ListImportantHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, store.ListImportant(p))
	}
}

func ListCompletedHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, store.ListCompleted(p))
	}
}

func StatsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, store.Stats(p))
	}
}

func GetTaskHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		t, found := store.Get(p, id)
		if !found {
			writeErr(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func ToggleCompletionHandler(store *Store, tracker *analytics.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		t, found := store.ToggleCompletion(p, id)
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "task not found"})
			return
		}
		tracker.Track(r, p, CompletionEvent(t), map[string]any{"task_id": t.ID})

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": t})
	}
}

func ToggleImportanceHandler(store *Store, tracker *analytics.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		t, found := store.ToggleImportance(p, id)
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "task not found"})
			return
		}
		tracker.Track(r, p, analytics.EventTaskImportanceChange, map[string]any{
			"task_id":          t.ID,
			"important":        t.Important,
			"importance_level": t.ImportanceLevel(),
		})

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": t})
	}
}

func DeleteTaskHandler(store *Store, tracker *analytics.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := callerOrDeny(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		if !store.Delete(p, id) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "task not found"})
			return
		}
		tracker.Track(r, p, analytics.EventTaskDeleted, map[string]any{"task_id": id})

		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// CreatedProps never includes the description text.
func CreatedProps(t Task) map[string]any {
	return map[string]any{
		"task_id":      t.ID,
		"text_len":     len(t.Description),
		"has_due_date": t.DueDate != nil,
		"important":    t.Important,
	}
}

func CompletionEvent(t Task) string {
	if t.Completed {
		return analytics.EventTaskCompleted
	}
	return analytics.EventTaskUncompleted
}
