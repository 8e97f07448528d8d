package tasks

import (
	"encoding/json"

	"todo-list-backend/internal/identity"
)

const (
	LevelHigh   = "High Priority"
	LevelNormal = "Normal Priority"
)

type Task struct {
	ID          uint64             `json:"id"`
	Description string             `json:"description"`
	Completed   bool               `json:"completed"`
	Important   bool               `json:"important"`
	DueDate     *int64             `json:"due_date,omitempty"` // unix seconds
	Owner       identity.Principal `json:"owner"`
}

// ImportanceLevel is derived from Important on every call.
func (t Task) ImportanceLevel() string {
	if t.Important {
		return LevelHigh
	}
	return LevelNormal
}

func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		ImportanceLevel string `json:"importance_level"`
	}{
		plain:           plain(t),
		ImportanceLevel: t.ImportanceLevel(),
	})
}

// NewTask holds the client-supplied fields of a task. The owner always
// comes from the resolved caller.
type NewTask struct {
	Description string
	DueDate     *int64
	Important   bool
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Important int `json:"important"`
	Pending   int `json:"pending"`
}
