package tasks

import (
	"slices"
	"sync"

	"todo-list-backend/internal/identity"
)

// Store is the in-memory task list of every principal. One mutex guards
// both the id counter and the owner map, so every operation runs to
// completion before the next one starts.
type Store struct {
	mu      sync.Mutex
	counter uint64
	tasks   map[identity.Principal][]Task
}

func NewStore() *Store {
	s := &Store{}
	s.Init()
	return s
}

// Init resets the id counter and drops every owner's tasks.
func (s *Store) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter = 0
	s.tasks = make(map[identity.Principal][]Task)
}

func (s *Store) Create(owner identity.Principal, in NewTask) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.counter
	s.counter++

	t := Task{
		ID:          id,
		Description: in.Description,
		Completed:   false,
		Important:   in.Important,
		DueDate:     copyDate(in.DueDate),
		Owner:       owner,
	}
	s.tasks[owner] = append(s.tasks[owner], t)

	return clone(t)
}

func (s *Store) Get(owner identity.Principal, id uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(owner, id)
	if i < 0 {
		return Task{}, false
	}
	return clone(s.tasks[owner][i]), true
}

func (s *Store) ToggleCompletion(owner identity.Principal, id uint64) (Task, bool) {
	return s.update(owner, id, func(t *Task) {
		t.Completed = !t.Completed
	})
}

func (s *Store) ToggleImportance(owner identity.Principal, id uint64) (Task, bool) {
	return s.update(owner, id, func(t *Task) {
		t.Important = !t.Important
	})
}

func (s *Store) List(owner identity.Principal) []Task {
	return s.filter(owner, func(Task) bool { return true })
}

func (s *Store) ListImportant(owner identity.Principal) []Task {
	return s.filter(owner, func(t Task) bool { return t.Important })
}

func (s *Store) ListCompleted(owner identity.Principal) []Task {
	return s.filter(owner, func(t Task) bool { return t.Completed })
}

// Delete removes the task and keeps the order of the rest. Ids are never
// handed out again.
func (s *Store) Delete(owner identity.Principal, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(owner, id)
	if i < 0 {
		return false
	}
	s.tasks[owner] = slices.Delete(s.tasks[owner], i, i+1)
	return true
}

func (s *Store) Stats(owner identity.Principal) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, t := range s.tasks[owner] {
		st.Total++
		if t.Completed {
			st.Completed++
		}
		if t.Important {
			st.Important++
		}
	}
	st.Pending = st.Total - st.Completed
	return st
}

func (s *Store) update(owner identity.Principal, id uint64, fn func(*Task)) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(owner, id)
	if i < 0 {
		return Task{}, false
	}
	t := &s.tasks[owner][i]
	fn(t)
	return clone(*t), true
}

func (s *Store) filter(owner identity.Principal, keep func(Task) bool) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks[owner]))
	for _, t := range s.tasks[owner] {
		if keep(t) {
			out = append(out, clone(t))
		}
	}
	return out
}

// indexOf must be called with mu held.
func (s *Store) indexOf(owner identity.Principal, id uint64) int {
	return slices.IndexFunc(s.tasks[owner], func(t Task) bool {
		return t.ID == id
	})
}

func clone(t Task) Task {
	t.DueDate = copyDate(t.DueDate)
	return t
}

func copyDate(d *int64) *int64 {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
