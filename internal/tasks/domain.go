package tasks

import "time"

// Status is the lifecycle state of a task.
type Status string

// Task lifecycle states.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// IsValid reports whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Statuses lists the valid states in lifecycle order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// Task is a unit of work with a creator and an optional assignee.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      Status
	CreatedBy   int64
	AssignedTo  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Resolved display names, populated on reads.
	CreatorName  string
	AssigneeName *string
}

// ListFilters narrows and paginates task listings. Mine restricts to
// tasks the user created or is assigned to, as an opt-in filter even
// for principals who see everything. ScopeUserID applies the same
// restriction but is derived from the principal, never from client
// input.
type ListFilters struct {
	Search      string
	Status      Status
	AssignedTo  *int64
	CreatedBy   *int64
	Mine        *int64
	ScopeUserID *int64
	Page        int
	PerPage     int
}
