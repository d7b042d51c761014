package task

import "strings"

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
)

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", NewValidationError(FieldStatus, RuleEnum, ErrInvalidStatus)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// IsOpen reports whether a task in this status counts toward its assignee's load.
func (s Status) IsOpen() bool {
	return s == StatusTodo || s == StatusInProgress
}

func (s Status) String() string { return string(s) }

// OpenStatuses are the statuses that count toward an assignee's load.
var OpenStatuses = []Status{StatusTodo, StatusInProgress}

// Priority orders tasks within a column.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a wire priority value. Empty means medium.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if !p.IsValid() {
		return "", NewValidationError(FieldPriority, RuleEnum, ErrInvalidPriority)
	}
	return p, nil
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) String() string { return string(p) }

var reservedTitles = map[string]struct{}{
	"to do":       {},
	"in progress": {},
	"completed":   {},
	"todo":        {},
	"inprogress":  {},
}

// ReservedTitle reports whether title collides with a column name.
func ReservedTitle(title string) bool {
	_, ok := reservedTitles[strings.ToLower(strings.TrimSpace(title))]
	return ok
}

// ValidateTitle trims title and checks it is usable.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", NewValidationError(FieldTitle, RuleRequired, ErrEmptyTitle)
	}
	if ReservedTitle(title) {
		return "", NewValidationError(FieldTitle, RuleReserved, ErrReservedTitle)
	}
	return title, nil
}
