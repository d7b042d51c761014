package queries

import (
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
)

// UserRefDTO names a user inside another record.
type UserRefDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// TaskDTO is the wire form of a task.
type TaskDTO struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Status        string      `json:"status"`
	Priority      string      `json:"priority"`
	AssignedTo    *UserRefDTO `json:"assignedTo"`
	CreatedBy     UserRefDTO  `json:"createdBy"`
	LastUpdatedBy *UserRefDTO `json:"lastUpdatedBy"`
	Version       int         `json:"version"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Editors       []uuid.UUID `json:"editors,omitempty"`
}

// ToTaskDTO converts a task. names resolves display names and may be nil.
func ToTaskDTO(t *task.Task, names map[uuid.UUID]string) TaskDTO {
	ref := func(id uuid.UUID) UserRefDTO { return UserRefDTO{ID: id, Name: names[id]} }
	optRef := func(id *uuid.UUID) *UserRefDTO {
		if id == nil {
			return nil
		}
		r := ref(*id)
		return &r
	}
	return TaskDTO{
		ID:            t.ID(),
		Title:         t.Title(),
		Description:   t.Description(),
		Status:        string(t.Status()),
		Priority:      string(t.Priority()),
		AssignedTo:    optRef(t.AssignedTo()),
		CreatedBy:     ref(t.CreatedBy()),
		LastUpdatedBy: optRef(t.LastUpdatedBy()),
		Version:       t.Version(),
		CreatedAt:     t.CreatedAt(),
		UpdatedAt:     t.UpdatedAt(),
	}
}

// UserDTO is the wire form of a user.
type UserDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"createdAt"`
	OpenTaskCount int       `json:"openTaskCount"`
}

func nameIndex(users []*user.User) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}
