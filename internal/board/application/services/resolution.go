package services

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
)

// Strategy names how a conflict is settled.
type Strategy string

const (
	StrategyOverwrite Strategy = "overwrite"
	StrategyMerge     Strategy = "merge"
	StrategyDiscard   Strategy = "discard"
)

// Per-field merge choices.
const (
	ChoiceMine   = "mine"
	ChoiceTheirs = "theirs"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyOverwrite, StrategyMerge, StrategyDiscard:
		return Strategy(s), nil
	default:
		return "", task.NewValidationError("type", task.RuleEnum, ErrInvalidResolution)
	}
}

// Resolution is the caller's decision after a conflict.
type Resolution struct {
	Strategy Strategy
	Fields   task.Fields
	// Choices maps field name to ChoiceMine or ChoiceTheirs for a merge. A
	// nil map keeps every proposed field.
	Choices map[string]string
}

// fieldsToWrite returns what the resolution writes. Theirs means keep the
// stored value, so only fields chosen as mine are written.
func (res Resolution) fieldsToWrite() (task.Fields, error) {
	if res.Strategy != StrategyMerge || res.Choices == nil {
		return res.Fields, nil
	}
	mine := make([]string, 0, len(res.Choices))
	for field, choice := range res.Choices {
		switch choice {
		case ChoiceMine:
			mine = append(mine, field)
		case ChoiceTheirs:
		default:
			return task.Fields{}, task.NewValidationError(field, task.RuleEnum, ErrInvalidResolution)
		}
	}
	return res.Fields.Only(mine...), nil
}

// Resolve settles a conflict. Overwrite and merge write against whatever
// version is current, so they always win; discard writes nothing.
func (r *ConflictResolver) Resolve(ctx context.Context, taskID uuid.UUID, res Resolution, performedBy uuid.UUID) (*UpdateOutcome, error) {
	if _, err := ParseStrategy(string(res.Strategy)); err != nil {
		return nil, err
	}

	fields, err := res.fieldsToWrite()
	if err != nil {
		return nil, err
	}
	if res.Strategy == StrategyDiscard || fields.IsEmpty() {
		current, err := r.tasks.FindByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		r.logger.InfoContext(ctx, "conflict discarded",
			"task_id", taskID,
			"strategy", res.Strategy,
		)
		return &UpdateOutcome{Task: current}, nil
	}

	return r.Update(ctx, UpdateRequest{
		TaskID:      taskID,
		Fields:      fields,
		PerformedBy: performedBy,
		Strategy:    res.Strategy,
	})
}
