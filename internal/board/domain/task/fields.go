package task

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// Field names as they appear on the wire.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldAssignedTo  = "assignedTo"
)

// fieldOrder is the order fields are reported in.
var fieldOrder = []string{FieldTitle, FieldDescription, FieldStatus, FieldPriority, FieldAssignedTo}

// readOnlyFields may be echoed back by clients and are ignored.
var readOnlyFields = map[string]struct{}{
	"id": {}, "_id": {}, "version": {}, "createdBy": {}, "lastUpdatedBy": {},
	"createdAt": {}, "updatedAt": {}, "editingSessions": {},
}

// Fields is a proposed change. A nil pointer leaves the field alone;
// Unassign clears the assignee.
type Fields struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	AssignedTo  *uuid.UUID
	Unassign    bool
}

// IsEmpty reports whether no field is touched.
func (f Fields) IsEmpty() bool {
	return len(f.Names()) == 0
}

// Names lists the touched fields in wire order.
func (f Fields) Names() []string {
	var names []string
	for _, name := range fieldOrder {
		if f.has(name) {
			names = append(names, name)
		}
	}
	return names
}

func (f Fields) has(name string) bool {
	switch name {
	case FieldTitle:
		return f.Title != nil
	case FieldDescription:
		return f.Description != nil
	case FieldStatus:
		return f.Status != nil
	case FieldPriority:
		return f.Priority != nil
	case FieldAssignedTo:
		return f.AssignedTo != nil || f.Unassign
	}
	return false
}

// Only returns a copy of f restricted to the named fields.
func (f Fields) Only(names ...string) Fields {
	var out Fields
	for _, name := range names {
		switch name {
		case FieldTitle:
			out.Title = f.Title
		case FieldDescription:
			out.Description = f.Description
		case FieldStatus:
			out.Status = f.Status
		case FieldPriority:
			out.Priority = f.Priority
		case FieldAssignedTo:
			out.AssignedTo = f.AssignedTo
			out.Unassign = f.Unassign
		}
	}
	return out
}

// value returns the string form of a touched field; nil means "no value".
func (f Fields) value(name string) *string {
	switch name {
	case FieldTitle:
		return f.Title
	case FieldDescription:
		return f.Description
	case FieldStatus:
		return ptr(string(*f.Status))
	case FieldPriority:
		return ptr(string(*f.Priority))
	case FieldAssignedTo:
		if f.Unassign || f.AssignedTo == nil {
			return nil
		}
		return ptr(f.AssignedTo.String())
	}
	return nil
}

// MarshalJSON renders the touched fields with wire names. A cleared assignee
// is rendered as null.
func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, 5)
	for _, name := range f.Names() {
		out[name] = f.value(name)
	}
	return json.Marshal(out)
}

// DecodeFields parses a client's update object. Read-only attributes that
// clients echo back are skipped; any other unknown key is rejected.
func DecodeFields(raw map[string]json.RawMessage) (Fields, error) {
	var f Fields
	for key, val := range raw {
		switch key {
		case FieldTitle:
			s, err := decodeString(key, val)
			if err != nil {
				return Fields{}, err
			}
			f.Title = &s
		case FieldDescription:
			s, err := decodeString(key, val)
			if err != nil {
				return Fields{}, err
			}
			f.Description = &s
		case FieldStatus:
			s, err := decodeString(key, val)
			if err != nil {
				return Fields{}, err
			}
			st, err := ParseStatus(s)
			if err != nil {
				return Fields{}, err
			}
			f.Status = &st
		case FieldPriority:
			s, err := decodeString(key, val)
			if err != nil {
				return Fields{}, err
			}
			p := Priority(s)
			if !p.IsValid() {
				return Fields{}, NewValidationError(FieldPriority, RuleEnum, ErrInvalidPriority)
			}
			f.Priority = &p
		case FieldAssignedTo:
			if isNull(val) {
				f.Unassign = true
				continue
			}
			s, err := decodeString(key, val)
			if err != nil {
				return Fields{}, err
			}
			if s == "" {
				f.Unassign = true
				continue
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return Fields{}, NewValidationError(key, RuleMalformed, ErrMalformedPayload)
			}
			f.AssignedTo = &id
		default:
			if _, ok := readOnlyFields[key]; ok {
				continue
			}
			return Fields{}, NewValidationError(key, RuleUnknown, ErrUnknownField)
		}
	}
	return f, nil
}

func decodeString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", NewValidationError(field, RuleMalformed, ErrMalformedPayload)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// FieldConflict is one field on which a proposal disagrees with the record.
type FieldConflict struct {
	Current  *string `json:"currentValue"`
	Proposed *string `json:"proposedValue"`
}

// Diff compares proposed against the current record field by field and
// reports the fields whose string forms differ. An empty map means the
// proposal agrees with the record.
func Diff(current *Task, proposed Fields) map[string]FieldConflict {
	conflicts := make(map[string]FieldConflict)
	for _, name := range proposed.Names() {
		cur := current.value(name)
		prop := proposed.value(name)
		if equalValues(cur, prop) {
			continue
		}
		conflicts[name] = FieldConflict{Current: cur, Proposed: prop}
	}
	return conflicts
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr(s string) *string { return &s }
