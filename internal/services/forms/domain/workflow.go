package domain

import (
	"fmt"
	"strings"
)

// WorkflowStatus is the approval state stamped on each saved version.
type WorkflowStatus int

const (
	StatusApproved WorkflowStatus = iota
	StatusPending
	StatusDraft
	StatusExpired
	StatusDenied
	StatusInactive
	StatusIncomplete
	StatusScheduled
	StatusInTrash
)

var workflowStatusLabels = [...]string{
	StatusApproved:   "approved",
	StatusPending:    "pending",
	StatusDraft:      "draft",
	StatusExpired:    "expired",
	StatusDenied:     "denied",
	StatusInactive:   "inactive",
	StatusIncomplete: "incomplete",
	StatusScheduled:  "scheduled",
	StatusInTrash:    "in-trash",
}

// Valid reports whether s is a known status.
func (s WorkflowStatus) Valid() bool {
	return s >= StatusApproved && int(s) < len(workflowStatusLabels)
}

// String returns the status label.
func (s WorkflowStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return workflowStatusLabels[s]
}

// ParseWorkflowStatus parses a status label.
func ParseWorkflowStatus(label string) (WorkflowStatus, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	for i, l := range workflowStatusLabels {
		if l == label {
			return WorkflowStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown workflow status %q", label)
}

// MarshalText implements encoding.TextMarshaler.
func (s WorkflowStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown workflow status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *WorkflowStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseWorkflowStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
