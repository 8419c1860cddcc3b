package workflows

import "errors"

var (
	// ErrWorkflowNotFound is returned when no workflow is registered for a category
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrConflictingModes is returned when more than one exclusive run mode is selected
	ErrConflictingModes = errors.New("icons-only, flags-only and redo-only are mutually exclusive")
)
