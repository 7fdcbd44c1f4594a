package domain

// PublishDecision is the per-request outcome of reading the current
// published flag. WillPublish is always the negation of WasPublished.
type PublishDecision struct {
	FormInstanceID int64
	WasPublished   bool
	WillPublish    bool
}

// NewPublishDecision builds the toggle decision for a form instance.
func NewPublishDecision(formInstanceID int64, wasPublished bool) PublishDecision {
	return PublishDecision{
		FormInstanceID: formInstanceID,
		WasPublished:   wasPublished,
		WillPublish:    !wasPublished,
	}
}

// Status resolves the workflow status to stamp on the save. Publishing always
// approves; unpublishing keeps the latest version's status.
func (d PublishDecision) Status(latest WorkflowStatus) WorkflowStatus {
	if d.WillPublish {
		return StatusApproved
	}
	return latest
}
