package operation

import (
	"context"

	"fretops/internal/core/id"
)

// Event types published after a committed mutation. The fan-out worker
// resolves recipients and delivers in-app and email notifications.
const (
	EventCreated        = "operation.created"
	EventDetailsUpdated = "operation.details_updated"
	EventReserved       = "operation.reserved"
	EventDocumentAdded  = "operation.document_added"
	EventCommentAdded   = "operation.comment_added"
)

// Event is one committed mutation, recorded inside the mutation transaction
// and delivered only after it commits.
type Event struct {
	Type        string        `json:"type"`
	OperationID id.ID         `json:"operationId"`
	ActorID     string        `json:"actorId"`
	Message     string        `json:"message"`
	Changes     []FieldChange `json:"changes,omitempty"`
}

// EventSink accepts events for post-commit delivery. Implementations must
// persist within the caller's transaction so that events of rolled-back
// mutations are never delivered.
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}
