package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/keygate/keygate/internal/audit"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// KeyEventWorker persists lifecycle events to the audit trail.
type KeyEventWorker struct {
	audit *audit.Service
}

func NewKeyEventWorker(auditSvc *audit.Service) *KeyEventWorker {
	return &KeyEventWorker{audit: auditSvc}
}

func (w *KeyEventWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload KeyEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal key event payload: %w", err)
	}

	keyID, err := uuid.Parse(payload.APIKeyID)
	if err != nil {
		return fmt.Errorf("invalid api key ID %q: %w", payload.APIKeyID, err)
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", payload.UserID, err)
	}

	return w.audit.Record(ctx, audit.Event{
		APIKeyID: keyID,
		UserID:   userID,
		Action:   payload.Action,
		Detail:   payload.Detail,
	})
}
