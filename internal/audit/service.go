package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one recorded key-lifecycle transition.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	APIKeyID  uuid.UUID         `json:"api_key_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Action    string            `json:"action"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Service persists and reads the key-lifecycle audit trail. Events are not
// FK-bound to api_keys so the trail survives key deletion.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Record(ctx context.Context, evt Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	detail := evt.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO key_events (id, api_key_id, user_id, action, detail)
		 VALUES ($1, $2, $3, $4, $5)`,
		evt.ID, evt.APIKeyID, evt.UserID, evt.Action, detailJSON,
	)
	if err != nil {
		return fmt.Errorf("insert key event: %w", err)
	}
	return nil
}

func (s *Service) ListForKey(ctx context.Context, keyID, ownerID uuid.UUID) ([]Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, api_key_id, user_id, action, detail, created_at
		 FROM key_events
		 WHERE api_key_id = $1 AND user_id = $2
		 ORDER BY created_at DESC`,
		keyID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list key events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var evt Event
		var detailJSON []byte
		if err := rows.Scan(&evt.ID, &evt.APIKeyID, &evt.UserID, &evt.Action, &detailJSON, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan key event: %w", err)
		}
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &evt.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal event detail: %w", err)
			}
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
