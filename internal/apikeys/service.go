package apikeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/models"
)

// maxSecretAttempts bounds retries when a freshly generated secret collides
// with an existing one.
const maxSecretAttempts = 3

// KeyEvent describes one lifecycle transition for the audit trail.
type KeyEvent struct {
	KeyID   uuid.UUID         `json:"key_id"`
	OwnerID uuid.UUID         `json:"owner_id"`
	Action  string            `json:"action"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// EventRecorder receives lifecycle events. Recording is best-effort; a
// failure never fails the operation that produced the event.
type EventRecorder interface {
	RecordKeyEvent(ctx context.Context, evt KeyEvent) error
}

// Service owns the lifecycle of API key records and the validation/quota
// path used by quota-protected endpoints. All state lives in the Store; the
// service holds no mutable state of its own.
type Service struct {
	store  Store
	events EventRecorder
}

func NewService(store Store, events EventRecorder) *Service {
	return &Service{store: store, events: events}
}

type CreateRequest struct {
	Name         string
	KeyType      string
	MonthlyLimit *int64
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateRequest) (*models.APIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	keyType := req.KeyType
	if keyType == "" {
		keyType = models.KeyTypeDev
	}
	if !models.ValidKeyType(keyType) {
		return nil, fmt.Errorf("%w: keyType must be %q or %q", ErrInvalidInput, models.KeyTypeDev, models.KeyTypeProd)
	}
	if req.MonthlyLimit != nil && *req.MonthlyLimit < 0 {
		return nil, fmt.Errorf("%w: monthlyLimit must not be negative", ErrInvalidInput)
	}

	for attempt := 0; attempt < maxSecretAttempts; attempt++ {
		secret, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:           uuid.New(),
			UserID:       ownerID,
			Name:         name,
			Key:          secret,
			KeyType:      keyType,
			MonthlyLimit: req.MonthlyLimit,
			UsageCount:   0,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.store.Insert(ctx, key)
		if errors.Is(err, ErrDuplicateKey) {
			continue
		}
		if err != nil {
			slog.Error("failed to insert api key", "error", err)
			return nil, ErrBackendUnavailable
		}

		s.record(ctx, key.ID, ownerID, "created", map[string]string{"name": name, "key_type": keyType})
		return key, nil
	}

	return nil, fmt.Errorf("%w: could not allocate a unique secret", ErrBackendUnavailable)
}

func (s *Service) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	key, err := s.store.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, s.storeErr("get api key", err)
	}
	return key, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
	keys, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("failed to list api keys", "error", err)
		return nil, ErrBackendUnavailable
	}
	return keys, nil
}

// UpdateRequest is the partial mutation accepted by Update. LimitSet marks
// an explicit monthlyLimit in the request, including an explicit null.
type UpdateRequest struct {
	Name         *string
	KeyType      *string
	MonthlyLimit *int64
	LimitSet     bool
	IsActive     *bool
	Rotate       bool
}

func (r UpdateRequest) empty() bool {
	return r.Name == nil && r.KeyType == nil && !r.LimitSet && r.IsActive == nil && !r.Rotate
}

// Update applies a partial mutation scoped to (id, ownerID). Rotate replaces
// the secret wholesale, forces the key active, and stamps last_used_at; it is
// the only transition out of the revoked state that also changes the secret.
func (s *Service) Update(ctx context.Context, id, ownerID uuid.UUID, req UpdateRequest) (*models.APIKey, error) {
	if req.empty() {
		return nil, ErrNoOp
	}

	upd := KeyUpdate{
		KeyType:      req.KeyType,
		MonthlyLimit: req.MonthlyLimit,
		LimitSet:     req.LimitSet,
		IsActive:     req.IsActive,
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must be a non-empty string", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if req.KeyType != nil && !models.ValidKeyType(*req.KeyType) {
		return nil, fmt.Errorf("%w: keyType must be %q or %q", ErrInvalidInput, models.KeyTypeDev, models.KeyTypeProd)
	}
	if req.LimitSet && req.MonthlyLimit != nil && *req.MonthlyLimit < 0 {
		return nil, fmt.Errorf("%w: monthlyLimit must not be negative", ErrInvalidInput)
	}

	attempts := 1
	if req.Rotate {
		attempts = maxSecretAttempts
		active := true
		upd.IsActive = &active
		upd.TouchLastUsed = true
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if req.Rotate {
			secret, err := generateSecret()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			upd.Secret = &secret
		}

		key, err := s.store.Update(ctx, id, ownerID, upd)
		if errors.Is(err, ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return nil, s.storeErr("update api key", err)
		}

		s.record(ctx, id, ownerID, updateAction(req), nil)
		return key, nil
	}

	return nil, fmt.Errorf("%w: could not allocate a unique secret", ErrBackendUnavailable)
}

func (s *Service) Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*models.APIKey, error) {
	return s.Update(ctx, id, ownerID, UpdateRequest{Name: &name})
}

func (s *Service) Rotate(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	return s.Update(ctx, id, ownerID, UpdateRequest{Rotate: true})
}

// SetActive toggles between active and revoked. Setting the current state
// again is a no-op success.
func (s *Service) SetActive(ctx context.Context, id, ownerID uuid.UUID, active bool) (*models.APIKey, error) {
	return s.Update(ctx, id, ownerID, UpdateRequest{IsActive: &active})
}

func (s *Service) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return s.storeErr("delete api key", err)
	}
	s.record(ctx, id, ownerID, "deleted", nil)
	return nil
}

// Validate resolves a bearer token to the accounting view of an existing,
// active key. It never mutates usage. A token that matches no record and a
// well-formed but wrong token are indistinguishable.
func (s *Service) Validate(ctx context.Context, token string) (*Usage, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredential
	}

	key, err := s.store.GetBySecret(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		slog.Error("failed to look up api key", "error", err)
		return nil, ErrBackendUnavailable
	}

	if !key.IsActive {
		return nil, ErrRevokedCredential
	}

	return &Usage{
		KeyID:        key.ID,
		UsageCount:   key.UsageCount,
		MonthlyLimit: key.MonthlyLimit,
		IsActive:     key.IsActive,
	}, nil
}

// Consume enforces the monthly quota and records one unit of consumption.
// The quota is checked before the write so an exhausted key costs nothing,
// and re-checked on the row returned by the atomic increment. When
// concurrent requests race past the limit the already-recorded increment is
// kept and reported as a quota rejection: the counter may overshoot by at
// most the degree of the race, which beats a second write or a transaction.
func (s *Service) Consume(ctx context.Context, u *Usage) (*Usage, error) {
	if u.MonthlyLimit != nil && u.UsageCount >= *u.MonthlyLimit {
		return nil, &QuotaError{Usage: u.UsageCount, Limit: *u.MonthlyLimit}
	}

	updated, err := s.store.IncrementUsage(ctx, u.KeyID)
	if errors.Is(err, ErrNotFound) {
		// Deleted between validation and consumption.
		return nil, ErrInvalidCredential
	}
	if err != nil {
		slog.Error("failed to increment api key usage", "error", err)
		return nil, ErrBackendUnavailable
	}

	if updated.MonthlyLimit != nil && updated.UsageCount > *updated.MonthlyLimit {
		return nil, &QuotaError{Usage: updated.UsageCount, Limit: *updated.MonthlyLimit}
	}

	return updated, nil
}

func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoOp) {
		return err
	}
	slog.Error("store operation failed", "op", op, "error", err)
	return ErrBackendUnavailable
}

func (s *Service) record(ctx context.Context, keyID, ownerID uuid.UUID, action string, detail map[string]string) {
	if s.events == nil {
		return
	}
	evt := KeyEvent{KeyID: keyID, OwnerID: ownerID, Action: action, Detail: detail}
	if err := s.events.RecordKeyEvent(ctx, evt); err != nil {
		slog.Warn("failed to record key event", "action", action, "key_id", keyID, "error", err)
	}
}

func updateAction(req UpdateRequest) string {
	switch {
	case req.Rotate:
		return "rotated"
	case req.IsActive != nil && *req.IsActive:
		return "activated"
	case req.IsActive != nil:
		return "revoked"
	case req.Name != nil && req.KeyType == nil && !req.LimitSet:
		return "renamed"
	default:
		return "updated"
	}
}
