package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/models"
)

// handlerMemStore is an in-memory apikeys.Store backing the handler tests.
type handlerMemStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey
}

func newHandlerMemStore() *handlerMemStore {
	return &handlerMemStore{keys: make(map[uuid.UUID]*models.APIKey)}
}

func (m *handlerMemStore) Insert(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.Key == key.Key {
			return apikeys.ErrDuplicateKey
		}
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *handlerMemStore) GetByID(_ context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return nil, apikeys.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *handlerMemStore) GetBySecret(_ context.Context, secret string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.Key == secret {
			cp := *k
			return &cp, nil
		}
	}
	return nil, apikeys.ErrNotFound
}

func (m *handlerMemStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := []models.APIKey{}
	for _, k := range m.keys {
		if k.UserID == ownerID {
			keys = append(keys, *k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (m *handlerMemStore) Update(_ context.Context, id, ownerID uuid.UUID, upd apikeys.KeyUpdate) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return nil, apikeys.ErrNotFound
	}
	if upd.Secret != nil {
		for _, other := range m.keys {
			if other.ID != id && other.Key == *upd.Secret {
				return nil, apikeys.ErrDuplicateKey
			}
		}
		k.Key = *upd.Secret
	}
	if upd.Name != nil {
		k.Name = *upd.Name
	}
	if upd.KeyType != nil {
		k.KeyType = *upd.KeyType
	}
	if upd.LimitSet {
		k.MonthlyLimit = upd.MonthlyLimit
	}
	if upd.IsActive != nil {
		k.IsActive = *upd.IsActive
	}
	if upd.TouchLastUsed {
		now := time.Now().UTC()
		k.LastUsedAt = &now
	}
	k.UpdatedAt = time.Now().UTC()
	cp := *k
	return &cp, nil
}

func (m *handlerMemStore) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return apikeys.ErrNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *handlerMemStore) IncrementUsage(_ context.Context, id uuid.UUID) (*apikeys.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok {
		return nil, apikeys.ErrNotFound
	}
	k.UsageCount++
	now := time.Now().UTC()
	k.LastUsedAt = &now
	k.UpdatedAt = now
	return &apikeys.Usage{
		KeyID:        k.ID,
		UsageCount:   k.UsageCount,
		MonthlyLimit: k.MonthlyLimit,
		IsActive:     k.IsActive,
	}, nil
}
