package apikeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/models"
)

// memStore is an in-memory Store used across the package tests. Error
// fields, when set, force the corresponding operation to fail.
type memStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey

	insertErr      error
	rejectInserts  int // reject this many inserts with ErrDuplicateKey
	lookupErr      error
	updateErr      error
	incrementErr   error
	incrementCalls int
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[uuid.UUID]*models.APIKey)}
}

func (m *memStore) Insert(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	if m.rejectInserts > 0 {
		m.rejectInserts--
		return ErrDuplicateKey
	}
	for _, k := range m.keys {
		if k.Key == key.Key {
			return ErrDuplicateKey
		}
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *memStore) GetBySecret(_ context.Context, secret string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, k := range m.keys {
		if k.Key == secret {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
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

func (m *memStore) Update(_ context.Context, id, ownerID uuid.UUID, upd KeyUpdate) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}
	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return nil, ErrNotFound
	}
	if upd.Secret != nil {
		for _, other := range m.keys {
			if other.ID != id && other.Key == *upd.Secret {
				return nil, ErrDuplicateKey
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

func (m *memStore) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok || k.UserID != ownerID {
		return ErrNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *memStore) IncrementUsage(_ context.Context, id uuid.UUID) (*Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.incrementCalls++
	if m.incrementErr != nil {
		return nil, m.incrementErr
	}
	k, ok := m.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	k.UsageCount++
	now := time.Now().UTC()
	k.LastUsedAt = &now
	k.UpdatedAt = now
	return &Usage{
		KeyID:        k.ID,
		UsageCount:   k.UsageCount,
		MonthlyLimit: k.MonthlyLimit,
		IsActive:     k.IsActive,
	}, nil
}

func (m *memStore) usageCount(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		return k.UsageCount
	}
	return -1
}
