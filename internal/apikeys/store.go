package apikeys

import (
	"context"

	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/models"
)

// Usage is the slice of a key record needed for quota enforcement.
type Usage struct {
	KeyID        uuid.UUID `json:"key_id"`
	UsageCount   int64     `json:"usage_count"`
	MonthlyLimit *int64    `json:"monthly_limit"`
	IsActive     bool      `json:"is_active"`
}

// KeyUpdate is a partial update of a key record. Nil pointer fields are
// left untouched. LimitSet distinguishes "set monthly_limit to NULL" from
// "don't touch monthly_limit".
type KeyUpdate struct {
	Name          *string
	KeyType       *string
	MonthlyLimit  *int64
	LimitSet      bool
	IsActive      *bool
	Secret        *string
	TouchLastUsed bool
}

func (u KeyUpdate) Empty() bool {
	return u.Name == nil && u.KeyType == nil && !u.LimitSet &&
		u.IsActive == nil && u.Secret == nil && !u.TouchLastUsed
}

// Store is the durable mapping from key ID to key record. All mutating and
// point-lookup operations except GetBySecret and IncrementUsage are scoped
// by (id, ownerID); a row owned by someone else behaves as not found.
//
// IncrementUsage must be a single atomic in-place increment, never a
// read-modify-write across two round trips. Concurrent requests against the
// same key would otherwise lose updates.
type Store interface {
	Insert(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error)
	GetBySecret(ctx context.Context, secret string) (*models.APIKey, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, upd KeyUpdate) (*models.APIKey, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	IncrementUsage(ctx context.Context, id uuid.UUID) (*Usage, error)
}
