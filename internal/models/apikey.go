package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyType values accepted for an API key. "prod" is stored but carries no
// differentiated behavior yet.
const (
	KeyTypeDev  = "dev"
	KeyTypeProd = "prod"
)

type APIKey struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	Name         string     `json:"name" db:"name"`
	Key          string     `json:"key" db:"key"`
	KeyType      string     `json:"key_type" db:"key_type"`
	MonthlyLimit *int64     `json:"monthly_limit" db:"monthly_limit"`
	UsageCount   int64      `json:"usage_count" db:"usage_count"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func ValidKeyType(t string) bool {
	return t == KeyTypeDev || t == KeyTypeProd
}
