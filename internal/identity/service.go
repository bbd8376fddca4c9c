package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keygate/keygate/internal/models"
)

// Service resolves session identities to user rows, provisioning the row the
// first time an email is seen. Sign-in itself happens at the identity
// provider; this is only the local mirror of it.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) EnsureUser(ctx context.Context, email, fullName, avatarURL string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (email, full_name, avatar_url)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		 SET full_name = EXCLUDED.full_name, avatar_url = EXCLUDED.avatar_url
		 RETURNING id, email, full_name, avatar_url, created_at`,
		email, fullName, avatarURL,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", email, err)
	}
	return &u, nil
}
