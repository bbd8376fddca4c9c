package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keygate/keygate/internal/models"
)

const keyColumns = "id, user_id, name, key, key_type, monthly_limit, usage_count, is_active, created_at, last_used_at, updated_at"

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, key *models.APIKey) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key, key_type, monthly_limit, usage_count, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		key.ID, key.UserID, key.Name, key.Key, key.KeyType,
		key.MonthlyLimit, key.UsageCount, key.IsActive, key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	return scanKey(row)
}

func (s *PostgresStore) GetBySecret(ctx context.Context, secret string) (*models.APIKey, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE key = $1`,
		secret,
	)
	return scanKey(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(
			&k.ID, &k.UserID, &k.Name, &k.Key, &k.KeyType, &k.MonthlyLimit,
			&k.UsageCount, &k.IsActive, &k.CreatedAt, &k.LastUsedAt, &k.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id, ownerID uuid.UUID, upd KeyUpdate) (*models.APIKey, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id, ownerID}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.KeyType != nil {
		add("key_type", *upd.KeyType)
	}
	if upd.LimitSet {
		add("monthly_limit", upd.MonthlyLimit)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.Secret != nil {
		add("key", *upd.Secret)
	}
	if upd.TouchLastUsed {
		sets = append(sets, "last_used_at = now()")
	}

	row := s.db.QueryRow(ctx,
		`UPDATE api_keys SET `+strings.Join(sets, ", ")+
			` WHERE id = $1 AND user_id = $2 RETURNING `+keyColumns,
		args...,
	)
	key, err := scanKey(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicateKey
	}
	return key, err
}

func (s *PostgresStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage records one unit of consumption as a single conditional
// update. The increment and the last_used_at stamp happen in one statement
// so concurrent requests against the same key cannot under-count.
func (s *PostgresStore) IncrementUsage(ctx context.Context, id uuid.UUID) (*Usage, error) {
	var u Usage
	err := s.db.QueryRow(ctx,
		`UPDATE api_keys
		 SET usage_count = usage_count + 1, last_used_at = now(), updated_at = now()
		 WHERE id = $1
		 RETURNING id, usage_count, monthly_limit, is_active`,
		id,
	).Scan(&u.KeyID, &u.UsageCount, &u.MonthlyLimit, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	return &u, nil
}

func scanKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.Key, &k.KeyType, &k.MonthlyLimit,
		&k.UsageCount, &k.IsActive, &k.CreatedAt, &k.LastUsedAt, &k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
