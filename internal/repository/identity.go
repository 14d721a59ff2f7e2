package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

type IdentityRepository struct {
	pool PgxPool
}

func NewIdentityRepository(pool PgxPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Upsert inserts identity or replaces the record with the same name,
// keeping its original created_at.
func (r *IdentityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (name, contact, embedding, image_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET contact = EXCLUDED.contact,
			embedding = EXCLUDED.embedding,
			image_ref = EXCLUDED.image_ref,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		identity.Name,
		identity.Contact,
		toVector(identity.Embedding),
		identity.ImageRef,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	return nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]domain.Identity, error) {
	query := `
		SELECT name, contact, embedding, image_ref, created_at, updated_at
		FROM identities
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return identities, nil
}

func (r *IdentityRepository) Get(ctx context.Context, name string) (*domain.Identity, error) {
	query := `
		SELECT name, contact, embedding, image_ref, created_at, updated_at
		FROM identities
		WHERE name = $1
	`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	return ident, nil
}

func (r *IdentityRepository) Delete(ctx context.Context, name string) error {
	query := `
		DELETE FROM identities
		WHERE name = $1
	`

	result, err := r.pool.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}

	return nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var ident domain.Identity
	var embedding *pgvector.Vector

	err := row.Scan(
		&ident.Name,
		&ident.Contact,
		&embedding,
		&ident.ImageRef,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ident.Embedding = fromVector(embedding)
	return &ident, nil
}
