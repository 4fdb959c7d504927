package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mr-houngbo/Colit/internal/domain/profile"
)

// ProfileRepository implements profile.Repository.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, email, avatar_url FROM profiles WHERE id=$1`, id)
	return scanProfile(row)
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, avatar_url FROM profiles
		WHERE lower(email)=lower($1) LIMIT 1
	`, strings.TrimSpace(email))
	return scanProfile(row)
}

// Upsert stores the display data mirrored from the auth provider.
func (r *ProfileRepository) Upsert(ctx context.Context, p profile.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, name, email, avatar_url) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, avatar_url=EXCLUDED.avatar_url
	`, p.ID, p.Name, p.Email, p.AvatarURL)
	return err
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
