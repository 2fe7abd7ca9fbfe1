package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `
		SELECT p.id, p.email, p.first_name, p.last_name, p.display_name, p.role,
		       p.faculty_id, f.name, p.avatar_url, p.bio, p.created_at, p.updated_at
		FROM profiles p
		LEFT JOIN faculties f ON f.id = p.faculty_id
		WHERE p.id = $1
	`

	var profile models.Profile
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FirstName,
		&profile.LastName,
		&profile.DisplayName,
		&profile.Role,
		&profile.FacultyID,
		&profile.FacultyName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) UpdateFaculty(ctx context.Context, userID string, facultyID int64) error {
	const query = `
		UPDATE profiles SET faculty_id = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, userID, facultyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
