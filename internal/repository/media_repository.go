package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type MediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(pool *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

func (r *MediaRepository) ListByPublication(ctx context.Context, publicationID string) ([]models.MediaFile, error) {
	const query = `
		SELECT id, publication_id, file_type, file_name, public_url, storage_path, size_bytes, mime_type, created_at
		FROM media_files
		WHERE publication_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, publicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedia(rows)
}

func (r *MediaRepository) Create(ctx context.Context, media models.MediaFile) error {
	const query = `
		INSERT INTO media_files (
			id, publication_id, file_type, file_name, public_url, storage_path, size_bytes, mime_type, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		media.ID,
		media.PublicationID,
		media.FileType,
		media.FileName,
		media.PublicURL,
		media.StoragePath,
		media.SizeBytes,
		media.MimeType,
	)
	return translate(err)
}

func (r *MediaRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM media_files WHERE id = ANY($1)`
	_, err := r.pool.Exec(ctx, query, ids)
	return err
}

func collectMedia(rows pgx.Rows) ([]models.MediaFile, error) {
	var files []models.MediaFile
	for rows.Next() {
		var m models.MediaFile
		if err := rows.Scan(
			&m.ID,
			&m.PublicationID,
			&m.FileType,
			&m.FileName,
			&m.PublicURL,
			&m.StoragePath,
			&m.SizeBytes,
			&m.MimeType,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, m)
	}
	return files, rows.Err()
}
