package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type PublicationRepository struct {
	pool *pgxpool.Pool
}

func NewPublicationRepository(pool *pgxpool.Pool) *PublicationRepository {
	return &PublicationRepository{pool: pool}
}

const publicationColumns = `
	p.id, p.title, p.description, p.author_name, p.author_id, p.faculty_id, p.content_type_id,
	p.external_url, p.location, p.read_time, p.status, p.likes_count, p.comments_count,
	p.views_count, p.bookmarks_count, p.created_at, p.updated_at,
	COALESCE(f.name, ''), COALESCE(ct.name, '')
`

// ListPublished returns published publications newest first with their media attached.
func (r *PublicationRepository) ListPublished(ctx context.Context) ([]models.Publication, error) {
	query := `
		SELECT ` + publicationColumns + `
		FROM publications p
		LEFT JOIN faculties f ON f.id = p.faculty_id
		LEFT JOIN content_types ct ON ct.id = p.content_type_id
		WHERE p.status = 'published'
		ORDER BY p.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var publications []models.Publication
	index := make(map[string]int)
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		index[pub.ID] = len(publications)
		publications = append(publications, pub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(publications) == 0 {
		return publications, nil
	}

	ids := make([]string, 0, len(publications))
	for _, pub := range publications {
		ids = append(ids, pub.ID)
	}

	media, err := r.mediaFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		if i, ok := index[m.PublicationID]; ok {
			publications[i].Media = append(publications[i].Media, m)
		}
	}
	return publications, nil
}

func (r *PublicationRepository) mediaFor(ctx context.Context, publicationIDs []string) ([]models.MediaFile, error) {
	const query = `
		SELECT id, publication_id, file_type, file_name, public_url, storage_path, size_bytes, mime_type, created_at
		FROM media_files
		WHERE publication_id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, publicationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedia(rows)
}

func (r *PublicationRepository) Create(ctx context.Context, pub models.Publication) error {
	const query = `
		INSERT INTO publications (
			id, title, description, author_name, author_id, faculty_id, content_type_id,
			external_url, location, read_time, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		pub.ID,
		pub.Title,
		pub.Description,
		pub.AuthorName,
		pub.AuthorID,
		pub.FacultyID,
		pub.ContentTypeID,
		pub.ExternalURL,
		pub.Location,
		pub.ReadTime,
		pub.Status,
	)
	return translate(err)
}

func (r *PublicationRepository) Update(ctx context.Context, id string, update models.PublicationUpdate) error {
	const query = `
		UPDATE publications SET
			title = $2,
			description = $3,
			author_name = $4,
			faculty_id = $5,
			content_type_id = $6,
			external_url = $7,
			location = $8,
			read_time = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		id,
		update.Title,
		update.Description,
		update.AuthorName,
		update.FacultyID,
		update.ContentTypeID,
		update.ExternalURL,
		update.Location,
		update.ReadTime,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPublicationNotFound
	}
	return nil
}

func (r *PublicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM publications WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPublicationNotFound
	}
	return nil
}

func scanPublication(row pgx.Row) (models.Publication, error) {
	var pub models.Publication
	err := row.Scan(
		&pub.ID,
		&pub.Title,
		&pub.Description,
		&pub.AuthorName,
		&pub.AuthorID,
		&pub.FacultyID,
		&pub.ContentTypeID,
		&pub.ExternalURL,
		&pub.Location,
		&pub.ReadTime,
		&pub.Status,
		&pub.LikesCount,
		&pub.CommentsCount,
		&pub.ViewsCount,
		&pub.BookmarkCount,
		&pub.CreatedAt,
		&pub.UpdatedAt,
		&pub.FacultyName,
		&pub.ContentTypeName,
	)
	return pub, err
}
