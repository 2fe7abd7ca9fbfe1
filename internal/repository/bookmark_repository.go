package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BookmarkRepository struct {
	pool *pgxpool.Pool
}

func NewBookmarkRepository(pool *pgxpool.Pool) *BookmarkRepository {
	return &BookmarkRepository{pool: pool}
}

func (r *BookmarkRepository) ListPublicationIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT publication_id FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add inserts the bookmark and bumps the publication counter. Re-adding is a no-op.
func (r *BookmarkRepository) Add(ctx context.Context, userID, publicationID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
		INSERT INTO bookmarks (user_id, publication_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
	`, userID, publicationID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE publications SET bookmarks_count = bookmarks_count + 1 WHERE id = $1
		`, publicationID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *BookmarkRepository) Remove(ctx context.Context, userID, publicationID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
		DELETE FROM bookmarks WHERE user_id = $1 AND publication_id = $2
	`, userID, publicationID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE publications SET bookmarks_count = GREATEST(bookmarks_count - 1, 0) WHERE id = $1
		`, publicationID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
