package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ActiveFaculties(ctx context.Context) ([]models.Faculty, error) {
	const query = `
		SELECT id, name, code, color, active
		FROM faculties
		WHERE active = TRUE
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faculties []models.Faculty
	for rows.Next() {
		var f models.Faculty
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.Color, &f.Active); err != nil {
			return nil, err
		}
		faculties = append(faculties, f)
	}
	return faculties, rows.Err()
}

func (r *CatalogRepository) ActiveContentTypes(ctx context.Context) ([]models.ContentType, error) {
	const query = `
		SELECT id, name, icon, color, active
		FROM content_types
		WHERE active = TRUE
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.ContentType
	for rows.Next() {
		var ct models.ContentType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Icon, &ct.Color, &ct.Active); err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, rows.Err()
}
