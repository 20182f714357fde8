package pgdb

import (
	"context"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CatalogRepo реализует репозиторий каталога одежды поверх PostgreSQL.
type CatalogRepo struct {
	pool *pgxpool.Pool
	conv converter.CatalogConverter
}

func NewCatalogRepo(pool *pgxpool.Pool, conv converter.CatalogConverter) *CatalogRepo {
	return &CatalogRepo{
		pool: pool,
		conv: conv,
	}
}

const catalogColumns = `cid, category::text, caption, closet_users, cloth_path, created_at`

// GetItems возвращает вещи по идентификаторам. Отсутствующие id пропускаются.
func (c *CatalogRepo) GetItems(ctx context.Context, ids []int64) ([]domain.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM clothing WHERE cid = ANY($1)`

	rows, err := c.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.collect(rows)
}

// ListItems возвращает весь каталог по возрастанию id.
func (c *CatalogRepo) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM clothing ORDER BY cid`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.collect(rows)
}

func (c *CatalogRepo) collect(rows pgx.Rows) ([]domain.CatalogItem, error) {
	defer rows.Close()

	result := make([]domain.CatalogItem, 0)
	for rows.Next() {
		var model converter.CatalogItemModel
		if err := rows.Scan(
			&model.CID, &model.Category, &model.Caption,
			&model.ClosetUsers, &model.ClothPath, &model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		item, err := c.conv.ToEntity(&model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
