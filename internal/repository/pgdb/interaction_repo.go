package pgdb

import (
	"context"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// InteractionRepo — история просмотров (таблица history).
type InteractionRepo struct {
	pool *pgxpool.Pool
	conv converter.InteractionConverter
}

func NewInteractionRepo(pool *pgxpool.Pool, conv converter.InteractionConverter) *InteractionRepo {
	return &InteractionRepo{
		pool: pool,
		conv: conv,
	}
}

// Record удаляет прежнюю запись той же пары (user, item) и вставляет новую.
// Выполняется в транзакции из контекста.
func (r *InteractionRepo) Record(ctx context.Context, interaction *domain.Interaction) (*domain.Interaction, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM history WHERE user_id = $1 AND clothing_id = $2`,
		interaction.UserID, interaction.ItemID,
	); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.InteractionModel
	err = tx.QueryRow(ctx, `
		INSERT INTO history (user_id, clothing_id)
		VALUES ($1, $2)
		RETURNING id, user_id, clothing_id, created_at
	`, interaction.UserID, interaction.ItemID).
		Scan(&model.ID, &model.UserID, &model.ClothingID, &model.CreatedAt)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// TrimHistory оставляет keep последних записей пользователя. Выполняется в транзакции из контекста.
func (r *InteractionRepo) TrimHistory(ctx context.Context, userID int64, keep int) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		DELETE FROM history
		WHERE user_id = $1
		  AND id NOT IN (
			SELECT id FROM history
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		  )
	`
	if _, err := tx.Exec(ctx, query, userID, keep); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// RecentHistory возвращает последние записи пользователя, новые первыми.
func (r *InteractionRepo) RecentHistory(ctx context.Context, userID int64, limit int) ([]domain.Interaction, error) {
	query := `
		SELECT id, user_id, clothing_id, created_at
		FROM history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[converter.InteractionModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToArrEntity(models), nil
}

// UserItems — вещи, которые смотрел пользователь.
func (r *InteractionRepo) UserItems(ctx context.Context, userID int64) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT DISTINCT clothing_id FROM history WHERE user_id = $1`, userID)
}

// ClickCounts — число просмотров каждой вещи.
func (r *InteractionRepo) ClickCounts(ctx context.Context) ([]domain.ItemCount, error) {
	return r.queryCounts(ctx, `SELECT clothing_id, COUNT(*) FROM history GROUP BY clothing_id`)
}

// UsersWhoClicked — другие пользователи, смотревшие хотя бы одну из вещей.
func (r *InteractionRepo) UsersWhoClicked(ctx context.Context, itemIDs []int64, excludeUserID int64) ([]int64, error) {
	return r.queryIDs(ctx, `
		SELECT DISTINCT user_id FROM history
		WHERE clothing_id = ANY($1) AND user_id <> $2
	`, itemIDs, excludeUserID)
}

// CoClickCounts — сколько раз пользователи userIDs смотрели вещи, кроме excludeItemIDs.
func (r *InteractionRepo) CoClickCounts(ctx context.Context, userIDs []int64, excludeItemIDs []int64) ([]domain.ItemCount, error) {
	return r.queryCounts(ctx, `
		SELECT clothing_id, COUNT(*) FROM history
		WHERE user_id = ANY($1) AND NOT (clothing_id = ANY($2))
		GROUP BY clothing_id
	`, userIDs, excludeItemIDs)
}

func (r *InteractionRepo) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func (r *InteractionRepo) queryCounts(ctx context.Context, query string, args ...any) ([]domain.ItemCount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ItemCount, error) {
		var c domain.ItemCount
		err := row.Scan(&c.ItemID, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return counts, nil
}
