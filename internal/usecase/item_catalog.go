package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
)

const cacheFillTimeout = 500 * time.Millisecond

// itemCatalog отдаёт метаданные вещей: сначала из кэша, затем из БД
// с фоновым заполнением кэша.
type itemCatalog struct {
	catalogRepo CatalogRepository
	cacheRepo   CacheRepository
	logger      logger.Logger
}

func newItemCatalog(catalogRepo CatalogRepository, cacheRepo CacheRepository, logger logger.Logger) *itemCatalog {
	return &itemCatalog{
		catalogRepo: catalogRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
	}
}

// lookup возвращает найденные вещи. Отсутствующие в каталоге id в результат не попадают.
func (c *itemCatalog) lookup(ctx context.Context, ids []int64) (map[int64]ItemInfo, error) {
	const op = "itemCatalog.lookup"

	result := make(map[int64]ItemInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	// Поиск в кэше; ошибка кэша не фатальна
	nonCacheable := ids
	if c.cacheRepo != nil {
		cached, err := c.cacheRepo.GetItems(ctx, ids)
		if err != nil {
			c.logger.Warnf("Item cache lookup failed: %v", e.Wrap(op, err))
		} else {
			nonCacheable = make([]int64, 0, len(ids))
			for _, id := range ids {
				if item, ok := cached[id]; ok {
					result[id] = item
				} else {
					nonCacheable = append(nonCacheable, id)
				}
			}
		}
	}

	if len(nonCacheable) == 0 {
		return result, nil
	}

	// Получение вещей из БД
	items, err := c.catalogRepo.GetItems(ctx, nonCacheable)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	fromDB := make([]ItemInfo, 0, len(items))
	for i := range items {
		info := NewItemInfo(&items[i])
		result[info.ID] = info
		fromDB = append(fromDB, info)
	}

	// Фоновое добавление вещей в кэш
	if c.cacheRepo != nil && len(fromDB) > 0 {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), cacheFillTimeout)
			defer cancel()

			if err := c.cacheRepo.SetItems(bgCtx, fromDB); err != nil {
				c.logger.Warnf("Failed to cache items in background: %v", e.Wrap(op, err))
			}
		}()
	}

	return result, nil
}
