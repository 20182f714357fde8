package artifact

import (
	"fmt"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

// CatalogResolver сопоставляет первичные ключи каталога и позиции строк в артефактах.
// Строится только из IndexMapping, поэтому порядок строк не зависит от имён файлов.
type CatalogResolver struct {
	positions map[int64]int
	ids       []int64
	version   string
}

func NewCatalogResolver(m *IndexMapping) *CatalogResolver {
	r := &CatalogResolver{
		positions: make(map[int64]int, len(m.Items)),
		ids:       make([]int64, len(m.Items)),
		version:   m.Version,
	}

	for _, item := range m.Items {
		r.positions[item.ItemID] = item.Position
		r.ids[item.Position] = item.ItemID
	}

	return r
}

// Resolve возвращает позицию строки для item_id.
func (r *CatalogResolver) Resolve(itemID int64) (int, error) {
	pos, ok := r.positions[itemID]
	if !ok {
		return 0, fmt.Errorf("%w: id=%d", e.ErrUnknownItem, itemID)
	}

	return pos, nil
}

// Identify возвращает item_id для позиции строки.
func (r *CatalogResolver) Identify(position int) (int64, error) {
	if position < 0 || position >= len(r.ids) {
		return 0, fmt.Errorf("%w: position=%d", e.ErrUnknownItem, position)
	}

	return r.ids[position], nil
}

// Len — количество проиндексированных вещей.
func (r *CatalogResolver) Len() int {
	return len(r.ids)
}

// Version — версия набора артефактов, из которого построен резолвер.
func (r *CatalogResolver) Version() string {
	return r.version
}
