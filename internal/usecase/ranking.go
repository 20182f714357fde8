package usecase

import (
	"cmp"
	"slices"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
)

// rankByCount сортирует по убыванию счётчика, при равенстве по возрастанию id,
// и оставляет не более n элементов.
func rankByCount(counts []domain.ItemCount, n int) []domain.ItemCount {
	if n <= 0 {
		return nil
	}

	ranked := slices.Clone(counts)
	slices.SortFunc(ranked, func(a, b domain.ItemCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}
