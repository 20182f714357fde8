package artifact

import (
	"container/heap"
	"sort"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
)

// better задаёт порядок выдачи: по убыванию score, при равенстве по возрастанию item_id.
func better(a, b domain.ScoredItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	return a.ItemID < b.ItemID
}

// worstFirst — min-heap, в вершине худший из отобранных кандидатов.
type worstFirst []domain.ScoredItem

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(domain.ScoredItem))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK отбирает k лучших кандидатов за O(N log k).
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstFirst, 0, k)}
}

func (t *topK) offer(item domain.ScoredItem) {
	if t.k <= 0 {
		return
	}

	if len(t.h) < t.k {
		heap.Push(&t.h, item)
		return
	}

	if better(item, t.h[0]) {
		t.h[0] = item
		heap.Fix(&t.h, 0)
	}
}

// result возвращает отобранных кандидатов в порядке выдачи.
func (t *topK) result() []domain.ScoredItem {
	out := make([]domain.ScoredItem, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
