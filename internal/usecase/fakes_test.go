package usecase

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

type fakeCatalog struct {
	items map[int64]domain.CatalogItem
}

func newFakeCatalog(ids ...int64) *fakeCatalog {
	c := &fakeCatalog{items: make(map[int64]domain.CatalogItem)}
	for _, id := range ids {
		c.items[id] = *domain.NewCatalogItem(id, domain.CategoryTop, "data/clothes/tops/cloth/item.jpg",
			domain.Caption{"upper cloth category": "shirt", "color": "white"})
	}

	return c
}

func (c *fakeCatalog) GetItems(_ context.Context, ids []int64) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out = append(out, it)
		}
	}

	return out, nil
}

func (c *fakeCatalog) ListItems(_ context.Context) ([]domain.CatalogItem, error) {
	out := make([]domain.CatalogItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b domain.CatalogItem) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}

// fakeInteractions реализует InteractionRepository поверх списка записей.
type fakeInteractions struct {
	mu      sync.Mutex
	records []domain.Interaction
	nextID  int64
	now     time.Time
	trimmed int
}

func newFakeInteractions(clicks map[int64][]int64) *fakeInteractions {
	f := &fakeInteractions{now: time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)}
	users := make([]int64, 0, len(clicks))
	for u := range clicks {
		users = append(users, u)
	}
	slices.Sort(users)

	for _, u := range users {
		for _, item := range clicks[u] {
			_, _ = f.Record(context.Background(), domain.NewInteraction(u, item))
		}
	}

	return f
}

func (f *fakeInteractions) Record(_ context.Context, in *domain.Interaction) (*domain.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = slices.DeleteFunc(f.records, func(r domain.Interaction) bool {
		return r.UserID == in.UserID && r.ItemID == in.ItemID
	})

	f.nextID++
	f.now = f.now.Add(time.Second)
	rec := domain.Interaction{ID: f.nextID, UserID: in.UserID, ItemID: in.ItemID, CreatedAt: f.now}
	f.records = append(f.records, rec)

	return &rec, nil
}

func (f *fakeInteractions) TrimHistory(_ context.Context, userID int64, keep int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.trimmed++
	var kept []domain.Interaction
	count := 0
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.UserID == userID {
			count++
			if count > keep {
				continue
			}
		}
		kept = append(kept, r)
	}
	slices.Reverse(kept)
	f.records = kept

	return nil
}

func (f *fakeInteractions) RecentHistory(_ context.Context, userID int64, limit int) ([]domain.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Interaction
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}

	return out, nil
}

func (f *fakeInteractions) UserItems(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []int64
	for _, r := range f.records {
		if r.UserID == userID && !slices.Contains(out, r.ItemID) {
			out = append(out, r.ItemID)
		}
	}

	return out, nil
}

func (f *fakeInteractions) ClickCounts(_ context.Context) ([]domain.ItemCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return countItems(f.records, func(domain.Interaction) bool { return true }), nil
}

func (f *fakeInteractions) UsersWhoClicked(_ context.Context, itemIDs []int64, excludeUserID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []int64
	for _, r := range f.records {
		if r.UserID != excludeUserID && slices.Contains(itemIDs, r.ItemID) && !slices.Contains(out, r.UserID) {
			out = append(out, r.UserID)
		}
	}

	return out, nil
}

func (f *fakeInteractions) CoClickCounts(_ context.Context, userIDs []int64, excludeItemIDs []int64) ([]domain.ItemCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return countItems(f.records, func(r domain.Interaction) bool {
		return slices.Contains(userIDs, r.UserID) && !slices.Contains(excludeItemIDs, r.ItemID)
	}), nil
}

func countItems(records []domain.Interaction, keep func(domain.Interaction) bool) []domain.ItemCount {
	counts := make(map[int64]int64)
	var order []int64
	for _, r := range records {
		if !keep(r) {
			continue
		}
		if _, ok := counts[r.ItemID]; !ok {
			order = append(order, r.ItemID)
		}
		counts[r.ItemID]++
	}

	out := make([]domain.ItemCount, 0, len(order))
	for _, id := range order {
		out = append(out, domain.ItemCount{ItemID: id, Count: counts[id]})
	}

	return out
}

type fakeCache struct {
	mu    sync.Mutex
	items map[int64]ItemInfo
	err   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[int64]ItemInfo)}
}

func (c *fakeCache) GetItems(_ context.Context, ids []int64) (map[int64]ItemInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	out := make(map[int64]ItemInfo)
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out[id] = it
		}
	}

	return out, nil
}

func (c *fakeCache) SetItems(_ context.Context, items []ItemInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range items {
		c.items[it.ID] = it
	}

	return nil
}

func (c *fakeCache) DeleteItems(_ context.Context, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.items, id)
	}

	return nil
}

type fakeSimilarity map[int64][]domain.ScoredItem

func (s fakeSimilarity) TopKSimilar(itemID int64, k int) ([]domain.ScoredItem, error) {
	row, ok := s[itemID]
	if !ok {
		return nil, e.ErrUnknownItem
	}
	if len(row) > k {
		row = row[:k]
	}

	return row, nil
}

type fakeVectors struct {
	result []domain.ScoredItem
	dim    int
}

func (v *fakeVectors) Nearest(q []float32, n int) ([]domain.ScoredItem, error) {
	if len(q) != v.dim {
		return nil, e.ErrDimensionMismatch
	}
	if len(v.result) > n {
		return v.result[:n], nil
	}

	return v.result, nil
}

func (v *fakeVectors) ModelVersion() string { return "clip-test" }

type fakeEncoder struct {
	vector   []float32
	err      error
	startErr error
	calls    int
}

func (f *fakeEncoder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEncoder) Available() error { return f.startErr }

type prefixURLs struct{}

func (prefixURLs) URL(path string) string { return "http://img/" + path }

// inlineTransactor выполняет fn без настоящей транзакции.
type inlineTransactor struct {
	calls int
	err   error
}

func (t *inlineTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if t.err != nil {
		return t.err
	}

	return fn(ctx)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []InteractionEvent
	err    error
}

func (p *fakeProducer) WriteInteraction(_ context.Context, ev *InteractionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *ev)

	return nil
}

func (p *fakeProducer) WriteArtifactPublished(_ context.Context, _ *ArtifactPublishedEvent) error {
	return errors.New("not expected")
}
