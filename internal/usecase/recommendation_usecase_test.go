package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	itemA int64 = 1
	itemB int64 = 2
	itemC int64 = 3
	itemX int64 = 10
	itemY int64 = 11
)

func newTestEngine(art Artifacts, enc QueryEncoder, clicks map[int64][]int64, catalogIDs ...int64) *RecommendationUseCase {
	return NewRecommendationUC(
		art,
		enc,
		newFakeCatalog(catalogIDs...),
		newFakeCache(),
		newFakeInteractions(clicks),
		prefixURLs{},
		logger.NewNop(),
	)
}

func readyArtifacts() Artifacts {
	return Artifacts{
		Version: "v-test",
		Vectors: &fakeVectors{dim: 2, result: []domain.ScoredItem{
			{ItemID: itemB, Score: 0.9},
			{ItemID: itemA, Score: 0.5},
			{ItemID: itemC, Score: 0.1},
		}},
		Similarity: fakeSimilarity{
			itemA: {{ItemID: itemC, Score: 0.8}, {ItemID: itemB, Score: 0.7}},
		},
	}
}

func ids(items []RecommendedItem) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}

	return out
}

func TestRankByCount(t *testing.T) {
	counts := []domain.ItemCount{
		{ItemID: itemC, Count: 3},
		{ItemID: itemA, Count: 5},
		{ItemID: itemB, Count: 3},
	}

	got := rankByCount(counts, 2)
	assert.Equal(t, []domain.ItemCount{{ItemID: itemA, Count: 5}, {ItemID: itemB, Count: 3}}, got)

	assert.Len(t, rankByCount(counts, 10), 3)
	assert.Empty(t, rankByCount(counts, 0))
	assert.Equal(t, itemC, counts[0].ItemID, "input must not be reordered")
}

func TestPopular(t *testing.T) {
	clicks := map[int64][]int64{
		100: {itemA, itemB, itemC},
		101: {itemA, itemB, itemC},
		102: {itemA, itemB, itemC},
		103: {itemA},
		104: {itemA},
	}
	uc := newTestEngine(Artifacts{}, nil, clicks, itemA, itemB, itemC)

	t.Run("counts descending, ties by ascending id", func(t *testing.T) {
		res, err := uc.Popular(context.Background(), &PopularReq{TopN: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemA, itemB}, ids(res.Items))
		assert.Equal(t, "http://img/data/clothes/tops/cloth/item.jpg", res.Items[0].URL)
		assert.Equal(t, "top", res.Items[0].Category)
		assert.Nil(t, res.Items[0].Score)
	})

	t.Run("available without artifacts", func(t *testing.T) {
		assert.True(t, uc.Health().Modes[ModePopular].Available)
	})

	t.Run("non-positive top_n", func(t *testing.T) {
		_, err := uc.Popular(context.Background(), &PopularReq{TopN: 0})
		assert.ErrorIs(t, err, e.ErrInvalidTopN)
	})
}

func TestCollaborativeForUser(t *testing.T) {
	const u1, u2, u3 int64 = 1, 2, 3

	t.Run("recommends co-clicked items, never own ones", func(t *testing.T) {
		uc := newTestEngine(Artifacts{}, nil, map[int64][]int64{
			u1: {itemX},
			u2: {itemX, itemY},
		}, itemX, itemY)

		res, err := uc.CollaborativeForUser(context.Background(), &UserRecommendationsReq{UserID: u1, TopN: 5})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemY}, ids(res.Items))
	})

	t.Run("ranked by co-occurrence count", func(t *testing.T) {
		uc := newTestEngine(Artifacts{}, nil, map[int64][]int64{
			u1: {itemX},
			u2: {itemX, itemB, itemA},
			u3: {itemX, itemB},
		}, itemX, itemA, itemB)

		res, err := uc.CollaborativeForUser(context.Background(), &UserRecommendationsReq{UserID: u1, TopN: 5})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemB, itemA}, ids(res.Items))
	})

	t.Run("no history", func(t *testing.T) {
		uc := newTestEngine(Artifacts{}, nil, map[int64][]int64{u2: {itemX}}, itemX)

		_, err := uc.CollaborativeForUser(context.Background(), &UserRecommendationsReq{UserID: u1, TopN: 5})
		assert.ErrorIs(t, err, e.ErrNoHistory)
	})

	t.Run("no similar users gives empty result", func(t *testing.T) {
		uc := newTestEngine(Artifacts{}, nil, map[int64][]int64{u1: {itemX}, u2: {itemY}}, itemX, itemY)

		res, err := uc.CollaborativeForUser(context.Background(), &UserRecommendationsReq{UserID: u1, TopN: 5})
		require.NoError(t, err)
		assert.Empty(t, res.Items)
	})
}

func TestSimilarItems(t *testing.T) {
	t.Run("ordered and bounded by k", func(t *testing.T) {
		uc := newTestEngine(readyArtifacts(), &fakeEncoder{}, nil, itemA, itemB, itemC)

		res, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 1})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, itemC, res.Items[0].ID)
		assert.InDelta(t, 0.8, *res.Items[0].Score, 1e-6)
	})

	t.Run("unknown item", func(t *testing.T) {
		uc := newTestEngine(readyArtifacts(), &fakeEncoder{}, nil, itemA)

		_, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: -1, K: 3})
		assert.ErrorIs(t, err, e.ErrItemNotFound)
	})

	t.Run("items missing from catalog are skipped", func(t *testing.T) {
		uc := newTestEngine(readyArtifacts(), &fakeEncoder{}, nil, itemA, itemB)

		res, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemB}, ids(res.Items))
	})

	t.Run("query item absent from catalog", func(t *testing.T) {
		uc := newTestEngine(readyArtifacts(), &fakeEncoder{}, nil, itemB, itemC)

		_, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 3})
		assert.ErrorIs(t, err, e.ErrItemNotFound)
		assert.Equal(t, "not_found", Outcome(err))
	})

	t.Run("neighbours missing from catalog are replaced by the next ones", func(t *testing.T) {
		art := readyArtifacts()
		art.Similarity = fakeSimilarity{
			itemA: {
				{ItemID: itemC, Score: 0.8},
				{ItemID: itemB, Score: 0.7},
				{ItemID: itemX, Score: 0.6},
				{ItemID: itemY, Score: 0.5},
			},
		}
		uc := newTestEngine(art, &fakeEncoder{}, nil, itemA, itemB, itemX, itemY)

		res, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemB, itemX}, ids(res.Items))
	})

	t.Run("disabled by corrupt artifact", func(t *testing.T) {
		art := readyArtifacts()
		art.Similarity = nil
		art.SimilarityErr = e.ErrArtifactCorrupt
		uc := newTestEngine(art, &fakeEncoder{}, nil, itemA)

		_, err := uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 3})
		assert.ErrorIs(t, err, e.ErrSimilarUnavailable)
		assert.ErrorIs(t, err, e.ErrArtifactCorrupt)

		h := uc.Health()
		assert.False(t, h.Modes[ModeSimilar].Available)
		assert.True(t, h.Modes[ModeSearch].Available)
	})
}

func TestTextSearch(t *testing.T) {
	t.Run("ordered by score with metadata", func(t *testing.T) {
		enc := &fakeEncoder{vector: []float32{1, 0}}
		uc := newTestEngine(readyArtifacts(), enc, nil, itemA, itemB, itemC)

		res, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "white shirt", TopN: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemB, itemA}, ids(res.Items))
		assert.Equal(t, "White Shirt", res.Items[0].Title)
		assert.Equal(t, 1, enc.calls)
	})

	t.Run("fills top_n when best matches are missing from catalog", func(t *testing.T) {
		enc := &fakeEncoder{vector: []float32{1, 0}}
		uc := newTestEngine(readyArtifacts(), enc, nil, itemA, itemC)

		res, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "white shirt", TopN: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{itemA, itemC}, ids(res.Items))
		assert.Equal(t, 1, enc.calls, "over-fetch reuses the query vector")
	})

	t.Run("blank query", func(t *testing.T) {
		for _, q := range []string{"", "   ", "\t\n"} {
			uc := newTestEngine(Artifacts{}, nil, nil)
			_, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: q, TopN: 20})
			assert.ErrorIs(t, err, e.ErrEmptyQuery, "query %q", q)
		}
	})

	t.Run("model unavailable at startup", func(t *testing.T) {
		enc := &fakeEncoder{startErr: e.ErrModelUnavailable}
		uc := newTestEngine(readyArtifacts(), enc, nil, itemA)

		_, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "dress", TopN: 5})
		assert.ErrorIs(t, err, e.ErrSearchUnavailable)
		assert.ErrorIs(t, err, e.ErrModelUnavailable)
		assert.Equal(t, 0, enc.calls)
	})

	t.Run("model timeout degrades only search", func(t *testing.T) {
		enc := &fakeEncoder{err: e.ErrModelTimeout}
		uc := newTestEngine(readyArtifacts(), enc, nil, itemA, itemB, itemC)

		_, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "dress", TopN: 5})
		assert.ErrorIs(t, err, e.ErrModelTimeout)
		assert.Equal(t, "timeout", Outcome(err))

		_, err = uc.SimilarItems(context.Background(), &SimilarItemsReq{ItemID: itemA, K: 3})
		assert.NoError(t, err)
	})

	t.Run("missing embeddings", func(t *testing.T) {
		art := Artifacts{VectorsErr: e.ErrArtifactMissing, SimilarityErr: e.ErrArtifactMissing}
		uc := newTestEngine(art, &fakeEncoder{vector: []float32{1, 0}}, nil)

		_, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "dress", TopN: 5})
		assert.ErrorIs(t, err, e.ErrSearchUnavailable)
		assert.ErrorIs(t, err, e.ErrArtifactMissing)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		uc := newTestEngine(readyArtifacts(), &fakeEncoder{vector: []float32{1, 0, 0}}, nil, itemA)

		_, err := uc.TextSearch(context.Background(), &TextSearchReq{Query: "dress", TopN: 5})
		assert.ErrorIs(t, err, e.ErrDimensionMismatch)
	})
}

func TestItemCatalog_CacheFailureFallsBackToDB(t *testing.T) {
	cache := newFakeCache()
	cache.err = errors.New("redis down")
	c := newItemCatalog(newFakeCatalog(itemA, itemB), cache, logger.NewNop())

	got, err := c.lookup(context.Background(), []int64{itemA, itemB, itemC})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, itemA)
	assert.NotContains(t, got, itemC)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(e.Wrap("op", e.ErrNoHistory)))
	assert.Equal(t, "bad_request", Outcome(e.ErrEmptyQuery))
	assert.Equal(t, "unavailable", Outcome(e.ErrSimilarUnavailable))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
