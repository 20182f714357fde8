package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/artifact"
	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	items []domain.CatalogItem
}

func (f *fakeCatalog) GetItems(context.Context, []int64) ([]domain.CatalogItem, error) {
	return nil, nil
}

func (f *fakeCatalog) ListItems(context.Context) ([]domain.CatalogItem, error) {
	return f.items, nil
}

func catalogOf(ids ...int64) *fakeCatalog {
	c := &fakeCatalog{}
	for _, id := range ids {
		path := fmt.Sprintf("data/clothes/tops/cloth/%06d_top.jpg", id)
		c.items = append(c.items, *domain.NewCatalogItem(id, domain.CategoryTop, path, nil))
	}
	return c
}

// fakeImages возвращает содержимое, кодирующее id; missing — пути без файла.
type fakeImages struct {
	missing map[string]bool
}

func (f *fakeImages) Read(_ context.Context, path string) ([]byte, error) {
	if f.missing[path] {
		return nil, errors.New("no such file")
	}
	return []byte(path), nil
}

// fakeModel строит вектор по id; bad — id, на которых пачка падает.
type fakeModel struct {
	mu    sync.Mutex
	bad   map[int64]bool
	dims  map[int64]int
	calls int
}

func (f *fakeModel) VectorizeRequest(_ context.Context, req *usecase.VectorizeReq) ([]usecase.VectorizeRes, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([]usecase.VectorizeRes, 0, len(req.Images))
	for _, img := range req.Images {
		if f.bad[img.ItemID] {
			return nil, fmt.Errorf("cannot decode image %d", img.ItemID)
		}
		dim := 3
		if d, ok := f.dims[img.ItemID]; ok {
			dim = d
		}
		v := make([]float32, dim)
		v[int(img.ItemID)%dim] = float32(img.ItemID)
		out = append(out, *usecase.NewVectorizeRes(v, "clip-test"))
	}
	return out, nil
}

func (f *fakeModel) EmbedText(context.Context, string) (*usecase.VectorizeRes, error) {
	return nil, e.ErrModelUnavailable
}

type fakePublisher struct {
	req *usecase.PublishArtifactsReq
	err error
}

func (f *fakePublisher) PublishArtifacts(_ context.Context, req *usecase.PublishArtifactsReq) (*usecase.PublishArtifactsRes, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.PublishArtifactsRes{Keys: []string{"artifacts/" + req.Version + "/index_mapping.json"}}, nil
}

func (f *fakePublisher) FetchLatest(context.Context, string) (string, error) {
	return "", e.ErrArtifactMissing
}

type fakeMirror struct {
	dim    int
	points []domain.Embedding
}

func (f *fakeMirror) EnsureCollection(_ context.Context, dim int) error {
	f.dim = dim
	return nil
}

func (f *fakeMirror) Upsert(_ context.Context, points []domain.Embedding) error {
	f.points = append(f.points, points...)
	return nil
}

type fakeEvents struct {
	published []usecase.ArtifactPublishedEvent
	err       error
}

func (f *fakeEvents) WriteInteraction(context.Context, *usecase.InteractionEvent) error { return nil }

func (f *fakeEvents) WriteArtifactPublished(_ context.Context, ev *usecase.ArtifactPublishedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, *ev)
	return nil
}

func TestRunBuildsConsistentArtifacts(t *testing.T) {
	dir := t.TempDir()
	catalog := catalogOf(5, 1, 3)
	p := NewPipeline(catalog, &fakeImages{}, &fakeModel{}, Config{OutDir: dir, BatchSize: 2, Version: "v-test"}, logger.NewNop())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Embedded)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 3, report.Dimension)
	assert.Equal(t, "clip-test", report.ModelVersion)

	set := artifact.Load(artifact.NewLayout(dir))
	require.NoError(t, set.StoreErr)
	require.NoError(t, set.SimilarityErr)
	assert.Equal(t, "v-test", set.Store.Resolver().Version())

	// строки упорядочены по item_id
	for pos, id := range []int64{1, 3, 5} {
		got, err := set.Store.Resolver().Identify(pos)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	// векторы нормализованы
	v, err := set.Store.VectorFor(5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, artifact.Score(v, v), 1e-5)
	assert.InDelta(t, float32(1), v[5%3], 1e-6)
}

func TestRunSkipsBrokenImages(t *testing.T) {
	dir := t.TempDir()
	catalog := catalogOf(1, 2, 3, 4)
	images := &fakeImages{missing: map[string]bool{"data/clothes/tops/cloth/000002_top.jpg": true}}
	model := &fakeModel{bad: map[int64]bool{3: true}}
	p := NewPipeline(catalog, images, model, Config{OutDir: dir, BatchSize: 8}, logger.NewNop())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 2, report.Skipped)
	// одна пачка и повтор по одной для трёх загруженных фото
	assert.Equal(t, 4, model.calls)

	set := artifact.Load(artifact.NewLayout(dir))
	require.NoError(t, set.StoreErr)
	_, err = set.Store.VectorFor(3)
	assert.ErrorIs(t, err, e.ErrItemNotIndexed)
	_, err = set.Store.VectorFor(4)
	assert.NoError(t, err)
}

func TestRunSkipsDimensionMismatch(t *testing.T) {
	model := &fakeModel{dims: map[int64]int{2: 4}}
	p := NewPipeline(catalogOf(1, 2), &fakeImages{}, model, Config{OutDir: t.TempDir(), Dimension: 3}, logger.NewNop())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
}

func TestRunFailsWhenNothingEmbedded(t *testing.T) {
	model := &fakeModel{bad: map[int64]bool{1: true}}
	p := NewPipeline(catalogOf(1), &fakeImages{}, model, Config{OutDir: t.TempDir()}, logger.NewNop())

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, e.ErrEmptyVectors)
}

func TestRunPublishesMirrorsAndAnnounces(t *testing.T) {
	publisher := &fakePublisher{}
	mirror := &fakeMirror{}
	events := &fakeEvents{}
	dir := t.TempDir()

	p := NewPipeline(catalogOf(1, 2), &fakeImages{}, &fakeModel{}, Config{OutDir: dir, Version: "v9"}, logger.NewNop()).
		WithPublisher(publisher).
		WithMirror(mirror).
		WithEvents(events)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, publisher.req)
	assert.Equal(t, dir, publisher.req.Dir)
	assert.Equal(t, artifact.Files(), publisher.req.Files)
	assert.Equal(t, []string{"artifacts/v9/index_mapping.json"}, report.Keys)

	assert.True(t, report.Mirrored)
	assert.Equal(t, 3, mirror.dim)
	require.Len(t, mirror.points, 2)
	assert.Equal(t, domain.EmbeddingID(1), mirror.points[0].ID)
	assert.Equal(t, int64(1), mirror.points[0].Payload["item_id"])

	assert.True(t, report.Announced)
	require.Len(t, events.published, 1)
	assert.Equal(t, "v9", events.published[0].Version)
	assert.Equal(t, 2, events.published[0].Items)
}

func TestRunToleratesAnnounceFailure(t *testing.T) {
	events := &fakeEvents{err: errors.New("broker down")}
	p := NewPipeline(catalogOf(1), &fakeImages{}, &fakeModel{}, Config{OutDir: t.TempDir()}, logger.NewNop()).
		WithEvents(events)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Announced)
}

func TestRunReturnsPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("bucket gone")}
	p := NewPipeline(catalogOf(1), &fakeImages{}, &fakeModel{}, Config{OutDir: t.TempDir()}, logger.NewNop()).
		WithPublisher(publisher)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Embedded)
}

func TestNewVersion(t *testing.T) {
	v := NewVersion(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Regexp(t, `^20260102T030405Z-[0-9a-f]{8}$`, v)
}
