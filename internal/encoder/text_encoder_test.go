package encoder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probe = "probe"

// fakeModel считает вызовы по тексту; behave позволяет переопределить ответ.
type fakeModel struct {
	mu     sync.Mutex
	calls  map[string]int
	behave func(ctx context.Context, text string, call int) (*usecase.VectorizeRes, error)
}

func newFakeModel(behave func(ctx context.Context, text string, call int) (*usecase.VectorizeRes, error)) *fakeModel {
	return &fakeModel{calls: make(map[string]int), behave: behave}
}

func (m *fakeModel) EmbedText(ctx context.Context, text string) (*usecase.VectorizeRes, error) {
	m.mu.Lock()
	m.calls[text]++
	n := m.calls[text]
	m.mu.Unlock()

	if m.behave != nil && text != probe {
		return m.behave(ctx, text, n)
	}

	return usecase.NewVectorizeRes([]float32{float32(len(text)), 1}, "clip-test"), nil
}

func (m *fakeModel) callsFor(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[text]
}

type mapShared struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (s *mapShared) GetVector(_ context.Context, key string) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapShared) SetVector(_ context.Context, key string, v []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = v
	return nil
}

func newStarted(t *testing.T, model Model, shared SharedCache, cfg Config) *TextEncoder {
	t.Helper()

	cfg.ProbeText = probe
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	enc := NewTextEncoder(model, shared, cfg, logger.NewNop())
	require.NoError(t, enc.Start(context.Background()))

	return enc
}

func TestEmbed_CacheHitSkipsModel(t *testing.T) {
	model := newFakeModel(nil)
	enc := newStarted(t, model, nil, Config{})

	v1, err := enc.Embed(context.Background(), "red dress")
	require.NoError(t, err)
	v2, err := enc.Embed(context.Background(), "red dress")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, model.callsFor("red dress"))
	assert.Equal(t, "clip-test", enc.ModelVersion())

	// Ключ — строка как есть, без нормализации.
	_, err = enc.Embed(context.Background(), "red dress ")
	require.NoError(t, err)
	assert.Equal(t, 1, model.callsFor("red dress "))
	assert.Equal(t, 3, enc.Len())
}

func TestEmbed_ConcurrentMissesCollapse(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	model := newFakeModel(func(_ context.Context, _ string, _ int) (*usecase.VectorizeRes, error) {
		started.Add(1)
		<-release
		return usecase.NewVectorizeRes([]float32{1, 2}, "clip-test"), nil
	})
	enc := newStarted(t, model, nil, Config{Timeout: 5 * time.Second})

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]float32, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = enc.Embed(context.Background(), "linen shirt")
		}(i)
	}

	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []float32{1, 2}, results[i])
	}
	assert.Equal(t, 1, model.callsFor("linen shirt"))
}

func TestEmbed_Timeout(t *testing.T) {
	model := newFakeModel(func(ctx context.Context, _ string, _ int) (*usecase.VectorizeRes, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	enc := newStarted(t, model, nil, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := enc.Embed(context.Background(), "slow query")
	assert.ErrorIs(t, err, e.ErrModelTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, model.callsFor("slow query"), "timeouts are not retried")
	assert.Equal(t, 1, enc.Len(), "failures are not cached")
}

func TestEmbed_RetriesTransientOnce(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		model := newFakeModel(func(_ context.Context, _ string, call int) (*usecase.VectorizeRes, error) {
			if call == 1 {
				return nil, e.ErrModelTransient
			}
			return usecase.NewVectorizeRes([]float32{3, 4}, "clip-test"), nil
		})
		enc := newStarted(t, model, nil, Config{})

		v, err := enc.Embed(context.Background(), "boots")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 4}, v)
		assert.Equal(t, 2, model.callsFor("boots"))
	})

	t.Run("gives up after one retry", func(t *testing.T) {
		model := newFakeModel(func(_ context.Context, _ string, _ int) (*usecase.VectorizeRes, error) {
			return nil, e.ErrModelTransient
		})
		enc := newStarted(t, model, nil, Config{})

		_, err := enc.Embed(context.Background(), "boots")
		assert.ErrorIs(t, err, e.ErrModelTransient)
		assert.Equal(t, 2, model.callsFor("boots"))
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		model := newFakeModel(func(_ context.Context, _ string, _ int) (*usecase.VectorizeRes, error) {
			return nil, errors.New("invalid argument")
		})
		enc := newStarted(t, model, nil, Config{})

		_, err := enc.Embed(context.Background(), "boots")
		assert.Error(t, err)
		assert.Equal(t, 1, model.callsFor("boots"))
	})
}

func TestStart(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		enc := NewTextEncoder(newFakeModel(nil), nil, Config{}, logger.NewNop())
		assert.ErrorIs(t, enc.Available(), e.ErrModelUnavailable)
	})

	t.Run("probe failure disables encoder", func(t *testing.T) {
		model := &failingModel{err: errors.New("connection refused")}
		enc := NewTextEncoder(model, nil, Config{ProbeText: probe}, logger.NewNop())

		require.Error(t, enc.Start(context.Background()))
		assert.ErrorIs(t, enc.Available(), e.ErrModelUnavailable)

		_, err := enc.Embed(context.Background(), "anything")
		assert.ErrorIs(t, err, e.ErrModelUnavailable)
		assert.Equal(t, 1, model.calls, "disabled encoder never calls the model")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		enc := NewTextEncoder(newFakeModel(nil), nil, Config{ProbeText: probe, Dimension: 768}, logger.NewNop())

		err := enc.Start(context.Background())
		assert.ErrorIs(t, err, e.ErrDimensionMismatch)
		assert.ErrorIs(t, enc.Available(), e.ErrModelUnavailable)
	})
}

func TestEmbed_SharedCache(t *testing.T) {
	shared := &mapShared{data: make(map[string][]float32)}

	first := newStarted(t, newFakeModel(nil), shared, Config{})
	_, err := first.Embed(context.Background(), "wool coat")
	require.NoError(t, err)
	require.Len(t, shared.data, 1)

	model := newFakeModel(nil)
	second := newStarted(t, model, shared, Config{})
	v, err := second.Embed(context.Background(), "wool coat")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 1}, v)
	assert.Equal(t, 0, model.callsFor("wool coat"), "served by the shared cache")
}

type failingModel struct {
	calls int
	err   error
}

func (m *failingModel) EmbedText(_ context.Context, _ string) (*usecase.VectorizeRes, error) {
	m.calls++
	return nil, m.err
}
