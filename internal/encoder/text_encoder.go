package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/metrics"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout   = 2 * time.Second
	defaultProbeText = "a photo of clothing"
	sharedKeyPrefix  = "text_emb"
)

var errNotStarted = fmt.Errorf("%w: encoder not started", e.ErrModelUnavailable)

// Model — удалённая модель, переводящая текст в вектор.
type Model interface {
	EmbedText(ctx context.Context, text string) (*usecase.VectorizeRes, error)
}

// SharedCache — общий для реплик кэш векторов запросов (Redis).
type SharedCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vector []float32) error
}

type Config struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	ProbeText  string
	Dimension  int // 0 — не проверять размерность
}

// TextEncoder кэширует векторы текстовых запросов без вытеснения.
// Одновременные промахи по одному ключу сводятся к одному вызову модели.
// Возвращаемые срезы разделяются между вызывающими и не должны изменяться.
type TextEncoder struct {
	model  Model
	shared SharedCache
	cfg    Config
	retry  retrypolicy.RetryPolicy[[]float32]
	logger logger.Logger

	group singleflight.Group

	mu           sync.RWMutex
	cache        map[string][]float32
	startErr     error
	modelVersion string
}

func NewTextEncoder(model Model, shared SharedCache, cfg Config, logger logger.Logger) *TextEncoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if cfg.ProbeText == "" {
		cfg.ProbeText = defaultProbeText
	}

	return &TextEncoder{
		model:  model,
		shared: shared,
		cfg:    cfg,
		retry: retrypolicy.Builder[[]float32]().
			HandleErrors(e.ErrModelTransient).
			WithBackoff(cfg.RetryDelay, 4*cfg.RetryDelay).
			WithMaxRetries(1).
			Build(),
		logger:   logger,
		cache:    make(map[string][]float32),
		startErr: errNotStarted,
	}
}

// Start проверяет модель пробным запросом. При ошибке поиск по тексту
// остаётся отключённым до перезапуска процесса.
func (t *TextEncoder) Start(ctx context.Context) error {
	const op = "TextEncoder.Start"

	res, err := t.call(ctx, t.cfg.ProbeText)
	if err == nil && t.cfg.Dimension > 0 && len(res.Vector) != t.cfg.Dimension {
		err = fmt.Errorf("%w: model returns %d, catalog has %d", e.ErrDimensionMismatch, len(res.Vector), t.cfg.Dimension)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.startErr = fmt.Errorf("%w: %w", e.ErrModelUnavailable, err)
		return e.Wrap(op, t.startErr)
	}

	t.startErr = nil
	t.modelVersion = res.ModelVersion
	t.cache[t.cfg.ProbeText] = res.Vector

	return nil
}

// Available возвращает ошибку, если модель недоступна.
func (t *TextEncoder) Available() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.startErr
}

func (t *TextEncoder) ModelVersion() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.modelVersion
}

// Len — число закэшированных запросов.
func (t *TextEncoder) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.cache)
}

// Embed возвращает вектор запроса. Ключ кэша — строка запроса как есть.
func (t *TextEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "TextEncoder.Embed"

	if err := t.Available(); err != nil {
		return nil, e.Wrap(op, err)
	}

	if v, ok := t.cached(text); ok {
		metrics.TextCacheRequests.WithLabelValues("hit").Inc()
		return v, nil
	}

	// Отмена запроса первого вызывающего не должна ронять остальных ожидающих
	callCtx := context.WithoutCancel(ctx)

	v, err, _ := t.group.Do(text, func() (any, error) {
		if v, ok := t.cached(text); ok {
			metrics.TextCacheRequests.WithLabelValues("hit").Inc()
			return v, nil
		}

		if v, ok := t.fromShared(callCtx, text); ok {
			metrics.TextCacheRequests.WithLabelValues("shared_hit").Inc()
			t.store(text, v)
			return v, nil
		}

		metrics.TextCacheRequests.WithLabelValues("miss").Inc()
		v, err := t.embedWithRetry(callCtx, text)
		if err != nil {
			return nil, err
		}

		t.store(text, v)
		t.toShared(callCtx, text, v)

		return v, nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return v.([]float32), nil
}

// embedWithRetry вызывает модель с одним повтором при временной ошибке. Таймаут не повторяется.
func (t *TextEncoder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	v, err := failsafe.Get(func() ([]float32, error) {
		res, err := t.call(ctx, text)
		lastErr = err
		if err != nil {
			return nil, err
		}
		return res.Vector, nil
	}, t.retry)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	return v, nil
}

// call — один вызов модели с ограничением по времени.
func (t *TextEncoder) call(ctx context.Context, text string) (*usecase.VectorizeRes, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := t.model.EmbedText(ctx, text)
	metrics.ModelLatency.WithLabelValues("embed_text").Observe(time.Since(start).Seconds())

	switch {
	case err == nil && (res == nil || len(res.Vector) == 0):
		err = e.ErrVectorEmbeddingEmpty
	case err != nil && isTimeout(ctx, err):
		err = fmt.Errorf("%w: %v", e.ErrModelTimeout, err)
	}

	if err != nil {
		metrics.ModelCalls.WithLabelValues("embed_text", "error").Inc()
		return nil, err
	}

	metrics.ModelCalls.WithLabelValues("embed_text", "ok").Inc()
	return res, nil
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, e.ErrModelTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (t *TextEncoder) cached(text string) ([]float32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.cache[text]
	return v, ok
}

func (t *TextEncoder) store(text string, v []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache[text] = v
}

func (t *TextEncoder) fromShared(ctx context.Context, text string) ([]float32, bool) {
	if t.shared == nil {
		return nil, false
	}

	v, ok, err := t.shared.GetVector(ctx, t.sharedKey(text))
	if err != nil {
		t.logger.Warnf("Shared text cache lookup failed: %v", err)
		return nil, false
	}
	if ok && t.cfg.Dimension > 0 && len(v) != t.cfg.Dimension {
		t.logger.Warnf("Shared text cache returned vector of dim %d, ignoring", len(v))
		return nil, false
	}

	return v, ok
}

func (t *TextEncoder) toShared(ctx context.Context, text string, v []float32) {
	if t.shared == nil {
		return
	}

	if err := t.shared.SetVector(ctx, t.sharedKey(text), v); err != nil {
		t.logger.Warnf("Failed to store vector in shared text cache: %v", err)
	}
}

// sharedKey привязывает ключ к версии модели, чтобы смена модели не отдавала старые векторы.
func (t *TextEncoder) sharedKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", sharedKeyPrefix, t.ModelVersion(), hex.EncodeToString(sum[:]))
}
