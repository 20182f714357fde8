package ml_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/metrics"
	"github.com/DRSN-tech/outfit-recsys/internal/proto"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/jitter"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MLService клиент для взаимодействия с внешним ML-сервисом
type MLService struct {
	client        proto.MachineLearningServiceClient
	maxConcurrent int
	maxRetries    int
	backoff       jitter.Backoff
	logger        logger.Logger
}

func NewMLService(client proto.MachineLearningServiceClient, maxConcurrent int, maxRetries int, logger logger.Logger) *MLService {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &MLService{
		client:        client,
		maxConcurrent: maxConcurrent,
		maxRetries:    maxRetries,
		backoff:       jitter.NewBackoff(time.Second, 30*time.Second),
		logger:        logger,
	}
}

// WithBackoff переопределяет границы экспоненциальной задержки между попытками.
func (m *MLService) WithBackoff(base, max time.Duration) *MLService {
	m.backoff = jitter.NewBackoff(base, max)
	return m
}

// EmbedText переводит текст в вектор. Повторы и таймаут — на стороне вызывающего.
func (m *MLService) EmbedText(ctx context.Context, text string) (*usecase.VectorizeRes, error) {
	const op = "MLService.EmbedText"

	res, err := m.client.EmbedText(ctx, &proto.EmbedTextRequest{Text: text})
	if err != nil {
		return nil, e.Wrap(op, classify(err))
	}

	return usecase.NewVectorizeRes(res.Vector, res.ModelVersion), nil
}

// VectorizeRequest выполняет векторизацию изображений с retry-логикой и экспоненциальной задержкой.
// Результаты идут в порядке изображений запроса.
func (m *MLService) VectorizeRequest(ctx context.Context, req *usecase.VectorizeReq) ([]usecase.VectorizeRes, error) {
	const op = "MLService.VectorizeRequest"

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		vectors, err := m.vectorizeBatch(ctx, req)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := m.backoff.Delay(attempt)
		m.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", m.maxRetries, lastErr))
}

// vectorizeBatch отправляет батч изображений на векторизацию параллельно с ограничением конкурентности
func (m *MLService) vectorizeBatch(ctx context.Context, req *usecase.VectorizeReq) ([]usecase.VectorizeRes, error) {
	const op = "MLService.vectorizeBatch"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([]usecase.VectorizeRes, len(req.Images))
	errCh := make(chan error, len(req.Images))
	sem := make(chan struct{}, m.maxConcurrent)

	var wg sync.WaitGroup
	for i, image := range req.Images {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			start := time.Now()
			res, err := m.client.VectorizeImage(ctx, &proto.VectorizeRequest{
				ImageData: image.Data,
				MimeType:  image.MimeType,
			})
			metrics.ModelLatency.WithLabelValues("vectorize_image").Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.ModelCalls.WithLabelValues("vectorize_image", "error").Inc()
				errCh <- fmt.Errorf("item %d: %w", image.ItemID, classify(err))
				cancel()
				return
			}
			if len(res.Vector) == 0 {
				errCh <- fmt.Errorf("item %d: %w", image.ItemID, e.ErrVectorEmbeddingEmpty)
				cancel()
				return
			}

			metrics.ModelCalls.WithLabelValues("vectorize_image", "ok").Inc()
			vectors[i] = *usecase.NewVectorizeRes(res.Vector, res.ModelVersion)
		}()
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return nil, e.Wrap(op, err)
	}

	return vectors, nil
}

// classify переводит gRPC-статусы в ошибки модели.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", e.ErrModelTimeout, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", e.ErrModelTimeout, err)
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %v", e.ErrModelTransient, err)
	default:
		return err
	}
}
