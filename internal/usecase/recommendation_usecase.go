package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/internal/metrics"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// Режимы рекомендаций
const (
	ModeSimilar       = "similar"
	ModeSearch        = "search"
	ModePopular       = "popular"
	ModeCollaborative = "collaborative"
)

// SimilarityIndex — предрасчитанная матрица близости.
type SimilarityIndex interface {
	TopKSimilar(itemID int64, k int) ([]domain.ScoredItem, error)
}

// VectorIndex — векторы каталога для поиска по произвольному запросу.
type VectorIndex interface {
	Nearest(q []float32, n int) ([]domain.ScoredItem, error)
	ModelVersion() string
}

// Artifacts — загруженные при старте артефакты. Ошибка загрузки отключает
// соответствующий режим до конца жизни процесса.
type Artifacts struct {
	Version       string
	Vectors       VectorIndex
	Similarity    SimilarityIndex
	VectorsErr    error
	SimilarityErr error
}

// RecommendationUseCase — движок рекомендаций. Кроме артефактов и кэша
// текстового энкодера состояния не хранит.
type RecommendationUseCase struct {
	artifacts       Artifacts
	encoder         QueryEncoder
	catalog         *itemCatalog
	interactionRepo InteractionRepository
	urls            ImageURLFormatter
	validate        *validator.Validate
	logger          logger.Logger
}

func NewRecommendationUC(
	artifacts Artifacts,
	encoder QueryEncoder,
	catalogRepo CatalogRepository,
	cacheRepo CacheRepository,
	interactionRepo InteractionRepository,
	urls ImageURLFormatter,
	logger logger.Logger,
) *RecommendationUseCase {
	r := &RecommendationUseCase{
		artifacts:       artifacts,
		encoder:         encoder,
		catalog:         newItemCatalog(catalogRepo, cacheRepo, logger),
		interactionRepo: interactionRepo,
		urls:            urls,
		validate:        validator.New(),
		logger:          logger,
	}

	if err := r.similarAvailable(); err != nil {
		logger.Errorf(err, "Similar-item recommendations disabled")
	}
	if err := r.searchAvailable(); err != nil {
		logger.Errorf(err, "Text search disabled")
	}
	r.publishModeGauges()

	return r
}

// SimilarItems возвращает k вещей, ближайших к заданной по предрасчитанной матрице.
func (r *RecommendationUseCase) SimilarItems(ctx context.Context, req *SimilarItemsReq) (res *RecommendationsRes, err error) {
	const op = "RecommendationUseCase.SimilarItems"
	defer observe(ModeSimilar, &err)

	if err = r.validateTopN(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = r.similarAvailable(); err != nil {
		return nil, e.Wrap(op, err)
	}

	query, err := r.catalog.lookup(ctx, []int64{req.ItemID})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if _, ok := query[req.ItemID]; !ok {
		return nil, e.Wrap(op, fmt.Errorf("%w: id=%d is not in the catalog", e.ErrItemNotFound, req.ItemID))
	}

	items, err := r.rankedItems(ctx, req.K, func(n int) ([]domain.ScoredItem, error) {
		return r.artifacts.Similarity.TopKSimilar(req.ItemID, n)
	})
	if err != nil {
		if errors.Is(err, e.ErrUnknownItem) {
			return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrItemNotFound, err))
		}
		return nil, e.Wrap(op, err)
	}

	return &RecommendationsRes{Items: items}, nil
}

// TextSearch ищет вещи по текстовому описанию.
func (r *RecommendationUseCase) TextSearch(ctx context.Context, req *TextSearchReq) (res *RecommendationsRes, err error) {
	const op = "RecommendationUseCase.TextSearch"
	defer observe(ModeSearch, &err)

	if strings.TrimSpace(req.Query) == "" {
		return nil, e.Wrap(op, e.ErrEmptyQuery)
	}

	if err = r.validateTopN(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = r.searchAvailable(); err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := r.encoder.Embed(ctx, req.Query)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrSearchUnavailable, err))
	}

	items, err := r.rankedItems(ctx, req.TopN, func(n int) ([]domain.ScoredItem, error) {
		scored, err := r.artifacts.Vectors.Nearest(vector, n)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", e.ErrSearchUnavailable, err)
		}
		return scored, nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendationsRes{Items: items}, nil
}

// Popular возвращает самые просматриваемые вещи.
func (r *RecommendationUseCase) Popular(ctx context.Context, req *PopularReq) (res *RecommendationsRes, err error) {
	const op = "RecommendationUseCase.Popular"
	defer observe(ModePopular, &err)

	if err = r.validateTopN(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	counts, err := r.interactionRepo.ClickCounts(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items, err := r.countedItems(ctx, rankByCount(counts, req.TopN))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendationsRes{Items: items}, nil
}

// CollaborativeForUser рекомендует вещи, которые смотрели пользователи
// с пересекающейся историей: user → его вещи → другие пользователи → их вещи.
func (r *RecommendationUseCase) CollaborativeForUser(ctx context.Context, req *UserRecommendationsReq) (res *RecommendationsRes, err error) {
	const op = "RecommendationUseCase.CollaborativeForUser"
	defer observe(ModeCollaborative, &err)

	if err = r.validateTopN(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	seen, err := r.interactionRepo.UserItems(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(seen) == 0 {
		return nil, e.Wrap(op, e.ErrNoHistory)
	}

	users, err := r.interactionRepo.UsersWhoClicked(ctx, seen, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(users) == 0 {
		return &RecommendationsRes{Items: []RecommendedItem{}}, nil
	}

	counts, err := r.interactionRepo.CoClickCounts(ctx, users, seen)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items, err := r.countedItems(ctx, rankByCount(counts, req.TopN))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendationsRes{Items: items}, nil
}

// Health возвращает доступность режимов.
func (r *RecommendationUseCase) Health() *HealthRes {
	res := &HealthRes{
		ArtifactVersion: r.artifacts.Version,
		Modes: map[string]ModeStatus{
			ModeSimilar:       newModeStatus(r.similarAvailable()),
			ModeSearch:        newModeStatus(r.searchAvailable()),
			ModePopular:       newModeStatus(nil),
			ModeCollaborative: newModeStatus(nil),
		},
	}

	if r.artifacts.VectorsErr == nil && r.artifacts.Vectors != nil {
		res.ModelVersion = r.artifacts.Vectors.ModelVersion()
	}

	return res
}

func (r *RecommendationUseCase) similarAvailable() error {
	if r.artifacts.SimilarityErr != nil {
		return fmt.Errorf("%w: %w", e.ErrSimilarUnavailable, r.artifacts.SimilarityErr)
	}
	if r.artifacts.Similarity == nil {
		return fmt.Errorf("%w: %w", e.ErrSimilarUnavailable, e.ErrArtifactMissing)
	}

	return nil
}

func (r *RecommendationUseCase) searchAvailable() error {
	if r.artifacts.VectorsErr != nil {
		return fmt.Errorf("%w: %w", e.ErrSearchUnavailable, r.artifacts.VectorsErr)
	}
	if r.artifacts.Vectors == nil {
		return fmt.Errorf("%w: %w", e.ErrSearchUnavailable, e.ErrArtifactMissing)
	}
	if r.encoder == nil {
		return fmt.Errorf("%w: %w", e.ErrSearchUnavailable, e.ErrModelUnavailable)
	}
	if err := r.encoder.Available(); err != nil {
		return fmt.Errorf("%w: %w", e.ErrSearchUnavailable, err)
	}

	return nil
}

func (r *RecommendationUseCase) publishModeGauges() {
	metrics.SetModeAvailable(ModeSimilar, r.similarAvailable() == nil)
	metrics.SetModeAvailable(ModeSearch, r.searchAvailable() == nil)
	metrics.SetModeAvailable(ModePopular, true)
	metrics.SetModeAvailable(ModeCollaborative, true)
}

// validateTopN проверяет ограничения размера выдачи в запросе.
func (r *RecommendationUseCase) validateTopN(req any) error {
	if err := r.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidTopN, err)
	}

	return nil
}

// rankedItems запрашивает у ранжирования want лучших вещей и, если часть из них
// отсутствует в каталоге, дозапрашивает столько же следующих, пока не наберёт want
// или ранжирование не исчерпается.
func (r *RecommendationUseCase) rankedItems(ctx context.Context, want int, rank func(n int) ([]domain.ScoredItem, error)) ([]RecommendedItem, error) {
	n := want
	for {
		scored, err := rank(n)
		if err != nil {
			return nil, err
		}

		items, err := r.scoredItems(ctx, scored)
		if err != nil {
			return nil, err
		}

		if len(items) >= want || len(scored) < n {
			if len(items) > want {
				items = items[:want]
			}
			return items, nil
		}

		n = want + len(scored) - len(items)
	}
}

// scoredItems дополняет результат ранжирования метаданными, сохраняя порядок.
// Вещи, отсутствующие в каталоге, пропускаются.
func (r *RecommendationUseCase) scoredItems(ctx context.Context, scored []domain.ScoredItem) ([]RecommendedItem, error) {
	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}

	infos, err := r.catalog.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]RecommendedItem, 0, len(scored))
	for _, s := range scored {
		info, ok := infos[s.ItemID]
		if !ok {
			r.logger.Warnf("Item %d is indexed but missing from the catalog, skipping", s.ItemID)
			continue
		}

		score := s.Score
		item := r.newRecommendedItem(info)
		item.Score = &score
		items = append(items, item)
	}

	return items, nil
}

func (r *RecommendationUseCase) countedItems(ctx context.Context, counts []domain.ItemCount) ([]RecommendedItem, error) {
	ids := make([]int64, len(counts))
	for i, c := range counts {
		ids[i] = c.ItemID
	}

	infos, err := r.catalog.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]RecommendedItem, 0, len(counts))
	for _, c := range counts {
		info, ok := infos[c.ItemID]
		if !ok {
			r.logger.Warnf("Item %d has interactions but is missing from the catalog, skipping", c.ItemID)
			continue
		}
		items = append(items, r.newRecommendedItem(info))
	}

	return items, nil
}

func (r *RecommendationUseCase) newRecommendedItem(info ItemInfo) RecommendedItem {
	return RecommendedItem{
		ID:       info.ID,
		Title:    info.Title,
		Category: info.Category,
		URL:      r.urls.URL(info.ImagePath),
	}
}

func newModeStatus(err error) ModeStatus {
	if err != nil {
		return ModeStatus{Available: false, Reason: err.Error()}
	}

	return ModeStatus{Available: true}
}

// observe учитывает исход запроса к режиму в метриках.
func observe(mode string, errp *error) {
	metrics.EngineRequests.WithLabelValues(mode, Outcome(*errp)).Inc()
}

// Outcome классифицирует ошибку движка для метрик и логов.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, e.ErrItemNotFound), errors.Is(err, e.ErrNoHistory):
		return "not_found"
	case errors.Is(err, e.ErrEmptyQuery), errors.Is(err, e.ErrInvalidTopN),
		errors.Is(err, e.ErrMissingFields), errors.Is(err, e.ErrInvalidID):
		return "bad_request"
	case errors.Is(err, e.ErrModelTimeout):
		return "timeout"
	case errors.Is(err, e.ErrSearchUnavailable), errors.Is(err, e.ErrSimilarUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
