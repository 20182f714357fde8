package usecase

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// HistoryUseCase ведёт историю просмотров, на которой строятся
// популярные и коллаборативные рекомендации.
type HistoryUseCase struct {
	interactionRepo InteractionRepository
	catalog         *itemCatalog
	transactor      Transactor
	producer        EventProducer
	urls            ImageURLFormatter
	validate        *validator.Validate
	logger          logger.Logger
}

func NewHistoryUC(
	interactionRepo InteractionRepository,
	catalogRepo CatalogRepository,
	cacheRepo CacheRepository,
	transactor Transactor,
	producer EventProducer,
	urls ImageURLFormatter,
	logger logger.Logger,
) *HistoryUseCase {
	return &HistoryUseCase{
		interactionRepo: interactionRepo,
		catalog:         newItemCatalog(catalogRepo, cacheRepo, logger),
		transactor:      transactor,
		producer:        producer,
		urls:            urls,
		validate:        validator.New(),
		logger:          logger,
	}
}

// RecordInteraction записывает просмотр: повторный просмотр той же вещи поднимает её наверх,
// история пользователя обрезается до domain.HistoryLimit последних записей.
func (h *HistoryUseCase) RecordInteraction(ctx context.Context, req *RecordInteractionReq) (*HistoryEntry, error) {
	const op = "HistoryUseCase.RecordInteraction"

	if err := h.validate.Struct(req); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrMissingFields, err))
	}

	infos, err := h.catalog.lookup(ctx, []int64{req.ItemID})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	info, ok := infos[req.ItemID]
	if !ok {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d", e.ErrItemNotFound, req.ItemID))
	}

	var saved *domain.Interaction
	err = h.transactor.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		saved, err = h.interactionRepo.Record(ctx, domain.NewInteraction(req.UserID, req.ItemID))
		if err != nil {
			return err
		}

		return h.interactionRepo.TrimHistory(ctx, req.UserID, domain.HistoryLimit)
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Событие отправляется после коммита; его потеря не отменяет запись
	if h.producer != nil {
		if err := h.producer.WriteInteraction(ctx, NewInteractionEvent(saved)); err != nil {
			h.logger.Warnf("Failed to publish interaction event: %v", e.Wrap(op, err))
		}
	}

	entry := h.newHistoryEntry(info, saved)
	return &entry, nil
}

// RecentHistory возвращает последние просмотры пользователя, новые первыми.
func (h *HistoryUseCase) RecentHistory(ctx context.Context, req *RecentHistoryReq) (*RecentHistoryRes, error) {
	const op = "HistoryUseCase.RecentHistory"

	records, err := h.interactionRepo.RecentHistory(ctx, req.UserID, domain.HistoryLimit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ItemID
	}

	infos, err := h.catalog.lookup(ctx, ids)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	entries := make([]HistoryEntry, 0, len(records))
	for i := range records {
		info, ok := infos[records[i].ItemID]
		if !ok {
			continue
		}
		entries = append(entries, h.newHistoryEntry(info, &records[i]))
	}

	return &RecentHistoryRes{Entries: entries}, nil
}

func (h *HistoryUseCase) newHistoryEntry(info ItemInfo, rec *domain.Interaction) HistoryEntry {
	return HistoryEntry{
		ItemID:    info.ID,
		Title:     info.Title,
		Category:  info.Category,
		URL:       h.urls.URL(info.ImagePath),
		CreatedAt: rec.CreatedAt,
	}
}
