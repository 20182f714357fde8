package converter

import "github.com/DRSN-tech/outfit-recsys/internal/usecase"

// ItemInfoConverter преобразует метаданные вещи между usecase и моделью кэша.
type ItemInfoConverter struct{}

func NewItemInfoConverter() ItemInfoConverter {
	return ItemInfoConverter{}
}

func (ItemInfoConverter) ToRedisModel(entity *usecase.ItemInfo) *ItemInfoRedisModel {
	return &ItemInfoRedisModel{
		ID:        entity.ID,
		Category:  entity.Category,
		Title:     entity.Title,
		ImagePath: entity.ImagePath,
	}
}

func (ItemInfoConverter) ToUseCase(model *ItemInfoRedisModel) *usecase.ItemInfo {
	return &usecase.ItemInfo{
		ID:        model.ID,
		Category:  model.Category,
		Title:     model.Title,
		ImagePath: model.ImagePath,
	}
}

func (c ItemInfoConverter) ToArrRedisModel(entities []usecase.ItemInfo) []ItemInfoRedisModel {
	res := make([]ItemInfoRedisModel, len(entities))
	for i := range entities {
		res[i] = *c.ToRedisModel(&entities[i])
	}

	return res
}
