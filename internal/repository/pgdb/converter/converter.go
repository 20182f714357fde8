package converter

import (
	"fmt"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/goccy/go-json"
)

// CatalogConverter преобразует записи каталога между domain и моделью PostgreSQL.
type CatalogConverter struct{}

func NewCatalogConverter() CatalogConverter {
	return CatalogConverter{}
}

// ToEntity разбирает enum категории и JSON-описание. Нестроковые значения описания приводятся к строке.
func (CatalogConverter) ToEntity(model *CatalogItemModel) (*domain.CatalogItem, error) {
	category, err := domain.ParseCategory(model.Category)
	if err != nil {
		return nil, fmt.Errorf("clothing %d: %w", model.CID, err)
	}

	caption, err := decodeCaption(model.Caption)
	if err != nil {
		return nil, fmt.Errorf("clothing %d caption: %w", model.CID, err)
	}

	item := domain.NewCatalogItem(model.CID, category, model.ClothPath, caption)
	item.CreatedAt = model.CreatedAt

	return item, nil
}

func (CatalogConverter) ToModel(entity *domain.CatalogItem) (*CatalogItemModel, error) {
	caption, err := json.Marshal(entity.Caption)
	if err != nil {
		return nil, err
	}

	return &CatalogItemModel{
		CID:       entity.ID,
		Category:  entity.Category.Plural(),
		Caption:   caption,
		ClothPath: entity.ImagePath,
		CreatedAt: entity.CreatedAt,
	}, nil
}

// InteractionConverter преобразует записи истории просмотров.
type InteractionConverter struct{}

func NewInteractionConverter() InteractionConverter {
	return InteractionConverter{}
}

func (InteractionConverter) ToEntity(model *InteractionModel) *domain.Interaction {
	return &domain.Interaction{
		ID:        model.ID,
		UserID:    model.UserID,
		ItemID:    model.ClothingID,
		CreatedAt: model.CreatedAt,
	}
}

func (c InteractionConverter) ToArrEntity(models []InteractionModel) []domain.Interaction {
	res := make([]domain.Interaction, len(models))
	for i := range models {
		res[i] = *c.ToEntity(&models[i])
	}

	return res
}

func decodeCaption(data []byte) (domain.Caption, error) {
	if len(data) == 0 {
		return domain.Caption{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	caption := make(domain.Caption, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			caption[k] = val
		default:
			caption[k] = fmt.Sprint(val)
		}
	}

	return caption, nil
}
