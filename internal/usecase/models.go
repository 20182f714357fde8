package usecase

import (
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
)

// RECOMMENDATION USECASE

// SimilarItemsReq — запрос похожих вещей по id вещи.
type SimilarItemsReq struct {
	ItemID int64
	K      int `validate:"gte=1,lte=100"`
}

// TextSearchReq — поиск по текстовому описанию.
type TextSearchReq struct {
	Query string
	TopN  int `validate:"gte=1,lte=100"`
}

type PopularReq struct {
	TopN int `validate:"gte=1,lte=100"`
}

type UserRecommendationsReq struct {
	UserID int64
	TopN   int `validate:"gte=1,lte=100"`
}

// RecommendationsRes — упорядоченный список рекомендаций.
type RecommendationsRes struct {
	Items []RecommendedItem
}

// RecommendedItem — DTO вещи в выдаче. Score заполняется только режимами, которые его считают.
type RecommendedItem struct {
	ID       int64
	Title    string
	Category string
	URL      string
	Score    *float32
}

// ItemInfo — метаданные вещи, нужные для выдачи. Кэшируется в Redis.
type ItemInfo struct {
	ID        int64
	Category  string
	Title     string
	ImagePath string
}

// ModeStatus — доступность одного режима рекомендаций.
type ModeStatus struct {
	Available bool
	Reason    string
}

// HealthRes — состояние режимов и версия загруженных артефактов.
type HealthRes struct {
	ArtifactVersion string
	ModelVersion    string
	Modes           map[string]ModeStatus
}

// HISTORY USECASE

type RecordInteractionReq struct {
	UserID int64 `validate:"required"`
	ItemID int64 `validate:"required"`
}

type RecentHistoryReq struct {
	UserID int64
}

type HistoryEntry struct {
	ItemID    int64
	Title     string
	Category  string
	URL       string
	CreatedAt time.Time
}

type RecentHistoryRes struct {
	Entries []HistoryEntry
}

// INFRASTUCTURE

// CatalogImage — фото вещи каталога для векторизации.
type CatalogImage struct {
	ItemID   int64
	Data     []byte
	MimeType string
}

// VectorizeReq — запрос на векторизацию изображений.
type VectorizeReq struct {
	Images []CatalogImage
}

// VectorizeRes — результат векторизации одного изображения или текста.
type VectorizeRes struct {
	Vector       []float32
	ModelVersion string
}

// PublishArtifactsReq — публикация набора артефактов из локальной директории.
type PublishArtifactsReq struct {
	Version string
	Dir     string
	Files   []string
}

type PublishArtifactsRes struct {
	Keys []string
}

// InteractionEvent — событие о просмотре вещи.
type InteractionEvent struct {
	UserID    int64
	ItemID    int64
	CreatedAt time.Time
}

// ArtifactPublishedEvent — событие о публикации нового набора артефактов.
type ArtifactPublishedEvent struct {
	Version      string
	ModelVersion string
	Items        int
	Dimension    int
	Keys         []string
}

// MAPPERS

func NewItemInfo(item *domain.CatalogItem) ItemInfo {
	return ItemInfo{
		ID:        item.ID,
		Category:  item.Category.String(),
		Title:     item.Title(),
		ImagePath: item.ImagePath,
	}
}

func NewVectorizeRes(vector []float32, modelVersion string) *VectorizeRes {
	return &VectorizeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewVectorizeReq(images []CatalogImage) *VectorizeReq {
	return &VectorizeReq{
		Images: images,
	}
}

func NewInteractionEvent(i *domain.Interaction) *InteractionEvent {
	return &InteractionEvent{
		UserID:    i.UserID,
		ItemID:    i.ItemID,
		CreatedAt: i.CreatedAt,
	}
}

func NewPublishArtifactsReq(version string, dir string, files []string) *PublishArtifactsReq {
	return &PublishArtifactsReq{
		Version: version,
		Dir:     dir,
		Files:   files,
	}
}
