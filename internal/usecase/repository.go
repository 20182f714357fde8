package usecase

import (
	"context"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
)

type CatalogRepository interface {
	GetItems(ctx context.Context, ids []int64) ([]domain.CatalogItem, error)
	ListItems(ctx context.Context) ([]domain.CatalogItem, error)
}

// InteractionRepository — журнал просмотров. Методы Record и TrimHistory
// выполняются внутри транзакции из контекста.
type InteractionRepository interface {
	Record(ctx context.Context, interaction *domain.Interaction) (*domain.Interaction, error)
	TrimHistory(ctx context.Context, userID int64, keep int) error
	RecentHistory(ctx context.Context, userID int64, limit int) ([]domain.Interaction, error)

	UserItems(ctx context.Context, userID int64) ([]int64, error)
	ClickCounts(ctx context.Context) ([]domain.ItemCount, error)
	UsersWhoClicked(ctx context.Context, itemIDs []int64, excludeUserID int64) ([]int64, error)
	CoClickCounts(ctx context.Context, userIDs []int64, excludeItemIDs []int64) ([]domain.ItemCount, error)
}

type CacheRepository interface {
	GetItems(ctx context.Context, ids []int64) (map[int64]ItemInfo, error)
	SetItems(ctx context.Context, items []ItemInfo) error
	DeleteItems(ctx context.Context, ids []int64) error
}

type EmbeddingRepository interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, vectors []domain.Embedding) error
}

type ArtifactRepository interface {
	Upload(ctx context.Context, key string, localPath string) error
	Download(ctx context.Context, key string, localPath string) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Transactor выполняет fn в транзакции, положив её в контекст.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
