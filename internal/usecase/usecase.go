package usecase

import "context"

type RecommendationUC interface {
	SimilarItems(ctx context.Context, req *SimilarItemsReq) (*RecommendationsRes, error)
	TextSearch(ctx context.Context, req *TextSearchReq) (*RecommendationsRes, error)
	Popular(ctx context.Context, req *PopularReq) (*RecommendationsRes, error)
	CollaborativeForUser(ctx context.Context, req *UserRecommendationsReq) (*RecommendationsRes, error)
	Health() *HealthRes
}

type HistoryUC interface {
	RecordInteraction(ctx context.Context, req *RecordInteractionReq) (*HistoryEntry, error)
	RecentHistory(ctx context.Context, req *RecentHistoryReq) (*RecentHistoryRes, error)
}
