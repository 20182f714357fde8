package grpc

import (
	"context"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/proto"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/shopspring/decimal"
)

type RecommendationService struct {
	proto.UnimplementedRecommendationServiceServer
	recUC    usecase.RecommendationUC
	defaults *cfg.RecommendCfg
	logger   logger.Logger
}

func NewRecommendationService(recUC usecase.RecommendationUC, defaults *cfg.RecommendCfg, logger logger.Logger) *RecommendationService {
	return &RecommendationService{recUC: recUC, defaults: defaults, logger: logger}
}

func (g *RecommendationService) SimilarItems(ctx context.Context, req *proto.RecommendationRequest) (*proto.RecommendationResponse, error) {
	const op = "grpc.SimilarItems"

	res, err := g.recUC.SimilarItems(ctx, &usecase.SimilarItemsReq{
		ItemID: req.ItemID,
		K:      orDefault(req.TopN, g.defaults.DefaultSimilarK),
	})
	return g.respond(op, res, err)
}

func (g *RecommendationService) TextSearch(ctx context.Context, req *proto.RecommendationRequest) (*proto.RecommendationResponse, error) {
	const op = "grpc.TextSearch"

	res, err := g.recUC.TextSearch(ctx, &usecase.TextSearchReq{
		Query: req.Query,
		TopN:  orDefault(req.TopN, g.defaults.DefaultSearchTopN),
	})
	return g.respond(op, res, err)
}

func (g *RecommendationService) Popular(ctx context.Context, req *proto.RecommendationRequest) (*proto.RecommendationResponse, error) {
	const op = "grpc.Popular"

	res, err := g.recUC.Popular(ctx, &usecase.PopularReq{
		TopN: orDefault(req.TopN, g.defaults.DefaultPopularTopN),
	})
	return g.respond(op, res, err)
}

func (g *RecommendationService) UserRecommendations(ctx context.Context, req *proto.RecommendationRequest) (*proto.RecommendationResponse, error) {
	const op = "grpc.UserRecommendations"

	res, err := g.recUC.CollaborativeForUser(ctx, &usecase.UserRecommendationsReq{
		UserID: req.UserID,
		TopN:   orDefault(req.TopN, g.defaults.DefaultUserTopN),
	})
	return g.respond(op, res, err)
}

func (g *RecommendationService) respond(op string, res *usecase.RecommendationsRes, err error) (*proto.RecommendationResponse, error) {
	if err != nil {
		g.logger.Warnf("%v", e.Wrap(op, err))
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return &proto.RecommendationResponse{Items: toArrGRPCItems(res.Items)}, nil
}

// orDefault — в gRPC отсутствующее поле приходит нулём.
func orDefault(n int, def int) int {
	if n == 0 {
		return def
	}

	return n
}

func toGRPCItem(it *usecase.RecommendedItem) proto.RecommendedItem {
	item := proto.RecommendedItem{
		ID:       it.ID,
		Title:    it.Title,
		Category: it.Category,
		URL:      it.URL,
	}
	if it.Score != nil {
		s, _ := decimal.NewFromFloat32(*it.Score).Round(4).Float64()
		item.Score = &s
	}

	return item
}

func toArrGRPCItems(items []usecase.RecommendedItem) []proto.RecommendedItem {
	res := make([]proto.RecommendedItem, len(items))
	for i := range items {
		res[i] = toGRPCItem(&items[i])
	}

	return res
}
