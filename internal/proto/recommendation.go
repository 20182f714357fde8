package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RecommendationService_SimilarItems_FullMethodName        = "/recommend.v1.RecommendationService/SimilarItems"
	RecommendationService_TextSearch_FullMethodName          = "/recommend.v1.RecommendationService/TextSearch"
	RecommendationService_Popular_FullMethodName             = "/recommend.v1.RecommendationService/Popular"
	RecommendationService_UserRecommendations_FullMethodName = "/recommend.v1.RecommendationService/UserRecommendations"
)

// RecommendationRequest — общий запрос для всех режимов:
// {"item_id": number, "user_id": number, "query": string, "top_n": number}
type RecommendationRequest struct {
	ItemID int64
	UserID int64
	Query  string
	TopN   int
}

// RecommendedItem — элемент выдачи.
type RecommendedItem struct {
	ID       int64
	Title    string
	Category string
	URL      string
	Score    *float64
}

// RecommendationResponse — {"items": [{"id", "title", "category", "url", "score"?}]}
type RecommendationResponse struct {
	Items []RecommendedItem
}

func DecodeRecommendationRequest(s *structpb.Struct) *RecommendationRequest {
	return &RecommendationRequest{
		ItemID: int64Field(s, "item_id"),
		UserID: int64Field(s, "user_id"),
		Query:  stringField(s, "query"),
		TopN:   int(int64Field(s, "top_n")),
	}
}

func (r *RecommendationRequest) fields() map[string]any {
	return map[string]any{
		"item_id": r.ItemID,
		"user_id": r.UserID,
		"query":   r.Query,
		"top_n":   r.TopN,
	}
}

func EncodeRecommendationResponse(r *RecommendationResponse) (*structpb.Struct, error) {
	items := make([]any, len(r.Items))
	for i, it := range r.Items {
		m := map[string]any{
			"id":       it.ID,
			"title":    it.Title,
			"category": it.Category,
			"url":      it.URL,
		}
		if it.Score != nil {
			m["score"] = *it.Score
		}
		items[i] = m
	}

	return structpb.NewStruct(map[string]any{"items": items})
}

func DecodeRecommendationResponse(s *structpb.Struct) *RecommendationResponse {
	values := s.GetFields()["items"].GetListValue().GetValues()
	res := &RecommendationResponse{Items: make([]RecommendedItem, 0, len(values))}
	for _, v := range values {
		item := v.GetStructValue()
		it := RecommendedItem{
			ID:       int64Field(item, "id"),
			Title:    stringField(item, "title"),
			Category: stringField(item, "category"),
			URL:      stringField(item, "url"),
		}
		if score, ok := item.GetFields()["score"]; ok {
			val := score.GetNumberValue()
			it.Score = &val
		}
		res.Items = append(res.Items, it)
	}

	return res
}

type RecommendationServiceClient interface {
	SimilarItems(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error)
	TextSearch(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error)
	Popular(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error)
	UserRecommendations(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error)
}

type recommendationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommendationServiceClient(cc grpc.ClientConnInterface) RecommendationServiceClient {
	return &recommendationServiceClient{cc}
}

func (c *recommendationServiceClient) call(ctx context.Context, method string, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error) {
	out, err := invokeStruct(ctx, c.cc, method, in.fields(), opts...)
	if err != nil {
		return nil, err
	}

	return DecodeRecommendationResponse(out), nil
}

func (c *recommendationServiceClient) SimilarItems(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error) {
	return c.call(ctx, RecommendationService_SimilarItems_FullMethodName, in, opts...)
}

func (c *recommendationServiceClient) TextSearch(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error) {
	return c.call(ctx, RecommendationService_TextSearch_FullMethodName, in, opts...)
}

func (c *recommendationServiceClient) Popular(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error) {
	return c.call(ctx, RecommendationService_Popular_FullMethodName, in, opts...)
}

func (c *recommendationServiceClient) UserRecommendations(ctx context.Context, in *RecommendationRequest, opts ...grpc.CallOption) (*RecommendationResponse, error) {
	return c.call(ctx, RecommendationService_UserRecommendations_FullMethodName, in, opts...)
}

// RecommendationServiceServer — серверная сторона сервиса рекомендаций.
type RecommendationServiceServer interface {
	SimilarItems(context.Context, *RecommendationRequest) (*RecommendationResponse, error)
	TextSearch(context.Context, *RecommendationRequest) (*RecommendationResponse, error)
	Popular(context.Context, *RecommendationRequest) (*RecommendationResponse, error)
	UserRecommendations(context.Context, *RecommendationRequest) (*RecommendationResponse, error)
}

// UnimplementedRecommendationServiceServer встраивается в реализации для совместимости вперёд.
type UnimplementedRecommendationServiceServer struct{}

func (UnimplementedRecommendationServiceServer) SimilarItems(context.Context, *RecommendationRequest) (*RecommendationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SimilarItems not implemented")
}

func (UnimplementedRecommendationServiceServer) TextSearch(context.Context, *RecommendationRequest) (*RecommendationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TextSearch not implemented")
}

func (UnimplementedRecommendationServiceServer) Popular(context.Context, *RecommendationRequest) (*RecommendationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Popular not implemented")
}

func (UnimplementedRecommendationServiceServer) UserRecommendations(context.Context, *RecommendationRequest) (*RecommendationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UserRecommendations not implemented")
}

func RegisterRecommendationServiceServer(s grpc.ServiceRegistrar, srv RecommendationServiceServer) {
	s.RegisterService(&RecommendationService_ServiceDesc, srv)
}

func recommendationMethod(name, fullMethod string, call func(RecommendationServiceServer, context.Context, *RecommendationRequest) (*RecommendationResponse, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: structHandler(fullMethod,
			func(srv RecommendationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				res, err := call(srv, ctx, DecodeRecommendationRequest(in))
				if err != nil {
					return nil, err
				}
				return EncodeRecommendationResponse(res)
			}),
	}
}

var RecommendationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "recommend.v1.RecommendationService",
	HandlerType: (*RecommendationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		recommendationMethod("SimilarItems", RecommendationService_SimilarItems_FullMethodName, RecommendationServiceServer.SimilarItems),
		recommendationMethod("TextSearch", RecommendationService_TextSearch_FullMethodName, RecommendationServiceServer.TextSearch),
		recommendationMethod("Popular", RecommendationService_Popular_FullMethodName, RecommendationServiceServer.Popular),
		recommendationMethod("UserRecommendations", RecommendationService_UserRecommendations_FullMethodName, RecommendationServiceServer.UserRecommendations),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recommend/v1/recommendation.proto",
}
