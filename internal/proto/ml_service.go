package proto

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	MachineLearningService_EmbedText_FullMethodName      = "/ml.MachineLearningService/EmbedText"
	MachineLearningService_VectorizeImage_FullMethodName = "/ml.MachineLearningService/VectorizeImage"
)

// EmbedTextRequest — {"text": string}
type EmbedTextRequest struct {
	Text string
}

// VectorizeRequest — {"image_data": base64, "mime_type": string}
type VectorizeRequest struct {
	ImageData []byte
	MimeType  string
}

// VectorResponse — {"vector": [number], "model_version": string}
type VectorResponse struct {
	Vector       []float32
	ModelVersion string
}

type MachineLearningServiceClient interface {
	EmbedText(ctx context.Context, in *EmbedTextRequest, opts ...grpc.CallOption) (*VectorResponse, error)
	VectorizeImage(ctx context.Context, in *VectorizeRequest, opts ...grpc.CallOption) (*VectorResponse, error)
}

type machineLearningServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMachineLearningServiceClient(cc grpc.ClientConnInterface) MachineLearningServiceClient {
	return &machineLearningServiceClient{cc}
}

func (c *machineLearningServiceClient) EmbedText(ctx context.Context, in *EmbedTextRequest, opts ...grpc.CallOption) (*VectorResponse, error) {
	out, err := invokeStruct(ctx, c.cc, MachineLearningService_EmbedText_FullMethodName, map[string]any{
		"text": in.Text,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return DecodeVectorResponse(out)
}

func (c *machineLearningServiceClient) VectorizeImage(ctx context.Context, in *VectorizeRequest, opts ...grpc.CallOption) (*VectorResponse, error) {
	out, err := invokeStruct(ctx, c.cc, MachineLearningService_VectorizeImage_FullMethodName, map[string]any{
		"image_data": base64.StdEncoding.EncodeToString(in.ImageData),
		"mime_type":  in.MimeType,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return DecodeVectorResponse(out)
}

// DecodeVectorResponse разбирает ответ модели.
func DecodeVectorResponse(s *structpb.Struct) (*VectorResponse, error) {
	list := s.GetFields()["vector"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("vector response: missing vector field")
	}

	values := list.GetValues()
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v.GetNumberValue())
	}

	return &VectorResponse{
		Vector:       vector,
		ModelVersion: stringField(s, "model_version"),
	}, nil
}

// EncodeVectorResponse — обратная операция, нужна серверной стороне.
func EncodeVectorResponse(r *VectorResponse) (*structpb.Struct, error) {
	values := make([]any, len(r.Vector))
	for i, v := range r.Vector {
		values[i] = float64(v)
	}

	return structpb.NewStruct(map[string]any{
		"vector":        values,
		"model_version": r.ModelVersion,
	})
}

// MachineLearningServiceServer — серверная сторона контракта ML-сервиса.
type MachineLearningServiceServer interface {
	EmbedText(context.Context, *EmbedTextRequest) (*VectorResponse, error)
	VectorizeImage(context.Context, *VectorizeRequest) (*VectorResponse, error)
}

func RegisterMachineLearningServiceServer(s grpc.ServiceRegistrar, srv MachineLearningServiceServer) {
	s.RegisterService(&MachineLearningService_ServiceDesc, srv)
}

var MachineLearningService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ml.MachineLearningService",
	HandlerType: (*MachineLearningServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EmbedText",
			Handler: structHandler(MachineLearningService_EmbedText_FullMethodName,
				func(srv MachineLearningServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					res, err := srv.EmbedText(ctx, &EmbedTextRequest{Text: stringField(in, "text")})
					if err != nil {
						return nil, err
					}
					return EncodeVectorResponse(res)
				}),
		},
		{
			MethodName: "VectorizeImage",
			Handler: structHandler(MachineLearningService_VectorizeImage_FullMethodName,
				func(srv MachineLearningServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					data, err := base64.StdEncoding.DecodeString(stringField(in, "image_data"))
					if err != nil {
						return nil, status.Error(codes.InvalidArgument, "image_data must be base64")
					}
					res, err := srv.VectorizeImage(ctx, &VectorizeRequest{ImageData: data, MimeType: stringField(in, "mime_type")})
					if err != nil {
						return nil, err
					}
					return EncodeVectorResponse(res)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ml/ml_service.proto",
}
