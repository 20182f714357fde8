package grpc

import (
	"errors"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCErrorResponse сопоставляет ошибку usecase статусу gRPC.
func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrItemNotFound):
		return status.Error(codes.NotFound, e.ErrItemNotFound.Error())
	case errors.Is(err, e.ErrNoHistory):
		return status.Error(codes.NotFound, e.ErrNoHistory.Error())
	case errors.Is(err, e.ErrEmptyQuery):
		return status.Error(codes.InvalidArgument, e.ErrEmptyQuery.Error())
	case errors.Is(err, e.ErrInvalidTopN):
		return status.Error(codes.InvalidArgument, e.ErrInvalidTopN.Error())
	case errors.Is(err, e.ErrMissingFields):
		return status.Error(codes.InvalidArgument, e.ErrMissingFields.Error())
	case errors.Is(err, e.ErrModelTimeout):
		return status.Error(codes.DeadlineExceeded, e.ErrModelTimeout.Error())
	case errors.Is(err, e.ErrSearchUnavailable):
		return status.Error(codes.Unavailable, e.ErrSearchUnavailable.Error())
	case errors.Is(err, e.ErrSimilarUnavailable):
		return status.Error(codes.Unavailable, e.ErrSimilarUnavailable.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}
