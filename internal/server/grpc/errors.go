package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const internalErrorMessage = "internal error"

func statusCode(err error) codes.Code {
	switch common.KindOf(err) {
	case common.ErrorUnauthorized:
		return codes.Unauthenticated
	case common.ErrorForbidden:
		return codes.PermissionDenied
	case common.ErrorConflict:
		return codes.AlreadyExists
	case common.ErrorNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// toStatus converts a service error to a gRPC status. Internal failures are
// logged here and reach the caller only as "internal error".
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	code := statusCode(err)
	if code == codes.Internal {
		args := append([]any{"operation", op, "request_id", requestIDFromContext(ctx)}, logging.ErrorAttrs(err)...)
		s.logger.Error(ctx, "operation failed", args...)
		return status.Error(codes.Internal, internalErrorMessage)
	}
	return status.Error(code, common.PublicMessage(err, internalErrorMessage))
}
