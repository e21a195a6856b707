package server

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/states"
)

// grpcCode maps domain errors onto gRPC status codes
func grpcCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrRoomNotFound):
		return codes.NotFound
	case errors.Is(err, ErrServerAtCapacity):
		return codes.ResourceExhausted
	case errors.Is(err, core.ErrMatchOver),
		errors.Is(err, core.ErrMatchNotRunning),
		errors.Is(err, ErrRoomClosed),
		errors.Is(err, states.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, core.ErrInvalidDispatch),
		errors.Is(err, core.ErrSameTerritory),
		errors.Is(err, core.ErrUnknownTerritory),
		errors.Is(err, core.ErrInvalidSetup):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(grpcCode(err), err.Error())
}

// httpStatus maps domain errors onto HTTP status codes
func httpStatus(err error) int {
	switch grpcCode(err) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusServiceUnavailable
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
