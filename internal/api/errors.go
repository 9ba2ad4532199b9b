package api

import (
	"errors"
	"net/http"

	"staybook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorBody struct {
	Error                string `json:"error"`
	Reason               string `json:"reason,omitempty"`
	ConflictingBookingID string `json:"conflicting_booking_id,omitempty"`
	From                 string `json:"from,omitempty"`
	To                   string `json:"to,omitempty"`
}

// httpError maps a service error to a status code and response body.
func httpError(err error) (int, errorBody) {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		transition *domain.InvalidTransitionError
		notFound   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Error: "validation failed", Reason: validation.Reason}
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorBody{Error: notFound.Error()}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorBody{Error: "booking conflict", ConflictingBookingID: conflict.ConflictingBookingID}
	case errors.As(err, &transition):
		return http.StatusUnprocessableEntity, errorBody{
			Error: "invalid status transition",
			From:  transition.From.String(),
			To:    transition.To.String(),
		}
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

// grpcError converts a service error to a gRPC status.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		transition *domain.InvalidTransitionError
		notFound   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.As(err, &conflict):
		return status.Error(codes.Aborted, conflict.Error())
	case errors.As(err, &transition):
		return status.Error(codes.FailedPrecondition, transition.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
