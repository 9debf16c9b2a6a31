package api

import (
	"net/http"

	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
)

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" doc:"Human-readable result"`
}

// MessageOutput wraps a MessageResponse.
type MessageOutput struct {
	Body MessageResponse
}

// IDsRequest carries a batch of atom ids.
type IDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0" doc:"Atom IDs"`
}

// validate runs struct validation and converts failures to a 400 response.
// Request bodies mark their own required fields with validate tags so that
// missing fields are reported as VALIDATION rather than schema errors.
func (s *Server) validate(v any) error {
	return toAPIError(s.validator.Validate(v))
}

func unavailable(what string) error {
	return &APIError{
		status:  http.StatusServiceUnavailable,
		Code:    string(domainerrors.CodeInternal),
		Message: what + " is not available",
	}
}

func notFound(what string) error {
	return toAPIError(domainerrors.NotFound(what + " not found"))
}
