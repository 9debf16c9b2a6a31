package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getDefaultCategory",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings/default-category",
		Summary:     "Get default category",
		Description: "Returns the category the gallery is scoped to when no tag is selected",
		Tags:        []string{"Settings"},
	}, s.handleGetDefaultCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "setDefaultCategory",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/default-category",
		Summary:     "Set default category",
		Description: "Sets the default category. A null categoryId clears it.",
		Tags:        []string{"Settings"},
	}, s.handleSetDefaultCategory)
}

// DefaultCategoryBody carries the default category setting.
type DefaultCategoryBody struct {
	CategoryID *int64 `json:"categoryId,omitempty" validate:"omitempty,gt=0" doc:"Category ID, or null for none"`
}

// DefaultCategoryInput wraps DefaultCategoryBody.
type DefaultCategoryInput struct {
	Body DefaultCategoryBody
}

// DefaultCategoryOutput wraps DefaultCategoryBody.
type DefaultCategoryOutput struct {
	Body DefaultCategoryBody
}

func (s *Server) handleGetDefaultCategory(_ context.Context, _ *struct{}) (*DefaultCategoryOutput, error) {
	return &DefaultCategoryOutput{Body: DefaultCategoryBody{CategoryID: s.store.DefaultCategory()}}, nil
}

func (s *Server) handleSetDefaultCategory(ctx context.Context, input *DefaultCategoryInput) (*DefaultCategoryOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	id := input.Body.CategoryID
	if id != nil {
		if _, ok := s.store.Category(*id); !ok {
			return nil, toAPIError(domainerrors.NotFoundf("category %d not found", *id))
		}
	}
	if err := s.store.SetDefaultCategory(ctx, id); err != nil {
		return nil, toAPIError(err)
	}
	return &DefaultCategoryOutput{Body: DefaultCategoryBody{CategoryID: s.store.DefaultCategory()}}, nil
}
