package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

func (s *Server) registerCategoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Tags:        []string{"Categories"},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCategory",
		Method:        http.MethodPost,
		Path:          "/api/v1/categories",
		Summary:       "Create category",
		Tags:          []string{"Categories"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCategory",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Get category",
		Tags:        []string{"Categories"},
	}, s.handleGetCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCategory",
		Method:      http.MethodPatch,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Update category",
		Tags:        []string{"Categories"},
	}, s.handleUpdateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCategory",
		Method:        http.MethodDelete,
		Path:          "/api/v1/categories/{id}",
		Summary:       "Delete category",
		Description:   "Deletes a category and its tag links. Clears the default category if it pointed here.",
		Tags:          []string{"Categories"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "mergeCategory",
		Method:      http.MethodPost,
		Path:        "/api/v1/categories/{id}/merge",
		Summary:     "Merge category",
		Description: "Moves the category's tags to the target and deletes it. Returns 202 when a partial merge was queued for retry.",
		Tags:        []string{"Categories"},
	}, s.handleMergeCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCategoryTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/{id}/tags",
		Summary:     "List category tags",
		Tags:        []string{"Categories"},
	}, s.handleGetCategoryTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCategoryTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/categories/{id}/tags",
		Summary:     "Add tag to category",
		Tags:        []string{"Categories"},
	}, s.handleAddCategoryTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeCategoryTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/categories/{id}/tags/{tagId}",
		Summary:       "Remove tag from category",
		Tags:          []string{"Categories"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveCategoryTag)
}

// === DTOs ===

// CategoryListResponse lists categories.
type CategoryListResponse struct {
	Categories []domain.Category `json:"categories"`
}

// ListCategoriesOutput wraps CategoryListResponse.
type ListCategoriesOutput struct {
	Body CategoryListResponse
}

// CreateCategoryRequest creates a category.
type CreateCategoryRequest struct {
	Name        string  `json:"name,omitempty" validate:"required,notblank,max=100" doc:"Display name"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsPrivate   bool    `json:"is_private,omitempty" doc:"Hide member atoms until one of the category's tags is selected"`
}

// CreateCategoryInput wraps CreateCategoryRequest.
type CreateCategoryInput struct {
	Body CreateCategoryRequest
}

// CategoryOutput returns one category.
type CategoryOutput struct {
	Body domain.Category
}

// CategoryIDInput addresses one category.
type CategoryIDInput struct {
	ID int64 `path:"id" doc:"Category ID"`
}

// UpdateCategoryRequest is a partial category update.
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}

// UpdateCategoryInput wraps UpdateCategoryRequest.
type UpdateCategoryInput struct {
	ID   int64 `path:"id" doc:"Category ID"`
	Body UpdateCategoryRequest
}

// TagLinkRequest names a tag to link.
type TagLinkRequest struct {
	TagID int64 `json:"tagId,omitempty" validate:"required,gt=0" doc:"Tag ID"`
}

// CategoryTagInput links a tag to a category.
type CategoryTagInput struct {
	ID   int64 `path:"id" doc:"Category ID"`
	Body TagLinkRequest
}

// RemoveCategoryTagInput addresses one category/tag link.
type RemoveCategoryTagInput struct {
	ID    int64 `path:"id" doc:"Category ID"`
	TagID int64 `path:"tagId" doc:"Tag ID"`
}

// === Handlers ===

func (s *Server) handleListCategories(_ context.Context, _ *struct{}) (*ListCategoriesOutput, error) {
	return &ListCategoriesOutput{Body: CategoryListResponse{Categories: s.store.Categories()}}, nil
}

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	c, err := s.store.AddCategory(ctx, domain.Category{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		IsPrivate:   input.Body.IsPrivate,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleGetCategory(_ context.Context, input *CategoryIDInput) (*CategoryOutput, error) {
	c, ok := s.store.Category(input.ID)
	if !ok {
		return nil, notFound("category")
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleUpdateCategory(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if _, ok := s.store.Category(input.ID); !ok {
		return nil, notFound("category")
	}
	patch := domain.CategoryPatch{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		IsPrivate:   input.Body.IsPrivate,
	}
	if err := s.store.UpdateCategory(ctx, input.ID, patch); err != nil {
		return nil, toAPIError(err)
	}
	c, ok := s.store.Category(input.ID)
	if !ok {
		return nil, notFound("category")
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleDeleteCategory(ctx context.Context, input *CategoryIDInput) (*struct{}, error) {
	if _, ok := s.store.Category(input.ID); !ok {
		return nil, notFound("category")
	}
	if err := s.store.DeleteCategory(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}

func (s *Server) handleMergeCategory(ctx context.Context, input *MergeInput) (*MergeOutput, error) {
	return s.merge(ctx, input, func(t *service.TaxonomyService) mergeFunc { return t.MergeCategories })
}

func (s *Server) handleGetCategoryTags(_ context.Context, input *CategoryIDInput) (*ListTagsOutput, error) {
	if _, ok := s.store.Category(input.ID); !ok {
		return nil, notFound("category")
	}
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.CategoryTags(input.ID)}}, nil
}

func (s *Server) handleAddCategoryTag(ctx context.Context, input *CategoryTagInput) (*ListTagsOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if err := s.store.AddCategoryTag(ctx, input.ID, input.Body.TagID); err != nil {
		return nil, toAPIError(err)
	}
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.CategoryTags(input.ID)}}, nil
}

func (s *Server) handleRemoveCategoryTag(ctx context.Context, input *RemoveCategoryTagInput) (*struct{}, error) {
	if err := s.store.RemoveCategoryTag(ctx, input.ID, input.TagID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}
