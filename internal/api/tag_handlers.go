package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns all tags by name",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Creates a tag. Creating an existing name returns the existing tag.",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "recountTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/recount",
		Summary:     "Recount tags",
		Description: "Recomputes every tag's usage count from the atoms",
		Tags:        []string{"Tags"},
	}, s.handleRecountTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Update tag",
		Description: "Updates a tag. A rename rewrites every atom carrying the old name.",
		Tags:        []string{"Tags"},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/{id}",
		Summary:       "Delete tag",
		Description:   "Deletes a tag and strips it from every atom",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "mergeTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{id}/merge",
		Summary:     "Merge tag",
		Description: "Folds the tag into the target tag. Returns 202 when a partial merge was queued for retry.",
		Tags:        []string{"Tags"},
	}, s.handleMergeTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSelection",
		Method:      http.MethodGet,
		Path:        "/api/v1/selection",
		Summary:     "Get tag selection",
		Tags:        []string{"Selection"},
	}, s.handleGetSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleSelection",
		Method:      http.MethodPost,
		Path:        "/api/v1/selection/toggle",
		Summary:     "Toggle tag selection",
		Description: "Selects or deselects a tag. Accepts the pseudo-tags flagged and no-tag.",
		Tags:        []string{"Selection"},
	}, s.handleToggleSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearSelection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/selection",
		Summary:     "Clear tag selection",
		Tags:        []string{"Selection"},
	}, s.handleClearSelection)
}

// === DTOs ===

// TagListResponse lists tags.
type TagListResponse struct {
	Tags []domain.Tag `json:"tags"`
}

// ListTagsOutput wraps TagListResponse.
type ListTagsOutput struct {
	Body TagListResponse
}

// CreateTagRequest creates a tag.
type CreateTagRequest struct {
	Name      string `json:"name,omitempty" validate:"required,tagname,max=100" doc:"Tag name; normalized on write"`
	IsPrivate bool   `json:"is_private,omitempty" doc:"Hide atoms with this tag until selected"`
}

// CreateTagInput wraps CreateTagRequest.
type CreateTagInput struct {
	Body CreateTagRequest
}

// TagOutput returns one tag.
type TagOutput struct {
	Body domain.Tag
}

// TagIDInput addresses one tag.
type TagIDInput struct {
	ID int64 `path:"id" doc:"Tag ID"`
}

// UpdateTagRequest is a partial tag update.
type UpdateTagRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,tagname,max=100"`
	IsPrivate  *bool   `json:"is_private,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateTagInput wraps UpdateTagRequest.
type UpdateTagInput struct {
	ID   int64 `path:"id" doc:"Tag ID"`
	Body UpdateTagRequest
}

// MergeRequest names the merge target.
type MergeRequest struct {
	TargetID int64 `json:"targetId,omitempty" validate:"required,gt=0" doc:"ID the source is merged into"`
}

// MergeInput wraps MergeRequest.
type MergeInput struct {
	ID   int64 `path:"id" doc:"Source ID"`
	Body MergeRequest
}

// MergeOutput reports the merge outcome.
type MergeOutput struct {
	Status int
	Body   service.MergeResult
}

// SelectionResponse is the current tag selection.
type SelectionResponse struct {
	Tags []string `json:"tags"`
}

// SelectionOutput wraps SelectionResponse.
type SelectionOutput struct {
	Body SelectionResponse
}

// ToggleRequest names the tag to toggle.
type ToggleRequest struct {
	Name string `json:"name,omitempty" validate:"required,tagname" doc:"Tag or pseudo-tag"`
}

// ToggleInput wraps ToggleRequest.
type ToggleInput struct {
	Body ToggleRequest
}

// ToggleResponse reports the toggle result.
type ToggleResponse struct {
	Selected bool     `json:"selected"`
	Tags     []string `json:"tags"`
}

// ToggleOutput wraps ToggleResponse.
type ToggleOutput struct {
	Body ToggleResponse
}

// === Handlers ===

func (s *Server) handleListTags(_ context.Context, _ *struct{}) (*ListTagsOutput, error) {
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.Tags()}}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	tag, err := s.store.AddTag(ctx, domain.Tag{Name: input.Body.Name, IsPrivate: input.Body.IsPrivate})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &TagOutput{Body: tag}, nil
}

func (s *Server) handleRecountTags(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	if err := s.store.RecountTags(ctx); err != nil {
		return nil, toAPIError(err)
	}
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.Tags()}}, nil
}

func (s *Server) handleGetTag(_ context.Context, input *TagIDInput) (*TagOutput, error) {
	tag, ok := s.store.Tag(input.ID)
	if !ok {
		return nil, notFound("tag")
	}
	return &TagOutput{Body: tag}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	patch := domain.TagPatch{
		Name:       input.Body.Name,
		IsPrivate:  input.Body.IsPrivate,
		CategoryID: input.Body.CategoryID,
	}
	if err := s.store.UpdateTag(ctx, input.ID, patch); err != nil {
		return nil, toAPIError(err)
	}
	tag, ok := s.store.Tag(input.ID)
	if !ok {
		return nil, notFound("tag")
	}
	return &TagOutput{Body: tag}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagIDInput) (*struct{}, error) {
	if _, ok := s.store.Tag(input.ID); !ok {
		return nil, notFound("tag")
	}
	if err := s.store.DeleteTag(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}

func (s *Server) handleMergeTag(ctx context.Context, input *MergeInput) (*MergeOutput, error) {
	return s.merge(ctx, input, func(t *service.TaxonomyService) mergeFunc { return t.MergeTags })
}

func (s *Server) handleGetSelection(_ context.Context, _ *struct{}) (*SelectionOutput, error) {
	return &SelectionOutput{Body: SelectionResponse{Tags: s.store.SelectedTags()}}, nil
}

func (s *Server) handleToggleSelection(_ context.Context, input *ToggleInput) (*ToggleOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	selected := s.store.ToggleTag(input.Body.Name)
	return &ToggleOutput{Body: ToggleResponse{Selected: selected, Tags: s.store.SelectedTags()}}, nil
}

func (s *Server) handleClearSelection(_ context.Context, _ *struct{}) (*SelectionOutput, error) {
	s.store.ClearSelectedTags()
	return &SelectionOutput{Body: SelectionResponse{Tags: []string{}}}, nil
}

type mergeFunc func(ctx context.Context, sourceID, targetID int64) (*service.MergeResult, error)

// merge runs a taxonomy merge and maps a queued retry to 202 Accepted.
func (s *Server) merge(ctx context.Context, input *MergeInput, pick func(*service.TaxonomyService) mergeFunc) (*MergeOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if s.services.Taxonomy == nil {
		return nil, unavailable("merging")
	}

	res, err := pick(s.services.Taxonomy)(ctx, input.ID, input.Body.TargetID)
	if err != nil {
		return nil, toAPIError(err)
	}
	status := http.StatusOK
	if res.Status == service.MergeRetrying {
		status = http.StatusAccepted
	}
	return &MergeOutput{Status: status, Body: *res}, nil
}
