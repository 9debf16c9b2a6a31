package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

func (s *Server) registerCreatorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCreators",
		Method:      http.MethodGet,
		Path:        "/api/v1/creators",
		Summary:     "List creators",
		Tags:        []string{"Creators"},
	}, s.handleListCreators)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCreator",
		Method:        http.MethodPost,
		Path:          "/api/v1/creators",
		Summary:       "Create creator",
		Tags:          []string{"Creators"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCreator)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCreator",
		Method:      http.MethodGet,
		Path:        "/api/v1/creators/{id}",
		Summary:     "Get creator",
		Tags:        []string{"Creators"},
	}, s.handleGetCreator)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCreator",
		Method:      http.MethodPatch,
		Path:        "/api/v1/creators/{id}",
		Summary:     "Update creator",
		Tags:        []string{"Creators"},
	}, s.handleUpdateCreator)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCreator",
		Method:        http.MethodDelete,
		Path:          "/api/v1/creators/{id}",
		Summary:       "Delete creator",
		Tags:          []string{"Creators"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCreator)

	huma.Register(s.api, huma.Operation{
		OperationID: "mergeCreator",
		Method:      http.MethodPost,
		Path:        "/api/v1/creators/{id}/merge",
		Summary:     "Merge creator",
		Description: "Rewrites atoms credited to the creator onto the target and deletes it. Returns 202 when a partial merge was queued for retry.",
		Tags:        []string{"Creators"},
	}, s.handleMergeCreator)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCreatorTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/creators/{id}/tags",
		Summary:     "List creator tags",
		Tags:        []string{"Creators"},
	}, s.handleGetCreatorTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCreatorTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/creators/{id}/tags",
		Summary:     "Add tag to creator",
		Tags:        []string{"Creators"},
	}, s.handleAddCreatorTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeCreatorTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/creators/{id}/tags/{tagId}",
		Summary:       "Remove tag from creator",
		Tags:          []string{"Creators"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveCreatorTag)
}

// === DTOs ===

// ListCreatorsInput contains parameters for listing creators.
type ListCreatorsInput struct {
	Favorites bool `query:"favorites" doc:"Only favorite creators"`
}

// CreatorListResponse lists creators.
type CreatorListResponse struct {
	Creators []domain.Creator `json:"creators"`
}

// ListCreatorsOutput wraps CreatorListResponse.
type ListCreatorsOutput struct {
	Body CreatorListResponse
}

// CreateCreatorRequest creates a creator.
type CreateCreatorRequest struct {
	Name       string  `json:"name,omitempty" validate:"required,notblank,max=200" doc:"Display name"`
	Link1      *string `json:"link_1,omitempty" validate:"omitempty,url"`
	Link2      *string `json:"link_2,omitempty" validate:"omitempty,url"`
	Link3      *string `json:"link_3,omitempty" validate:"omitempty,url"`
	IsFavorite bool    `json:"is_favorite,omitempty"`
}

// CreateCreatorInput wraps CreateCreatorRequest.
type CreateCreatorInput struct {
	Body CreateCreatorRequest
}

// CreatorOutput returns one creator.
type CreatorOutput struct {
	Body domain.Creator
}

// CreatorIDInput addresses one creator.
type CreatorIDInput struct {
	ID int64 `path:"id" doc:"Creator ID"`
}

// UpdateCreatorRequest is a partial creator update.
type UpdateCreatorRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	Link1      *string `json:"link_1,omitempty" validate:"omitempty,url"`
	Link2      *string `json:"link_2,omitempty" validate:"omitempty,url"`
	Link3      *string `json:"link_3,omitempty" validate:"omitempty,url"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
}

// UpdateCreatorInput wraps UpdateCreatorRequest.
type UpdateCreatorInput struct {
	ID   int64 `path:"id" doc:"Creator ID"`
	Body UpdateCreatorRequest
}

// CreatorTagInput links a tag to a creator.
type CreatorTagInput struct {
	ID   int64 `path:"id" doc:"Creator ID"`
	Body TagLinkRequest
}

// RemoveCreatorTagInput addresses one creator/tag link.
type RemoveCreatorTagInput struct {
	ID    int64 `path:"id" doc:"Creator ID"`
	TagID int64 `path:"tagId" doc:"Tag ID"`
}

// === Handlers ===

func (s *Server) handleListCreators(_ context.Context, input *ListCreatorsInput) (*ListCreatorsOutput, error) {
	var creators []domain.Creator
	if input.Favorites {
		creators = s.store.FavoriteCreators()
	} else {
		creators = s.store.Creators()
	}
	if creators == nil {
		creators = []domain.Creator{}
	}
	return &ListCreatorsOutput{Body: CreatorListResponse{Creators: creators}}, nil
}

func (s *Server) handleCreateCreator(ctx context.Context, input *CreateCreatorInput) (*CreatorOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	req := input.Body
	c, err := s.store.AddCreator(ctx, domain.Creator{
		Name:       req.Name,
		Link1:      req.Link1,
		Link2:      req.Link2,
		Link3:      req.Link3,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &CreatorOutput{Body: c}, nil
}

func (s *Server) handleGetCreator(_ context.Context, input *CreatorIDInput) (*CreatorOutput, error) {
	c, ok := s.store.Creator(input.ID)
	if !ok {
		return nil, notFound("creator")
	}
	return &CreatorOutput{Body: c}, nil
}

func (s *Server) handleUpdateCreator(ctx context.Context, input *UpdateCreatorInput) (*CreatorOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if _, ok := s.store.Creator(input.ID); !ok {
		return nil, notFound("creator")
	}
	req := input.Body
	patch := domain.CreatorPatch{
		Name:       req.Name,
		Link1:      req.Link1,
		Link2:      req.Link2,
		Link3:      req.Link3,
		IsFavorite: req.IsFavorite,
	}
	if err := s.store.UpdateCreator(ctx, input.ID, patch); err != nil {
		return nil, toAPIError(err)
	}
	c, ok := s.store.Creator(input.ID)
	if !ok {
		return nil, notFound("creator")
	}
	return &CreatorOutput{Body: c}, nil
}

func (s *Server) handleDeleteCreator(ctx context.Context, input *CreatorIDInput) (*struct{}, error) {
	if _, ok := s.store.Creator(input.ID); !ok {
		return nil, notFound("creator")
	}
	if err := s.store.DeleteCreator(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}

func (s *Server) handleMergeCreator(ctx context.Context, input *MergeInput) (*MergeOutput, error) {
	return s.merge(ctx, input, func(t *service.TaxonomyService) mergeFunc { return t.MergeCreators })
}

func (s *Server) handleGetCreatorTags(_ context.Context, input *CreatorIDInput) (*ListTagsOutput, error) {
	if _, ok := s.store.Creator(input.ID); !ok {
		return nil, notFound("creator")
	}
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.CreatorTags(input.ID)}}, nil
}

func (s *Server) handleAddCreatorTag(ctx context.Context, input *CreatorTagInput) (*ListTagsOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if err := s.store.AddCreatorTag(ctx, input.ID, input.Body.TagID); err != nil {
		return nil, toAPIError(err)
	}
	return &ListTagsOutput{Body: TagListResponse{Tags: s.store.CreatorTags(input.ID)}}, nil
}

func (s *Server) handleRemoveCreatorTag(ctx context.Context, input *RemoveCreatorTagInput) (*struct{}, error) {
	if err := s.store.RemoveCreatorTag(ctx, input.ID, input.TagID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}
