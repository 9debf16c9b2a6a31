package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

func (s *Server) registerAtomRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAtoms",
		Method:      http.MethodGet,
		Path:        "/api/v1/atoms",
		Summary:     "List atoms",
		Description: "Returns atoms newest first, optionally narrowed by content type and tag",
		Tags:        []string{"Atoms"},
	}, s.handleListAtoms)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createAtom",
		Method:        http.MethodPost,
		Path:          "/api/v1/atoms",
		Summary:       "Create atom",
		Description:   "Creates an atom and links it to the given creators",
		Tags:          []string{"Atoms"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateAtom)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeletingAtoms",
		Method:      http.MethodGet,
		Path:        "/api/v1/atoms/deleting",
		Summary:     "List atoms being deleted",
		Description: "Returns the IDs of atoms whose deletion is in flight",
		Tags:        []string{"Atoms"},
	}, s.handleListDeleting)

	huma.Register(s.api, huma.Operation{
		OperationID: "hideAtoms",
		Method:      http.MethodPost,
		Path:        "/api/v1/atoms/hide",
		Summary:     "Hide atoms",
		Tags:        []string{"Atoms"},
	}, s.handleHideAtoms)

	huma.Register(s.api, huma.Operation{
		OperationID: "unhideAtoms",
		Method:      http.MethodPost,
		Path:        "/api/v1/atoms/unhide",
		Summary:     "Unhide atoms",
		Tags:        []string{"Atoms"},
	}, s.handleUnhideAtoms)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAtom",
		Method:      http.MethodGet,
		Path:        "/api/v1/atoms/{id}",
		Summary:     "Get atom",
		Tags:        []string{"Atoms"},
	}, s.handleGetAtom)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAtom",
		Method:      http.MethodPatch,
		Path:        "/api/v1/atoms/{id}",
		Summary:     "Update atom",
		Description: "Applies a partial update. Absent fields are left unchanged.",
		Tags:        []string{"Atoms"},
	}, s.handleUpdateAtom)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteAtom",
		Method:        http.MethodDelete,
		Path:          "/api/v1/atoms/{id}",
		Summary:       "Delete atom",
		Tags:          []string{"Atoms"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteAtom)

	huma.Register(s.api, huma.Operation{
		OperationID: "linkAtomCreators",
		Method:      http.MethodPost,
		Path:        "/api/v1/atoms/{id}/creators",
		Summary:     "Link creators",
		Description: "Links creators to the atom. Existing links are kept.",
		Tags:        []string{"Atoms"},
	}, s.handleLinkAtomCreators)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAtomChildren",
		Method:      http.MethodGet,
		Path:        "/api/v1/atoms/{id}/children",
		Summary:     "List idea children",
		Description: "Fetches the child atom IDs of an idea",
		Tags:        []string{"Atoms"},
	}, s.handleGetChildren)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeAtomChild",
		Method:        http.MethodDelete,
		Path:          "/api/v1/atoms/{id}/children/{childId}",
		Summary:       "Remove idea child",
		Tags:          []string{"Atoms"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveChild)
}

// === DTOs ===

// ListAtomsInput contains parameters for listing atoms.
type ListAtomsInput struct {
	ContentType string `query:"content_type" doc:"Only atoms of this content type"`
	Tag         string `query:"tag" doc:"Only atoms carrying this tag"`
}

// AtomListResponse is a list of atoms.
type AtomListResponse struct {
	Atoms []domain.Atom `json:"atoms"`
	Total int           `json:"total"`
}

// ListAtomsOutput wraps the atom list.
type ListAtomsOutput struct {
	Body AtomListResponse
}

// CreateAtomRequest creates an atom with optional creator links.
type CreateAtomRequest struct {
	Title           string         `json:"title,omitempty" validate:"max=500" doc:"Atom title"`
	Description     *string        `json:"description,omitempty" doc:"Description, may contain HTML"`
	ContentType     string         `json:"content_type,omitempty" validate:"required,notblank" doc:"Content type"`
	MediaSourceLink *string        `json:"media_source_link,omitempty" doc:"URL of the media"`
	Link            *string        `json:"link,omitempty" doc:"Source page"`
	CreatorName     *string        `json:"creator_name,omitempty" doc:"Display creator name"`
	Tags            []string       `json:"tags,omitempty" doc:"Tag names"`
	Metadata        map[string]any `json:"metadata,omitempty" doc:"Free-form metadata"`
	CreatorIDs      []int64        `json:"creator_ids,omitempty" validate:"dive,gt=0" doc:"Creators to link"`
}

// CreateAtomInput wraps the create request.
type CreateAtomInput struct {
	Body CreateAtomRequest
}

// AtomOutput returns a single atom.
type AtomOutput struct {
	Body domain.Atom
}

// AtomIDInput addresses one atom.
type AtomIDInput struct {
	ID int64 `path:"id" doc:"Atom ID"`
}

// UpdateAtomRequest is a partial atom update.
type UpdateAtomRequest struct {
	Title           *string        `json:"title,omitempty" validate:"omitempty,max=500"`
	Description     *string        `json:"description,omitempty"`
	ContentType     *string        `json:"content_type,omitempty" validate:"omitempty,notblank"`
	MediaSourceLink *string        `json:"media_source_link,omitempty"`
	Link            *string        `json:"link,omitempty"`
	CreatorName     *string        `json:"creator_name,omitempty"`
	Tags            *[]string      `json:"tags,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	FlagForDeletion *bool          `json:"flag_for_deletion,omitempty"`
	Hidden          *bool          `json:"hidden,omitempty"`
}

// UpdateAtomInput wraps the update request.
type UpdateAtomInput struct {
	ID   int64 `path:"id" doc:"Atom ID"`
	Body UpdateAtomRequest
}

// IDsInput wraps a batch of atom ids.
type IDsInput struct {
	Body IDsRequest
}

// DeletingResponse lists atoms being deleted.
type DeletingResponse struct {
	IDs []int64 `json:"ids"`
}

// DeletingOutput wraps DeletingResponse.
type DeletingOutput struct {
	Body DeletingResponse
}

// LinkCreatorsRequest lists creators to link.
type LinkCreatorsRequest struct {
	CreatorIDs []int64 `json:"creator_ids" validate:"required,min=1,dive,gt=0" doc:"Creator IDs"`
}

// LinkCreatorsInput wraps LinkCreatorsRequest.
type LinkCreatorsInput struct {
	ID   int64 `path:"id" doc:"Atom ID"`
	Body LinkCreatorsRequest
}

// ChildrenResponse lists the children of an idea.
type ChildrenResponse struct {
	IdeaID   int64   `json:"idea_id"`
	ChildIDs []int64 `json:"child_ids"`
}

// ChildrenOutput wraps ChildrenResponse.
type ChildrenOutput struct {
	Body ChildrenResponse
}

// RemoveChildInput addresses one parent/child pair.
type RemoveChildInput struct {
	ID      int64 `path:"id" doc:"Idea atom ID"`
	ChildID int64 `path:"childId" doc:"Child atom ID"`
}

// === Handlers ===

func (s *Server) handleListAtoms(_ context.Context, input *ListAtomsInput) (*ListAtomsOutput, error) {
	contentType := normalize.Name(input.ContentType)
	tag := normalize.Tag(input.Tag)

	atoms := s.store.Atoms()
	out := atoms[:0]
	for _, a := range atoms {
		if contentType != "" && a.ContentType != contentType {
			continue
		}
		if tag != "" && !a.HasTag(tag) {
			continue
		}
		out = append(out, a)
	}
	return &ListAtomsOutput{Body: AtomListResponse{Atoms: out, Total: len(out)}}, nil
}

func (s *Server) handleCreateAtom(ctx context.Context, input *CreateAtomInput) (*AtomOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	req := input.Body
	atom := domain.Atom{
		Title:           req.Title,
		Description:     req.Description,
		ContentType:     req.ContentType,
		MediaSourceLink: req.MediaSourceLink,
		Link:            req.Link,
		CreatorName:     req.CreatorName,
		Tags:            req.Tags,
		Metadata:        req.Metadata,
	}

	created, err := s.store.AddAtomWithCreators(ctx, atom, req.CreatorIDs)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &AtomOutput{Body: created}, nil
}

func (s *Server) handleListDeleting(_ context.Context, _ *struct{}) (*DeletingOutput, error) {
	ids := s.store.Deleting()
	if ids == nil {
		ids = []int64{}
	}
	return &DeletingOutput{Body: DeletingResponse{IDs: ids}}, nil
}

func (s *Server) handleHideAtoms(ctx context.Context, input *IDsInput) (*MessageOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if err := s.store.HideAtoms(ctx, input.Body.IDs); err != nil {
		return nil, toAPIError(err)
	}
	return &MessageOutput{Body: MessageResponse{Message: "atoms hidden"}}, nil
}

func (s *Server) handleUnhideAtoms(ctx context.Context, input *IDsInput) (*MessageOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if err := s.store.UnhideAtoms(ctx, input.Body.IDs); err != nil {
		return nil, toAPIError(err)
	}
	return &MessageOutput{Body: MessageResponse{Message: "atoms unhidden"}}, nil
}

func (s *Server) handleGetAtom(_ context.Context, input *AtomIDInput) (*AtomOutput, error) {
	atom, ok := s.store.Atom(input.ID)
	if !ok {
		return nil, notFound("atom")
	}
	return &AtomOutput{Body: atom}, nil
}

func (s *Server) handleUpdateAtom(ctx context.Context, input *UpdateAtomInput) (*AtomOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if _, ok := s.store.Atom(input.ID); !ok {
		return nil, notFound("atom")
	}

	req := input.Body
	patch := domain.AtomPatch{
		Title:           req.Title,
		Description:     req.Description,
		ContentType:     req.ContentType,
		MediaSourceLink: req.MediaSourceLink,
		Link:            req.Link,
		CreatorName:     req.CreatorName,
		Tags:            req.Tags,
		Metadata:        req.Metadata,
		FlagForDeletion: req.FlagForDeletion,
		Hidden:          req.Hidden,
	}
	if err := s.store.UpdateAtom(ctx, input.ID, patch); err != nil {
		return nil, toAPIError(err)
	}

	atom, ok := s.store.Atom(input.ID)
	if !ok {
		return nil, notFound("atom")
	}
	return &AtomOutput{Body: atom}, nil
}

func (s *Server) handleDeleteAtom(ctx context.Context, input *AtomIDInput) (*struct{}, error) {
	if _, ok := s.store.Atom(input.ID); !ok {
		return nil, notFound("atom")
	}
	if err := s.store.DeleteAtom(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}

func (s *Server) handleLinkAtomCreators(ctx context.Context, input *LinkCreatorsInput) (*MessageOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if _, ok := s.store.Atom(input.ID); !ok {
		return nil, notFound("atom")
	}
	if err := s.store.LinkAtomCreators(ctx, input.ID, input.Body.CreatorIDs); err != nil {
		return nil, toAPIError(err)
	}
	return &MessageOutput{Body: MessageResponse{Message: "creators linked"}}, nil
}

func (s *Server) handleGetChildren(ctx context.Context, input *AtomIDInput) (*ChildrenOutput, error) {
	atom, ok := s.store.Atom(input.ID)
	if !ok {
		return nil, notFound("atom")
	}
	if !atom.IsIdea() {
		return &ChildrenOutput{Body: ChildrenResponse{IdeaID: input.ID, ChildIDs: []int64{}}}, nil
	}

	children, err := s.store.FetchIdeaChildren(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(domainerrors.Remote("fetch idea children", err))
	}
	if children == nil {
		children = []int64{}
	}
	return &ChildrenOutput{Body: ChildrenResponse{IdeaID: input.ID, ChildIDs: children}}, nil
}

func (s *Server) handleRemoveChild(ctx context.Context, input *RemoveChildInput) (*struct{}, error) {
	if err := s.store.RemoveChildAtom(ctx, input.ID, input.ChildID); err != nil {
		return nil, toAPIError(err)
	}
	return nil, nil
}
