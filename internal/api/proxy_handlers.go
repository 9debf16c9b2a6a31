package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

// registerProxyRoutes registers the write-proxy endpoints used by capture
// clients such as the browser extension. They live outside /api/v1 and keep
// their historical paths.
func (s *Server) registerProxyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "proxyCreateAtom",
		Method:        http.MethodPost,
		Path:          "/atoms",
		Summary:       "Capture atom",
		Description:   "Creates an atom from a captured media source. media_source_link is required.",
		Tags:          []string{"Proxy"},
		DefaultStatus: http.StatusCreated,
	}, s.handleProxyCreateAtom)

	huma.Register(s.api, huma.Operation{
		OperationID: "proxyCreateAtomRelationship",
		Method:      http.MethodPost,
		Path:        "/atom-relationships",
		Summary:     "Link child atom",
		Description: "Adds a child atom to an idea. Re-adding an existing pair succeeds without change.",
		Tags:        []string{"Proxy"},
	}, s.handleProxyCreateRelationship)
}

// === DTOs ===

// CaptureAtomRequest is the capture payload.
type CaptureAtomRequest struct {
	Title           string         `json:"title,omitempty" validate:"max=500" doc:"Atom title"`
	Description     *string        `json:"description,omitempty" doc:"Description, may contain HTML"`
	MediaSourceLink string         `json:"media_source_link,omitempty" validate:"required,notblank" doc:"URL of the captured media"`
	Link            *string        `json:"link,omitempty" doc:"Page the media was found on"`
	ContentType     string         `json:"content_type,omitempty" validate:"required,notblank" doc:"Content type, e.g. image or video"`
	Tags            []string       `json:"tags,omitempty" doc:"Tag names; normalized on write"`
	CreatorName     *string        `json:"creator_name,omitempty" doc:"Comma-separated creator names"`
	Metadata        map[string]any `json:"metadata,omitempty" doc:"Free-form metadata"`
}

// CaptureAtomInput wraps the capture request.
type CaptureAtomInput struct {
	Body CaptureAtomRequest
}

// AtomEnvelope wraps a single atom.
type AtomEnvelope struct {
	Atom domain.Atom `json:"atom"`
}

// CaptureAtomOutput returns the created atom.
type CaptureAtomOutput struct {
	Body AtomEnvelope
}

// RelationshipRequest links a child atom to a parent idea.
type RelationshipRequest struct {
	ParentAtomID int64 `json:"parentAtomId,omitempty" validate:"required,gt=0" doc:"Idea atom ID"`
	ChildAtomID  int64 `json:"childAtomId,omitempty" validate:"required,gt=0,nefield=ParentAtomID" doc:"Child atom ID"`
}

// RelationshipInput wraps the relationship request.
type RelationshipInput struct {
	Body RelationshipRequest
}

// SuccessResponse acknowledges an idempotent write.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SuccessOutput wraps a SuccessResponse.
type SuccessOutput struct {
	Body SuccessResponse
}

// === Handlers ===

func (s *Server) handleProxyCreateAtom(ctx context.Context, input *CaptureAtomInput) (*CaptureAtomOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	req := input.Body

	link := strings.TrimSpace(req.MediaSourceLink)
	atom := domain.Atom{
		Title:           req.Title,
		Description:     req.Description,
		ContentType:     req.ContentType,
		MediaSourceLink: &link,
		Link:            req.Link,
		CreatorName:     req.CreatorName,
		Tags:            req.Tags,
		Metadata:        req.Metadata,
	}

	created, err := s.store.AddAtomWithCreators(ctx, atom, s.knownCreatorIDs(req.CreatorName))
	if err != nil {
		return nil, toAPIError(err)
	}
	return &CaptureAtomOutput{Body: AtomEnvelope{Atom: created}}, nil
}

// knownCreatorIDs resolves the comma-joined creator names against existing
// creators. Unknown names stay in creator_name only.
func (s *Server) knownCreatorIDs(raw *string) []int64 {
	if raw == nil {
		return nil
	}
	names := normalize.SplitCreators(*raw)
	if len(names) == 0 {
		return nil
	}

	byName := make(map[string]int64)
	for _, c := range s.store.Creators() {
		byName[strings.ToLower(c.Name)] = c.ID
	}
	var ids []int64
	for _, n := range names {
		if id, ok := byName[strings.ToLower(normalize.Name(n))]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) handleProxyCreateRelationship(ctx context.Context, input *RelationshipInput) (*SuccessOutput, error) {
	if err := s.validate(&input.Body); err != nil {
		return nil, err
	}
	if err := s.store.AddChildAtom(ctx, input.Body.ParentAtomID, input.Body.ChildAtomID); err != nil {
		return nil, toAPIError(err)
	}
	return &SuccessOutput{Body: SuccessResponse{Success: true}}, nil
}
