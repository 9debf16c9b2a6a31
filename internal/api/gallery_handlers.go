package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/filter"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

func (s *Server) registerGalleryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getGallery",
		Method:      http.MethodGet,
		Path:        "/api/v1/gallery",
		Summary:     "Gallery view",
		Description: "Returns the revealed prefix of the filtered gallery. Pass view to continue paging; " +
			"changing any filter resets the view to its first page.",
		Tags: []string{"Gallery"},
	}, s.handleGallery)
}

// GalleryInput holds the gallery predicates.
type GalleryInput struct {
	View          string   `query:"view" doc:"View ID returned by a previous call"`
	Search        string   `query:"search" doc:"Matches title, description, creator, tags and content type"`
	Types         []string `query:"type" doc:"Content types, comma separated"`
	Creators      []string `query:"creator" doc:"Creator names, comma separated"`
	FavoritesOnly bool     `query:"favorites" doc:"Only atoms by favorite creators"`
	Tags          []string `query:"tag" doc:"Selected tags, comma separated; accepts flagged and no-tag"`
	UseSelection  bool     `query:"use_selection" doc:"Use the server-side tag selection instead of tag"`
	Idea          int64    `query:"idea" doc:"Scope to the children of this idea"`
	HideHidden    bool     `query:"hide_hidden" doc:"Drop hidden atoms outside an idea scope"`
	More          bool     `query:"more" doc:"Reveal one more page"`
}

// GalleryOutput wraps the view response.
type GalleryOutput struct {
	Body service.ViewResponse
}

func (s *Server) handleGallery(ctx context.Context, input *GalleryInput) (*GalleryOutput, error) {
	if s.services.Gallery == nil {
		return nil, unavailable("gallery")
	}

	p := filter.Predicates{
		Search:        input.Search,
		ContentTypes:  input.Types,
		Creators:      input.Creators,
		FavoritesOnly: input.FavoritesOnly,
		SelectedTags:  input.Tags,
		HideHidden:    input.HideHidden,
	}
	if input.Idea > 0 {
		idea := input.Idea
		p.IdeaID = &idea
	}

	res, err := s.services.Gallery.View(ctx, service.ViewRequest{
		ViewID:       input.View,
		Predicates:   p,
		UseSelection: input.UseSelection,
		More:         input.More,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &GalleryOutput{Body: *res}, nil
}
