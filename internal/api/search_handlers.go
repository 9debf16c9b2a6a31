package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/atomshelf/atomshelf-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchAtoms",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search atoms",
		Description: "Full-text search over titles, descriptions, creators and tags. Private atoms stay hidden unless one of their tags is given.",
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild search index",
		Tags:        []string{"Search"},
	}, s.handleReindex)
}

// SearchInput holds the search parameters.
type SearchInput struct {
	Query         string   `query:"q" doc:"Search text"`
	Types         []string `query:"type" doc:"Content types, comma separated"`
	Tags          []string `query:"tag" doc:"Required tags, comma separated"`
	IncludeHidden bool     `query:"include_hidden" doc:"Include hidden atoms"`
	Limit         int      `query:"limit" minimum:"0" maximum:"100" default:"20"`
	Offset        int      `query:"offset" minimum:"0"`
	Sort          string   `query:"sort" enum:"relevance,title,recent" default:"relevance"`
	Order         string   `query:"order" enum:"asc,desc" default:"desc"`
	Facets        bool     `query:"facets" doc:"Include facet counts"`
}

// SearchOutput wraps the search result.
type SearchOutput struct {
	Body search.Result
}

// ReindexResponse reports the rebuilt index size.
type ReindexResponse struct {
	Indexed int `json:"indexed"`
}

// ReindexOutput wraps ReindexResponse.
type ReindexOutput struct {
	Body ReindexResponse
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.services.Search == nil {
		return nil, unavailable("search")
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.ContentTypes = input.Types
	params.Tags = input.Tags
	params.IncludeHidden = input.IncludeHidden
	params.Limit = input.Limit
	params.Offset = input.Offset
	params.SortBy = input.Sort
	params.SortOrder = input.Order
	params.IncludeFacets = input.Facets

	res, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &SearchOutput{Body: *res}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if s.services.Search == nil {
		return nil, unavailable("search")
	}
	n, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}
