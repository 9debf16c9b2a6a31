package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

// Sort keys.
const (
	SortRelevance = "relevance"
	SortTitle     = "title"
	SortRecent    = "recent"
)

// Params configures a search.
type Params struct {
	Query         string
	ContentTypes  []string // OR across types; empty means all
	Tags          []string // AND across tags
	IncludeHidden bool

	Limit  int
	Offset int

	SortBy    string // relevance, title, recent
	SortOrder string // asc, desc

	IncludeFacets bool
	Highlight     bool
}

// DefaultParams returns the parameters used when a caller sets none.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		SortBy:        SortRelevance,
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// Result is one page of search hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets"`
}

// Hit is a matching atom.
type Hit struct {
	ID          int64             `json:"id"`
	Score       float64           `json:"score"`
	Title       string            `json:"title"`
	ContentType string            `json:"content_type"`
	Creators    []string          `json:"creators,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// Facets holds counts over the whole result set.
type Facets struct {
	ContentTypes []FacetCount `json:"content_types,omitempty"`
	Tags         []FacetCount `json:"tags,omitempty"`
}

// FacetCount is one facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs a query against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)
	if params.IncludeFacets {
		req.AddFacet("content_type", bleve.NewFacetRequest("content_type", 20))
		req.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("creators")
	}
	req.Fields = []string{"title", "content_type", "creators", "tags"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		atomID, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			s.logger.Warn("skipping search hit with non-numeric id", "id", h.ID)
			continue
		}
		hit := Hit{
			ID:       atomID,
			Score:    h.Score,
			Creators: stringList(h.Fields["creators"]),
			Tags:     stringList(h.Fields["tags"]),
		}
		hit.Title, _ = h.Fields["title"].(string)
		hit.ContentType, _ = h.Fields["content_type"].(string)

		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	if params.IncludeFacets {
		out.Facets = Facets{
			ContentTypes: facetCounts(res, "content_type"),
			Tags:         facetCounts(res, "tags"),
		}
	}
	return out, nil
}

// buildQuery ANDs the text query with the filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(3.0)

		tag := bleve.NewTermQuery(normalize.Tag(q))
		tag.SetField("tags")
		tag.SetBoost(2.0)

		creators := bleve.NewMatchQuery(q)
		creators.SetField("creators")
		creators.SetBoost(1.5)

		desc := bleve.NewMatchQuery(q)
		desc.SetField("description")

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{title, tag, creators, desc, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if len(params.ContentTypes) > 0 {
		types := make([]query.Query, len(params.ContentTypes))
		for i, t := range params.ContentTypes {
			tq := bleve.NewTermQuery(strings.TrimSpace(t))
			tq.SetField("content_type")
			types[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(types...))
	}

	for _, t := range normalize.Tags(params.Tags) {
		tq := bleve.NewTermQuery(t)
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	if !params.IncludeHidden {
		visible := bleve.NewBoolFieldQuery(false)
		visible.SetField("hidden")
		queries = append(queries, visible)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case SortTitle:
		if desc {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case SortRecent:
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

func facetCounts(res *bleve.SearchResult, field string) []FacetCount {
	f, ok := res.Facets[field]
	if !ok || f.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range f.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}

// stringList reads a stored field that bleve returns as a string when it
// holds one value and as a list otherwise.
func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, el := range x {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
