package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for atom documents.
//
// Title and description are stemmed English text. Creators use the simple
// analyzer so names are not stemmed. Tags and content type are keywords for
// exact filtering and faceting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = en.AnalyzerName
	title.Store = true
	title.IncludeTermVectors = true
	doc.AddFieldMappingsAt("title", title)

	// Not stored: descriptions can be long.
	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = en.AnalyzerName
	desc.Store = false
	doc.AddFieldMappingsAt("description", desc)

	creators := bleve.NewTextFieldMapping()
	creators.Analyzer = simple.Name
	creators.Store = true
	creators.IncludeTermVectors = true
	doc.AddFieldMappingsAt("creators", creators)

	contentType := bleve.NewTextFieldMapping()
	contentType.Analyzer = keyword.Name
	contentType.Store = true
	doc.AddFieldMappingsAt("content_type", contentType)

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = keyword.Name
	tags.Store = true
	tags.IncludeTermVectors = true
	doc.AddFieldMappingsAt("tags", tags)

	id := bleve.NewTextFieldMapping()
	id.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("id", id)

	hidden := bleve.NewBooleanFieldMapping()
	hidden.Store = true
	doc.AddFieldMappingsAt("hidden", hidden)

	createdAt := bleve.NewNumericFieldMapping()
	createdAt.Store = true
	doc.AddFieldMappingsAt("created_at", createdAt)

	updatedAt := bleve.NewNumericFieldMapping()
	updatedAt.Store = true
	doc.AddFieldMappingsAt("updated_at", updatedAt)

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
