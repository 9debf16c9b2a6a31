// Package search provides full-text search over atoms using Bleve.
package search

import (
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

// Document is the indexed shape of an atom.
//
// Creator names are split out of the comma-joined creator_name column so a
// query for one creator does not have to match the whole string.
type Document struct {
	ID          string
	Title       string
	Description string
	ContentType string
	Creators    []string
	Tags        []string
	Hidden      bool
	CreatedAt   int64 // Unix millis
	UpdatedAt   int64 // Unix millis
}

// NewDocument builds the index document for an atom.
func NewDocument(a domain.Atom) *Document {
	doc := &Document{
		ID:          DocID(a.ID),
		Title:       a.Title,
		ContentType: a.ContentType,
		Tags:        normalize.Tags(a.Tags),
		Hidden:      a.Hidden,
		CreatedAt:   a.CreatedAt.UnixMilli(),
		UpdatedAt:   a.UpdatedAt.UnixMilli(),
	}
	if a.Description != nil {
		doc.Description = plainText(*a.Description)
	}
	if a.CreatorName != nil {
		doc.Creators = normalize.SplitCreators(*a.CreatorName)
	}
	return doc
}

// DocID is the index key for an atom id.
func DocID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":           d.ID,
		"title":        d.Title,
		"content_type": d.ContentType,
		"hidden":       d.Hidden,
		"created_at":   d.CreatedAt,
		"updated_at":   d.UpdatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Creators) > 0 {
		m["creators"] = d.Creators
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// htmlTagPattern matches the tags rich-text editors put in descriptions.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// plainText converts an HTML description to Markdown so markup does not end
// up in the index. Plain strings are returned unchanged.
func plainText(s string) string {
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}
