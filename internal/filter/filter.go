// Package filter derives the visible subset of atoms for the gallery.
//
// Apply is a pure function of its inputs: the same atoms, predicates and
// metadata always give the same ordered result.
package filter

import (
	"slices"
	"strings"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

// Predicates are the user-controlled filter inputs.
type Predicates struct {
	Search        string   `json:"search,omitempty"`
	ContentTypes  []string `json:"content_types,omitempty"`
	Creators      []string `json:"creators,omitempty"`
	FavoritesOnly bool     `json:"favorites_only,omitempty"`
	SelectedTags  []string `json:"selected_tags,omitempty"` // may include flagged and no-tag
	IdeaID        *int64   `json:"idea_id,omitempty"`
	HideHidden    bool     `json:"hide_hidden,omitempty"` // ignored inside an idea scope
}

// IdeaChildren is the resolved child set of the scoping idea.
// Loaded stays false while the set is being fetched.
type IdeaChildren struct {
	IDs    []int64
	Loaded bool
}

// Metadata is the catalog context needed to evaluate predicates.
type Metadata struct {
	Categories        []domain.Category
	CategoryTags      []domain.CategoryTag
	Tags              []domain.Tag
	FavoriteCreators  []string
	DefaultCategoryID *int64
	IdeaChildren      IdeaChildren
}

// Result is the filtered view.
type Result struct {
	Atoms []domain.Atom
	// IdeaPending is set when an idea scope is active but its children are
	// not loaded yet; the idea predicate was skipped.
	IdeaPending bool
}

// Apply returns the atoms satisfying every predicate, in input order, with
// duplicate ids dropped.
func Apply(atoms []domain.Atom, p Predicates, m Metadata) Result {
	c := compile(p, m)
	res := Result{Atoms: make([]domain.Atom, 0, len(atoms)), IdeaPending: c.ideaPending}

	seen := make(map[int64]struct{}, len(atoms))
	for _, a := range atoms {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		if !c.match(a) {
			continue
		}
		seen[a.ID] = struct{}{}
		res.Atoms = append(res.Atoms, a)
	}
	return res
}

// compiled holds predicate state precomputed once per Apply.
type compiled struct {
	search       string
	contentTypes map[string]struct{}
	creators     map[string]struct{}
	favorites    map[string]struct{}
	favsOnly     bool

	privateTags  map[string]struct{}
	revealPriv   bool
	defaultTags  map[string]struct{} // nil when default scoping does not apply
	wantFlagged  bool
	wantUntagged bool
	required     []string

	ideaChildren map[int64]struct{} // nil when idea scoping does not apply
	ideaPending  bool
	hideHidden   bool
}

func compile(p Predicates, m Metadata) compiled {
	c := compiled{
		search:       strings.ToLower(strings.TrimSpace(p.Search)),
		contentTypes: setOf(p.ContentTypes, strings.TrimSpace),
		creators:     setOf(p.Creators, normalize.Name),
		favorites:    setOf(m.FavoriteCreators, normalize.Name),
		favsOnly:     p.FavoritesOnly,
		privateTags:  privateTagNames(m),
	}

	selected := normalize.Tags(p.SelectedTags)
	for _, t := range selected {
		switch t {
		case domain.PseudoTagFlagged:
			c.wantFlagged = true
		case domain.PseudoTagNoTag:
			c.wantUntagged = true
		default:
			c.required = append(c.required, t)
			if _, ok := c.privateTags[t]; ok {
				c.revealPriv = true
			}
		}
	}

	if m.DefaultCategoryID != nil && len(selected) == 0 {
		c.defaultTags = categoryTagNames(m, *m.DefaultCategoryID)
	}

	switch {
	case p.IdeaID == nil:
		c.hideHidden = p.HideHidden
	case !m.IdeaChildren.Loaded:
		c.ideaPending = true
	default:
		c.ideaChildren = make(map[int64]struct{}, len(m.IdeaChildren.IDs))
		for _, id := range m.IdeaChildren.IDs {
			c.ideaChildren[id] = struct{}{}
		}
	}
	return c
}

func (c *compiled) match(a domain.Atom) bool {
	tags := normalize.Tags(a.Tags)

	if c.hideHidden && a.Hidden {
		return false
	}
	// 1. search
	if c.search != "" && !c.matchesSearch(a, tags) {
		return false
	}
	// 2. content type
	if len(c.contentTypes) > 0 {
		if _, ok := c.contentTypes[a.ContentType]; !ok {
			return false
		}
	}
	// 3-4. creators and favorites
	if len(c.creators) > 0 || c.favsOnly {
		names := atomCreators(a)
		if len(c.creators) > 0 && !intersects(names, c.creators) {
			return false
		}
		if c.favsOnly && !intersects(names, c.favorites) {
			return false
		}
	}
	// 5. privacy
	if !c.revealPriv && intersects(tags, c.privateTags) {
		return false
	}
	// 6. default category
	if c.defaultTags != nil && !intersects(tags, c.defaultTags) {
		return false
	}
	// 7. pseudo-tags
	if c.wantFlagged && !a.FlagForDeletion {
		return false
	}
	if c.wantUntagged && len(tags) != 0 {
		return false
	}
	// 8. real tags
	for _, t := range c.required {
		if !slices.Contains(tags, t) {
			return false
		}
	}
	// 9. idea scope
	if c.ideaChildren != nil {
		if _, ok := c.ideaChildren[a.ID]; !ok {
			return false
		}
	}
	return true
}

func (c *compiled) matchesSearch(a domain.Atom, tags []string) bool {
	if strings.Contains(strings.ToLower(a.Title), c.search) {
		return true
	}
	if a.Description != nil && strings.Contains(strings.ToLower(*a.Description), c.search) {
		return true
	}
	return slices.ContainsFunc(tags, func(t string) bool { return strings.Contains(t, c.search) })
}

// privateTagNames returns tags flagged private themselves or linked to a
// private category.
func privateTagNames(m Metadata) map[string]struct{} {
	privateCats := make(map[int64]struct{})
	for _, cat := range m.Categories {
		if cat.IsPrivate {
			privateCats[cat.ID] = struct{}{}
		}
	}
	privateIDs := make(map[int64]struct{})
	for _, l := range m.CategoryTags {
		if _, ok := privateCats[l.CategoryID]; ok {
			privateIDs[l.TagID] = struct{}{}
		}
	}

	out := make(map[string]struct{})
	for _, t := range m.Tags {
		_, linked := privateIDs[t.ID]
		if t.IsPrivate || linked {
			out[normalize.Tag(t.Name)] = struct{}{}
		}
	}
	return out
}

func categoryTagNames(m Metadata, categoryID int64) map[string]struct{} {
	ids := make(map[int64]struct{})
	for _, l := range m.CategoryTags {
		if l.CategoryID == categoryID {
			ids[l.TagID] = struct{}{}
		}
	}
	out := make(map[string]struct{}, len(ids))
	for _, t := range m.Tags {
		if _, ok := ids[t.ID]; ok {
			out[normalize.Tag(t.Name)] = struct{}{}
		}
	}
	return out
}

func atomCreators(a domain.Atom) []string {
	if a.CreatorName == nil {
		return nil
	}
	return normalize.SplitCreators(*a.CreatorName)
}

func setOf(values []string, canon func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = canon(v); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func intersects(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// Privacy evaluates the privacy predicate outside Apply, for result sets
// produced elsewhere such as full-text search.
type Privacy struct {
	private map[string]struct{}
}

// NewPrivacy precomputes the private tag set of m.
func NewPrivacy(m Metadata) Privacy {
	return Privacy{private: privateTagNames(m)}
}

// Hides reports whether a is excluded when selected are the chosen tags.
// Selecting any private tag reveals every private atom.
func (p Privacy) Hides(a domain.Atom, selected []string) bool {
	if intersects(normalize.Tags(selected), p.private) {
		return false
	}
	return intersects(normalize.Tags(a.Tags), p.private)
}
