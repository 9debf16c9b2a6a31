package filter

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/atomshelf/atomshelf-server/internal/normalize"
)

// DefaultPageSize is the initial reveal count.
const DefaultPageSize = 40

// Signature serializes p canonically. Two predicate sets that filter the
// same way have the same signature regardless of selection order or case.
func Signature(p Predicates) string {
	canon := Predicates{
		Search:        strings.ToLower(strings.TrimSpace(p.Search)),
		ContentTypes:  sortedSet(p.ContentTypes, strings.TrimSpace),
		Creators:      sortedSet(p.Creators, normalize.Name),
		FavoritesOnly: p.FavoritesOnly,
		SelectedTags:  sortedSet(p.SelectedTags, normalize.Tag),
		IdeaID:        p.IdeaID,
		HideHidden:    p.HideHidden,
	}
	data, _ := json.Marshal(canon) // Predicates always marshals.
	return string(data)
}

func sortedSet(values []string, canon func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = canon(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Pager is a lazy-reveal counter. The reveal count only grows, except that
// it resets to PageSize whenever the filter signature changes.
type Pager struct {
	mu        sync.Mutex
	pageSize  int
	signature string
	revealed  int
}

// NewPager returns a pager revealing pageSize items at a time.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{pageSize: pageSize, revealed: pageSize}
}

// Sync records the current filter signature and reports whether the reveal
// count was reset.
func (p *Pager) Sync(signature string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if signature == p.signature {
		return false
	}
	p.signature = signature
	p.revealed = p.pageSize
	return true
}

// More reveals one more page and returns the new reveal count.
func (p *Pager) More() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revealed += p.pageSize
	return p.revealed
}

// Revealed returns the current reveal count.
func (p *Pager) Revealed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revealed
}

// PageSize returns the page size.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// Page is a revealed prefix of a filtered result.
type Page[T any] struct {
	Items   []T
	Total   int
	HasMore bool
}

// Slice returns the revealed prefix of items.
func Slice[T any](p *Pager, items []T) Page[T] {
	n := min(p.Revealed(), len(items))
	return Page[T]{Items: items[:n], Total: len(items), HasMore: n < len(items)}
}
