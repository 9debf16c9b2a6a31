package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

// filterParams renders filters as PostgREST query parameters:
// col=eq.v, col=in.(a,b) and col=cs.{v}.
func filterParams(filters []store.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			if len(f.Values) > 0 && f.Values[0] == nil {
				params.Add(f.Column, "is.null")
				continue
			}
			params.Add(f.Column, "eq."+literal(first(f.Values)))
		case store.OpIn:
			parts := make([]string, len(f.Values))
			for i, v := range f.Values {
				parts[i] = quote(literal(v))
			}
			params.Add(f.Column, "in.("+strings.Join(parts, ",")+")")
		case store.OpContains:
			params.Add(f.Column, "cs.{"+quote(literal(first(f.Values)))+"}")
		}
	}
	return params
}

func first(vs []any) any {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

func literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// quote wraps values holding PostgREST reserved characters in double quotes.
func quote(s string) string {
	if !strings.ContainsAny(s, `,.:()"{} `) {
		return s
	}
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
