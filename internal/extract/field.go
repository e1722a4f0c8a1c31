package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/ysmood/gson"
)

// Source is one place a field value may be read from: the first element
// matching Query, taking its text or the named attribute.
type Source struct {
	Query string
	Attr  string
	match cascadia.Selector
}

func text(query string) Source {
	return Source{Query: query, match: cascadia.MustCompile(query)}
}

func attr(query, name string) Source {
	return Source{Query: query, Attr: name, match: cascadia.MustCompile(query)}
}

func texts(queries ...string) []Source {
	out := make([]Source, len(queries))
	for i, q := range queries {
		out[i] = text(q)
	}
	return out
}

// metas reads <meta> content by name, falling back to property.
func metas(names ...string) []Source {
	out := make([]Source, 0, len(names)*2)
	for _, n := range names {
		out = append(out,
			attr(fmt.Sprintf(`meta[name=%q]`, n), "content"),
			attr(fmt.Sprintf(`meta[property=%q]`, n), "content"))
	}
	return out
}

// Read returns the trimmed value at s, or "" when nothing matches.
func (s Source) Read(doc *Document) string {
	first := doc.Find(s.match).First()
	if first.Length() == 0 {
		return ""
	}
	if s.Attr == "" {
		return textOf(first)
	}
	v, _ := first.Attr(s.Attr)
	return strings.TrimSpace(v)
}

// Field describes how to resolve one scalar: selectors first, then
// metadata tags, then structured-data paths.
type Field struct {
	Name       string
	Selectors  []Source
	Meta       []Source
	Structured []string
}

// Tier names reported alongside a resolved value.
const (
	TierSelector   = "selector"
	TierMeta       = "meta"
	TierStructured = "structured-data"
)

// Resolve returns the first usable value for f and the tier it came from.
func Resolve(doc *Document, f Field) (value, tier string, ok bool) {
	if v, ok := firstOf(doc, f.Selectors); ok {
		return v, TierSelector, true
	}
	if v, ok := firstOf(doc, f.Meta); ok {
		return v, TierMeta, true
	}
	if v, ok := structuredOf(doc, f.Structured); ok {
		return v, TierStructured, true
	}
	return "", "", false
}

func firstOf(doc *Document, sources []Source) (string, bool) {
	for _, s := range sources {
		if v := s.Read(doc); usable(v) {
			return v, true
		}
	}
	return "", false
}

func structuredOf(doc *Document, paths []string) (string, bool) {
	if len(paths) == 0 {
		return "", false
	}
	data, ok := doc.Structured()
	if !ok {
		return "", false
	}
	for _, p := range paths {
		if v, ok := scalar(data.Get(p)); ok {
			return v, true
		}
	}
	return "", false
}

// scalar renders a string or number node; anything else is absent.
func scalar(j gson.JSON) (string, bool) {
	switch v := j.Val().(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, usable(v)
	case float64:
		return j.String(), true
	default:
		return "", false
	}
}

func usable(v string) bool {
	return v != "" && v != Unknown
}

// resolveOr resolves f, returning fallback when no tier has a value.
func resolveOr(doc *Document, f Field, fallback string) string {
	if v, _, ok := Resolve(doc, f); ok {
		return v
	}
	return fallback
}

// resolvePtr resolves f, returning nil when no tier has a value.
func resolvePtr(doc *Document, f Field) *string {
	if v, _, ok := Resolve(doc, f); ok {
		return &v
	}
	return nil
}
