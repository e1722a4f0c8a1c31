// Package extract reads product details, prices and catalog listings out of a
// settled store page.
package extract

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/errors"
)

// Unknown is reported for scalar fields no tier could resolve.
const Unknown = "N/A"

const snapshotJS = `() => ({ url: location.href, html: document.documentElement.outerHTML })`

var (
	structuredDataSel = cascadia.MustCompile(`script[type="application/ld+json"]`)
	invisibleSel      = cascadia.MustCompile(`script, style, noscript, template`)
)

// Document is a parsed snapshot of the remote page.
type Document struct {
	doc  *goquery.Document
	base *url.URL

	structured     gson.JSON
	structuredRead bool
}

// ParseDocument parses markup captured from pageURL.
func ParseDocument(markup, pageURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	d := &Document{doc: goquery.NewDocumentFromNode(root)}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			d.base = u
		}
	}
	return d, nil
}

// Snapshot captures the current document of ec through the guard.
func Snapshot(ctx context.Context, guard *browser.Guard, ec browser.ExecutionContext) (*Document, error) {
	v, err := guard.Eval(ctx, ec, snapshotJS)
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(v.Get("html").Str(), v.Get("url").Str())
	if err != nil {
		return nil, errors.NewExecutionFailure(v.Get("url").Str(), "parse_snapshot", err)
	}
	return doc, nil
}

// Find returns all elements matching m.
func (d *Document) Find(m goquery.Matcher) *goquery.Selection {
	return d.doc.FindMatcher(m)
}

// Resolve makes ref absolute against the page address.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || d.base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.base.ResolveReference(parsed).String()
}

// BodyText returns the visible text of the body, whitespace collapsed.
func (d *Document) BodyText() string {
	body := d.doc.Find("body").Clone()
	body.FindMatcher(invisibleSel).Remove()
	return collapse(body.Text())
}

// Structured returns the page's structured-data block, if one parses.
// A top-level array yields its first element.
func (d *Document) Structured() (gson.JSON, bool) {
	if !d.structuredRead {
		d.structuredRead = true
		d.structured = gson.New(nil)

		d.Find(structuredDataSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			var v interface{}
			if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
				return true
			}
			if arr, ok := v.([]interface{}); ok {
				if len(arr) == 0 {
					return true
				}
				v = arr[0]
			}
			if _, ok := v.(map[string]interface{}); !ok {
				return true
			}
			d.structured = gson.New(v)
			return false
		})
	}
	return d.structured, !d.structured.Nil()
}

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textOf(s *goquery.Selection) string {
	return collapse(s.Text())
}
