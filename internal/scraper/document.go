package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// goqueryDocument implements Document on top of a parsed goquery tree. Every
// engine adapter produces one of these from its HTML snapshot, so extraction
// strategies stay agnostic about which transport fetched the page.
type goqueryDocument struct {
	doc  *goquery.Document
	base *url.URL
}

// NewDocument parses an HTML snapshot into a Document. pageURL is used to
// absolutize relative references; an unparsable pageURL disables resolution
// but does not fail parsing.
func NewDocument(html []byte, pageURL string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	return &goqueryDocument{doc: doc, base: base}, nil
}

func (d *goqueryDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *goqueryDocument) Text() string {
	return strings.TrimSpace(d.doc.Find("body").Text())
}

func (d *goqueryDocument) Select(selector string) []Element {
	var out []Element
	d.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &goqueryElement{sel: sel})
	})
	return out
}

func (d *goqueryDocument) ResolveURL(ref string) string {
	if d.base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.base.ResolveReference(parsed).String()
}

type goqueryElement struct {
	sel *goquery.Selection
}

func (e *goqueryElement) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *goqueryElement) Attribute(name string) string {
	val, _ := e.sel.Attr(name)
	return val
}

func (e *goqueryElement) Find(selector string) (Element, bool) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return &goqueryElement{sel: found}, true
}
