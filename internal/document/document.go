// Package document wraps a parsed HTML page with the queries the crawler needs.
package document

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page plus its base URI.
type Document struct {
	baseURI string
	charset string
	html    string
	doc     *goquery.Document
	base    *url.URL
}

// Anchor is one <a href> element resolved against the page.
type Anchor struct {
	Href   string
	AbsURL string
	Text   string
}

// Parse decodes body using the content type (or sniffed meta charset) and builds a Document.
func Parse(baseURI string, body []byte, contentType string) (*Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	_, name, _ := charset.DetermineEncoding(body, contentType)
	return fromHTML(baseURI, string(decoded), name)
}

// ParseString builds a Document from already-decoded UTF-8 markup.
func ParseString(baseURI, markup string) (*Document, error) {
	return fromHTML(baseURI, markup, "utf-8")
}

// Restore rebuilds a Document from cached markup and its recorded charset.
func Restore(baseURI, markup, charsetName string) (*Document, error) {
	if charsetName == "" {
		charsetName = "utf-8"
	}
	return fromHTML(baseURI, markup, charsetName)
}

func fromHTML(baseURI, markup, charsetName string) (*Document, error) {
	base, err := url.Parse(baseURI)
	if err != nil {
		return nil, fmt.Errorf("parse base uri: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = base
	return &Document{
		baseURI: baseURI,
		charset: charsetName,
		html:    markup,
		doc:     doc,
		base:    base,
	}, nil
}

// BaseURI is the URL the document was fetched from.
func (d *Document) BaseURI() string {
	return d.baseURI
}

// Charset is the encoding the body was decoded from.
func (d *Document) Charset() string {
	return d.charset
}

// HTML returns the decoded markup.
func (d *Document) HTML() string {
	return d.html
}

// Paragraphs returns the whitespace-normalized text of every <p> element in document order.
func (d *Document) Paragraphs() []string {
	var out []string
	d.doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		out = append(out, normalizeSpace(s.Text()))
	})
	return out
}

// Anchors lists every <a href> with its absolute URL. Hrefs that do not resolve get an empty AbsURL.
func (d *Document) Anchors() []Anchor {
	var out []Anchor
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = append(out, Anchor{
			Href:   href,
			AbsURL: d.resolve(href),
			Text:   normalizeSpace(s.Text()),
		})
	})
	return out
}

// Has reports whether the document contains at least one element matching selector.
func (d *Document) Has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

func (d *Document) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := d.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
