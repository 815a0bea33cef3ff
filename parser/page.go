// Package parser turns fetched markup into field values, endpoint
// descriptions and category links.
package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed document scoped to a single fetch. A new Page is built for
// every response and never shared.
type Page struct {
	doc *goquery.Document
}

// NewPage parses body as HTML.
func NewPage(body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Page{doc: doc}, nil
}

// HasContainer reports whether any element matches selector. A page without
// one is structurally empty.
func (p *Page) HasContainer(selector string) bool {
	return p.doc.Find(selector).Length() > 0
}

// textNodes returns, in document order, the text nodes whose content equals text.
func (p *Page) textNodes(text string) []*html.Node {
	var found []*html.Node
	for _, root := range p.doc.Nodes {
		walk(root, func(n *html.Node) {
			if n.Type == html.TextNode && n.Data == text {
				found = append(found, n)
			}
		})
	}
	return found
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}
