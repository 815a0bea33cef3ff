package parser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrEmptyLabel is returned when ExtractField is called without a label.
var ErrEmptyLabel = errors.New("parser: empty field label")

var valueTags = map[string]bool{
	"div":  true,
	"span": true,
}

// ExtractField returns one value per occurrence of label in page. For each
// text node equal to label, the first following sibling of its parent that is
// a div or span with non-blank text supplies the value. Occurrences without
// such a sibling contribute nothing.
func ExtractField(page *Page, label string) ([]string, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}

	var values []string
	for _, node := range page.textNodes(label) {
		if node.Parent == nil {
			continue
		}
		if value, ok := siblingValue(node.Parent); ok {
			values = append(values, value)
		}
	}
	return values, nil
}

func siblingValue(n *html.Node) (string, bool) {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || !valueTags[sib.Data] {
			continue
		}
		sel := goquery.NewDocumentFromNode(sib).Selection
		if strings.TrimSpace(sel.Text()) == "" {
			continue
		}
		return NormalizeText(joinedText(sib)), true
	}
	return "", false
}

// joinedText joins every descendant text node of n with single spaces.
func joinedText(n *html.Node) string {
	var parts []string
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	})
	return strings.Join(parts, " ")
}

// NormalizeText trims spaces, carriage returns, newlines and tabs from both ends.
func NormalizeText(text string) string {
	return strings.Trim(text, " \r\n\t")
}
