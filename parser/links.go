package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CategoryHrefs returns, in document order, the href of the first anchor in
// every div carrying class. Containers without an anchor or with an empty
// href are skipped.
func CategoryHrefs(page *Page, class string) []string {
	var hrefs []string
	page.doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if !s.HasClass(class) {
			return
		}
		href, ok := s.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		hrefs = append(hrefs, href)
	})
	return hrefs
}
