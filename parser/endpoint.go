package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/titanous/json5"
)

// ajaxPostPattern matches a jQuery-style paging call such as
//
//	$.post("/ajax/products/" + nextIndex, {"category": 12})
//
// capturing the path fragment, the offset variable and the payload literal.
// Matching is per line and greedy: the payload runs to the last closing brace
// on that line, so a callback written on the same line breaks the payload.
var ajaxPostPattern = regexp.MustCompile(`\$\.post\("(.*)" *\+ *(.*), *(\{.*\})`)

// Discoverer finds the AJAX listing endpoint embedded in a category page.
type Discoverer struct {
	// BaseURL prefixes the discovered path fragment.
	BaseURL string
	// DefaultItemsPerPage is used when the page does not declare the offset
	// variable's initial value.
	DefaultItemsPerPage int
}

// Discover extracts the endpoint from markup. found is false when the page
// carries no paginated listing; err is set only when the call is present but
// its payload cannot be decoded.
func (d Discoverer) Discover(markup string) (spec models.EndpointSpec, found bool, err error) {
	match := ajaxPostPattern.FindStringSubmatch(markup)
	if match == nil {
		return models.EndpointSpec{}, false, nil
	}

	offsetName := strings.TrimSpace(match[2])
	body := map[string]any{}
	if err := json5.Unmarshal([]byte(match[3]), &body); err != nil {
		return models.EndpointSpec{}, false, fmt.Errorf("decode ajax payload %q: %w", match[3], err)
	}

	perPage, ok := declaredInt(markup, offsetName)
	if !ok {
		perPage = d.DefaultItemsPerPage
	}

	return models.EndpointSpec{
		URLTemplate:     d.BaseURL + match[1],
		OffsetParamName: offsetName,
		ItemsPerPage:    perPage,
		PostBody:        body,
	}, true, nil
}

// declaredInt looks for `var ... name = <integer>` in markup.
func declaredInt(markup, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	pattern, err := regexp.Compile(`var.*` + regexp.QuoteMeta(name) + ` *= *(\d+)`)
	if err != nil {
		return 0, false
	}
	match := pattern.FindStringSubmatch(markup)
	if match == nil {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
