package matchers

import (
	"fmt"
	"regexp"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/markup"
)

// Matches "Act 5 of 2019", "Act No. 13 of 2000".
var actPattern = regexp.MustCompile(
	`\bAct,?\s+(?:No\.?\s+)?(?P<num>\d+)\s+of\s+(?P<year>\d{4})\b`)

// Act matches numbered act citations and resolves them against the citing
// document's own country: /akn/{country}/act/{year}/{num}. Acts cited
// across borders are out of reach for this matcher; they carry no country
// of their own in the citation text.
type Act struct{}

// Name returns "act".
func (Act) Name() string { return "act" }

// Pattern returns the act citation pattern.
func (Act) Pattern() *regexp.Regexp { return actPattern }

// CandidateXPath selects unlinked text nodes.
func (Act) CandidateXPath() string { return markup.DefaultCandidateXPath }

// MakeHref builds the act work URI in the citing document's country.
func (Act) MakeHref(doc frbr.URI, m *markup.Match) string {
	if doc.Country == "" {
		return ""
	}
	return fmt.Sprintf("/akn/%s/act/%s/%s", doc.Country, m.Group("year"), m.Group("num"))
}
