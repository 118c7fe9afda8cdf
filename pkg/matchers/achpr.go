package matchers

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/markup"
)

// Matches e.g. "ACHPR/Res.79 (XXXVIII) 05" or "ACHPR/Res. 437 (EXT.OS/ XXVI1) 2020":
// the resolution number, a parenthesised ordinary-session numeral (optionally
// prefixed EXT.OS/ for extraordinary sessions, and tolerating OCR-mangled
// digits inside the numeral), then a 2- or 4-digit year.
var achprPattern = regexp.MustCompile(
	`(?i)ACHPR\s*/\s*Res\.?\s*(?P<num>\d+)\s*\(\s*(?:EXT\.?\s*OS\s*/\s*)?(?P<session>[XVILCM0-9]+)\s*\)\s*,?\s*(?P<year>\d{4}|\d{2})\b`)

// ACHPR matches citations of resolutions of the African Commission on
// Human and Peoples' Rights and links them to
// /akn/aa-au/statement/resolution/achpr/{year}/{num}.
type ACHPR struct{}

// Name returns "achpr-resolution".
func (ACHPR) Name() string { return "achpr-resolution" }

// Pattern returns the resolution citation pattern.
func (ACHPR) Pattern() *regexp.Regexp { return achprPattern }

// CandidateXPath pre-filters to unlinked text nodes that mention ACHPR.
func (ACHPR) CandidateXPath() string {
	return `//text()[contains(., "ACHPR") and not(ancestor::a)]`
}

// MakeHref builds the resolution URI. Two-digit years are calendared:
// values above 80 fall in the 1900s, the rest in the 2000s (the Commission
// first sat in 1987).
func (ACHPR) MakeHref(_ frbr.URI, m *markup.Match) string {
	year, err := strconv.Atoi(m.Group("year"))
	if err != nil {
		return ""
	}
	if year < 100 {
		if year > 80 {
			year += 1900
		} else {
			year += 2000
		}
	}
	return fmt.Sprintf("/akn/aa-au/statement/resolution/achpr/%d/%s", year, m.Group("num"))
}
