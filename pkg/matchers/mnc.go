// Package matchers provides the concrete citation matcher strategies run by
// the analyser: machine-neutral citations of judgments, ACHPR resolution
// citations, act citations, and the optional remote citator client.
package matchers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/markup"
)

// mncCountryCodes is the closed set of two-letter country codes an MNC
// court code may start with: the African national codes plus the extra
// jurisdictions present in the corpus.
var mncCountryCodes = []string{
	"AO", "BF", "BI", "BJ", "BW", "CD", "CF", "CG", "CI", "CM", "CV",
	"DJ", "DZ", "EG", "ER", "ET", "GA", "GH", "GM", "GN", "GQ", "GW",
	"KE", "KM", "LR", "LS", "LY", "MA", "MG", "ML", "MR", "MU", "MW",
	"MZ", "NA", "NE", "NG", "RW", "SC", "SD", "SL", "SN", "SO", "SS",
	"ST", "SZ", "TD", "TG", "TN", "TZ", "UG", "ZA", "ZM", "ZW",
}

// localityCodes maps, per country, a court-code prefix (the characters
// after the country code) to the locality component of the place. Aliases
// are tried longest first so "lmp" wins over "lp".
var localityCodes = map[string][]localityAlias{
	"za": {
		{code: "lmp", locality: "lp"},
		{code: "kz", locality: "kzn"},
		{code: "ec", locality: "ec"},
		{code: "fs", locality: "fs"},
		{code: "gp", locality: "gp"},
		{code: "lp", locality: "lp"},
		{code: "mp", locality: "mp"},
		{code: "nc", locality: "nc"},
		{code: "nw", locality: "nw"},
		{code: "wc", locality: "wc"},
	},
}

type localityAlias struct {
	code     string
	locality string
}

var mncPattern = regexp.MustCompile(
	`\[(?P<year>\d{4})\]\s+(?P<court>(?:` + strings.Join(mncCountryCodes, "|") + `)[A-Z]{1,8})\s+(?P<num>\d+)\b`)

// MNC matches machine-neutral citations of court judgments, e.g.
// "[2023] ZAKZDHC 7", and links them to /akn/{place}/judgment/{court}/{year}/{num}.
type MNC struct{}

// Name returns "mnc".
func (MNC) Name() string { return "mnc" }

// Pattern returns the MNC citation pattern.
func (MNC) Pattern() *regexp.Regexp { return mncPattern }

// CandidateXPath selects unlinked text nodes.
func (MNC) CandidateXPath() string { return markup.DefaultCandidateXPath }

// MakeHref derives the judgment work URI from the court code. The place is
// the court's leading country code, extended with a locality when the
// following characters name one (e.g. ZAKZDHC is heard in za-kzn).
//
// In Ghana "SCxx" codes denote a law-report series, not a court, so those
// matches are suppressed for gh documents.
func (MNC) MakeHref(doc frbr.URI, m *markup.Match) string {
	court := strings.ToLower(m.Group("court"))
	if doc.Country == "gh" && strings.HasPrefix(court, "sc") {
		return ""
	}

	place := court[:2]
	rest := court[2:]
	for _, alias := range localityCodes[place] {
		if strings.HasPrefix(rest, alias.code) {
			place = place + "-" + alias.locality
			break
		}
	}
	return fmt.Sprintf("/akn/%s/judgment/%s/%s/%s", place, court, m.Group("year"), m.Group("num"))
}
