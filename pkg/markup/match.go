// Package markup implements the regex-driven pattern matcher framework the
// citation analyser runs over documents. A concrete matcher supplies a
// Strategy (compiled pattern, candidate XPath, href construction and
// optional validity checks); the Marker drives it in two modes: marking
// matches in place in an HTML tree, or recording matches in paged plain
// text with a page index.
package markup

import (
	"context"
	"regexp"

	"golang.org/x/net/html"

	"github.com/coolbeans/citemark/pkg/frbr"
)

// PageBreak is the inter-page delimiter in paged plain text: the ASCII
// form-feed byte.
const PageBreak = "\x0c"

// ExtractedMatch is one validated citation match carried between matcher
// and analyser. Start and End are byte offsets local to the page (text
// mode) or to the scanned text node (HTML mode). Page is the zero-based
// page index; HTML mode always reports page 0.
type ExtractedMatch struct {
	Text  string
	Start int
	End   int
	Href  string
	Page  int
}

// Match gives a Strategy access to one regex match.
type Match struct {
	// Text is the full matched span.
	Text string

	// Start and End are byte offsets into the scanned text region.
	Start int
	End   int

	// Page is the zero-based page index during a paged-text scan.
	Page int

	groups map[string]string
}

// Group returns a named capture group's text, or "" when it did not
// participate in the match.
func (m *Match) Group(name string) string {
	return m.groups[name]
}

// Groups returns the named capture groups that participated in the match.
// This is the default set of href pattern arguments.
func (m *Match) Groups() map[string]string {
	return m.groups
}

// matchesIn runs the pattern over a text region and returns matches
// left-to-right. Zero-length matches are dropped.
func matchesIn(re *regexp.Regexp, text string) []*Match {
	names := re.SubexpNames()
	var out []*Match
	for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
		if idx[0] == idx[1] {
			continue
		}
		m := &Match{
			Text:   text[idx[0]:idx[1]],
			Start:  idx[0],
			End:    idx[1],
			groups: make(map[string]string),
		}
		for i, name := range names {
			if name == "" || idx[2*i] < 0 {
				continue
			}
			m.groups[name] = text[idx[2*i]:idx[2*i+1]]
		}
		out = append(out, m)
	}
	return out
}

// Matcher is what the analyser runs. Local regex matchers are Markers; the
// remote citator client implements the same pair of operations over HTTP.
type Matcher interface {
	// Name identifies the matcher in logs.
	Name() string

	// MarkupHTML scans the tree for matches, wraps each in an anchor in
	// place, and returns the matches it marked.
	MarkupHTML(ctx context.Context, doc frbr.URI, container *html.Node) ([]ExtractedMatch, error)

	// ExtractText scans paged plain text (PageBreak-delimited) and returns
	// the matches with page-local offsets.
	ExtractText(ctx context.Context, doc frbr.URI, pagedText string) ([]ExtractedMatch, error)
}
