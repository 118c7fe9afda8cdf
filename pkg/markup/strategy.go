package markup

import (
	"regexp"

	"golang.org/x/net/html"

	"github.com/coolbeans/citemark/pkg/frbr"
)

// DefaultCandidateXPath selects text nodes that are not already inside an
// anchor, so re-running a matcher over marked-up HTML is a no-op.
const DefaultCandidateXPath = "//text()[not(ancestor::a)]"

// DefaultMarkerTag is the element wrapped around a match in HTML mode.
const DefaultMarkerTag = "a"

// Strategy is the specialisation point of the matcher framework. A concrete
// matcher is data: a pattern, a candidate XPath and an href template.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Name returns the matcher name (e.g. "mnc", "achpr-resolution").
	Name() string

	// Pattern returns the compiled citation pattern. Named capture groups
	// feed MakeHref.
	Pattern() *regexp.Regexp

	// CandidateXPath selects the text nodes to scan in HTML mode. Use
	// DefaultCandidateXPath unless the matcher can pre-filter (e.g. only
	// text containing "ACHPR").
	CandidateXPath() string

	// MakeHref builds the target FRBR URI from a match, given the citing
	// document's URI. Returning "" suppresses the match.
	MakeHref(doc frbr.URI, m *Match) string
}

// TextValidator is an optional Strategy hook consulted in paged-text mode
// with the full page text.
type TextValidator interface {
	IsTextMatchValid(pageText string, m *Match) bool
}

// NodeValidator is an optional Strategy hook consulted in HTML mode with
// the text node being scanned.
type NodeValidator interface {
	IsNodeMatchValid(node *html.Node, m *Match) bool
}

// Marker drives a Strategy over trees and paged text. Markers hold no scan
// state; both operations are pure functions of their input plus the
// strategy, which keeps repeat runs deterministic.
type Marker struct {
	strategy  Strategy
	markerTag string
}

// NewMarker wraps a strategy with the default anchor marker tag.
func NewMarker(strategy Strategy) *Marker {
	return &Marker{strategy: strategy, markerTag: DefaultMarkerTag}
}

// Name returns the underlying strategy's name.
func (mk *Marker) Name() string {
	return mk.strategy.Name()
}

// hrefFor builds and validates the target href for a match. It returns ""
// when the strategy suppresses the match or ValidHref rejects it.
func (mk *Marker) hrefFor(doc frbr.URI, m *Match) string {
	href := mk.strategy.MakeHref(doc, m)
	if href == "" || !ValidHref(doc, href) {
		return ""
	}
	return href
}

// ValidHref reports whether href is a well-formed FRBR URI that does not
// resolve to the citing document's own work. No matcher may emit a
// self-citation.
func ValidHref(doc frbr.URI, href string) bool {
	target, err := frbr.Parse(href)
	if err != nil {
		return false
	}
	return target.Work().String() != doc.Work().String()
}
