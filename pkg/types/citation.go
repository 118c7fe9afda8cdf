package types

import "fmt"

// Selector types used in CitationLink.TargetSelectors, following the W3C
// Web Annotation selector vocabulary.
const (
	SelectorTypePosition = "TextPositionSelector"
	SelectorTypeQuote    = "TextQuoteSelector"
)

// Selector locates a citation inside its page text. A link always carries a
// position selector first, then a quote selector whose Exact equals the
// link text.
type Selector struct {
	Type   string `json:"type"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
	Exact  string `json:"exact,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// CitationLink records one resolved citation found in a document. Links are
// produced in paged-text mode; in HTML mode the inserted anchors are the
// record of the citation.
type CitationLink struct {
	ID         int64
	DocumentID int64

	// Text is the matched citation text.
	Text string

	// URL is the target FRBR URI, leading-slash form.
	URL string

	// TargetID names the page the match occurred on, "page-N", one-based.
	TargetID string

	// TargetSelectors locate Text within the page named by TargetID.
	TargetSelectors []Selector

	// Treatments are optional labels describing how the citing document
	// treats the target (e.g. "follows", "distinguishes").
	Treatments []string
}

// PageTargetID formats the target id for a zero-based page index.
func PageTargetID(pageIndex int) string {
	return fmt.Sprintf("page-%d", pageIndex+1)
}

// ExtractedCitationEdge is a (citing work, target work) edge in the citation
// graph, unique per ordered pair, annotated with the union of treatments
// found across all mentions.
type ExtractedCitationEdge struct {
	CitingWork string
	TargetWork string
	Treatments []string
}
