package markup

import (
	"context"
	"strings"

	"github.com/coolbeans/citemark/pkg/frbr"
)

// ExtractText scans paged plain text for citations. The input is split on
// PageBreak; matches never span a page boundary because each page is
// scanned independently. Offsets in the returned matches are local to
// their page.
func (mk *Marker) ExtractText(_ context.Context, doc frbr.URI, pagedText string) ([]ExtractedMatch, error) {
	validator, _ := mk.strategy.(TextValidator)

	var out []ExtractedMatch
	for pageIndex, pageText := range strings.Split(pagedText, PageBreak) {
		for _, m := range matchesIn(mk.strategy.Pattern(), pageText) {
			m.Page = pageIndex
			if validator != nil && !validator.IsTextMatchValid(pageText, m) {
				continue
			}
			href := mk.hrefFor(doc, m)
			if href == "" {
				continue
			}
			out = append(out, ExtractedMatch{
				Text:  m.Text,
				Start: m.Start,
				End:   m.End,
				Href:  href,
				Page:  pageIndex,
			})
		}
	}
	return out, nil
}
