package markup

import (
	"context"
	"fmt"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/htmlutil"
)

// MarkupHTML scans the candidate text nodes of a tree, wraps every valid
// match in a marker anchor in place, and returns the matches it marked.
//
// Within one text node, matches are processed left-to-right. Each rewrite
// splits the node, which invalidates the remaining match offsets, so the
// scan restarts on the remainder text node after the inserted element and
// runs until a pass finds nothing left to wrap.
func (mk *Marker) MarkupHTML(_ context.Context, doc frbr.URI, container *html.Node) ([]ExtractedMatch, error) {
	candidates, err := htmlquery.QueryAll(container, mk.strategy.CandidateXPath())
	if err != nil {
		return nil, fmt.Errorf("markup: candidate xpath %q: %w", mk.strategy.CandidateXPath(), err)
	}

	var out []ExtractedMatch
	for _, node := range candidates {
		if node.Type != html.TextNode {
			continue
		}
		out = append(out, mk.scanTextNode(doc, node)...)
	}
	return out, nil
}

// scanTextNode wraps matches in one text node and in the remainder nodes
// its own rewrites produce.
func (mk *Marker) scanTextNode(doc frbr.URI, textNode *html.Node) []ExtractedMatch {
	validator, _ := mk.strategy.(NodeValidator)

	var out []ExtractedMatch
	for textNode != nil {
		var wrapped *html.Node
		for _, m := range matchesIn(mk.strategy.Pattern(), textNode.Data) {
			if validator != nil && !validator.IsNodeMatchValid(textNode, m) {
				continue
			}
			href := mk.hrefFor(doc, m)
			if href == "" {
				continue
			}
			wrapped = htmlutil.WrapText(textNode, m.Start, m.End, func(text string) *html.Node {
				el := htmlutil.NewElement(mk.markerTag, text)
				htmlutil.SetAttr(el, "href", href)
				return el
			})
			out = append(out, ExtractedMatch{
				Text:  m.Text,
				Start: m.Start,
				End:   m.End,
				Href:  href,
			})
			// The node was split; offsets of later matches no longer
			// apply. Resume on the remainder text.
			break
		}
		if wrapped == nil {
			return out
		}
		textNode = htmlutil.NextText(wrapped)
	}
	return out
}
