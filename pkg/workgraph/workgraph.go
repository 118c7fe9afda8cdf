// Package workgraph translates per-document citation links into
// (citing work, target work) edges and keeps the per-work citation
// counters consistent with the edge set.
package workgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/htmlutil"
	"github.com/coolbeans/citemark/pkg/types"
)

// Store is the persistence the updater relies on. All operations run in
// the caller's transaction scope; counters are recomputed from the edge
// set, so concurrent updates converge.
type Store interface {
	// DocumentsForWork returns every expression of a work.
	DocumentsForWork(ctx context.Context, workURI string) ([]types.Document, error)

	// CitationLinks returns the stored links of one document.
	CitationLinks(ctx context.Context, documentID int64) ([]types.CitationLink, error)

	// WorkExists reports whether a work with the given URI is stored.
	WorkExists(ctx context.Context, workURI string) (bool, error)

	// ExtractedCitations returns the current outgoing edges of a work.
	ExtractedCitations(ctx context.Context, citingWork string) ([]types.ExtractedCitationEdge, error)

	// ReplaceExtractedCitations swaps the outgoing edge set of a work.
	ReplaceExtractedCitations(ctx context.Context, citingWork string, edges []types.ExtractedCitationEdge) error

	// RecountWork recomputes both counters of a work from the edge set.
	RecountWork(ctx context.Context, workURI string) error
}

// Updater recomputes the extracted-citation edges of works.
type Updater struct {
	store Store
	log   *slog.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(store Store, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.Default()
	}
	return &Updater{store: store, log: log}
}

// UpdateExtractedCitations rebuilds the outgoing edges of a work from the
// citation material on all of its expressions, then recounts the work and
// every affected target. Self edges are dropped; targets not yet stored
// are skipped silently because they may appear in a later batch.
func (u *Updater) UpdateExtractedCitations(ctx context.Context, work *types.Work) error {
	citing, err := frbr.Parse(work.FRBRURI)
	if err != nil {
		return fmt.Errorf("workgraph: work %q: %w", work.FRBRURI, err)
	}
	citingWorkURI := citing.Work().String()

	docs, err := u.store.DocumentsForWork(ctx, work.FRBRURI)
	if err != nil {
		return fmt.Errorf("workgraph: loading documents of %s: %w", work.FRBRURI, err)
	}

	// Union of cited work URI -> treatment set across all expressions.
	treatments := make(map[string]map[string]bool)
	for _, doc := range docs {
		mentions, err := u.citedWorks(ctx, doc)
		if err != nil {
			return err
		}
		for target, labels := range mentions {
			if target == citingWorkURI {
				continue
			}
			if treatments[target] == nil {
				treatments[target] = make(map[string]bool)
			}
			for _, label := range labels {
				treatments[target][label] = true
			}
		}
	}

	oldEdges, err := u.store.ExtractedCitations(ctx, citingWorkURI)
	if err != nil {
		return fmt.Errorf("workgraph: loading edges of %s: %w", citingWorkURI, err)
	}

	targets := make([]string, 0, len(treatments))
	for target := range treatments {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var edges []types.ExtractedCitationEdge
	for _, target := range targets {
		known, err := u.store.WorkExists(ctx, target)
		if err != nil {
			return fmt.Errorf("workgraph: resolving %s: %w", target, err)
		}
		if !known {
			u.log.Debug("skipping unknown cited work", "citing", citingWorkURI, "target", target)
			continue
		}
		labels := make([]string, 0, len(treatments[target]))
		for label := range treatments[target] {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		edges = append(edges, types.ExtractedCitationEdge{
			CitingWork: citingWorkURI,
			TargetWork: target,
			Treatments: labels,
		})
	}

	if err := u.store.ReplaceExtractedCitations(ctx, citingWorkURI, edges); err != nil {
		return fmt.Errorf("workgraph: replacing edges of %s: %w", citingWorkURI, err)
	}

	// Recount the citing work and every target whose incoming edges
	// changed, including targets that just lost their edge.
	affected := map[string]bool{citingWorkURI: true}
	for _, edge := range oldEdges {
		affected[edge.TargetWork] = true
	}
	for _, edge := range edges {
		affected[edge.TargetWork] = true
	}
	recount := make([]string, 0, len(affected))
	for uri := range affected {
		recount = append(recount, uri)
	}
	sort.Strings(recount)
	for _, uri := range recount {
		if err := u.store.RecountWork(ctx, uri); err != nil {
			return fmt.Errorf("workgraph: recounting %s: %w", uri, err)
		}
	}

	work.NCitedWorks = len(edges)
	return nil
}

// citedWorks derives the cited work URIs of one document, with any
// treatment labels attached to the mentions. Canonical AKN markup is read
// for its authoritative references; non-canonical HTML for its anchors;
// documents without HTML fall back to their stored citation links.
// Malformed hrefs are skipped silently.
func (u *Updater) citedWorks(ctx context.Context, doc types.Document) (map[string][]string, error) {
	out := make(map[string][]string)
	add := func(href string, labels []string) {
		target, err := frbr.Parse(href)
		if err != nil {
			return
		}
		workURI := target.Work().String()
		out[workURI] = append(out[workURI], labels...)
	}

	switch {
	case doc.ContentHTML != "" && doc.ContentHTMLIsAKN:
		hrefs, err := aknReferences(doc.ContentHTML)
		if err != nil {
			u.log.Warn("skipping unparseable AKN content", "document", doc.ID, "error", err)
			return out, nil
		}
		for _, href := range hrefs {
			add(href, nil)
		}
	case doc.ContentHTML != "":
		hrefs, err := htmlAnchors(doc.ContentHTML)
		if err != nil {
			u.log.Warn("skipping unparseable HTML content", "document", doc.ID, "error", err)
			return out, nil
		}
		for _, href := range hrefs {
			add(href, nil)
		}
	default:
		links, err := u.store.CitationLinks(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("workgraph: loading links of document %d: %w", doc.ID, err)
		}
		for _, link := range links {
			add(link.URL, link.Treatments)
		}
	}
	return out, nil
}

// aknReferences collects the link targets of a canonical AKN document:
// every descendant carrying an akn href, except those inside editorial
// remarks.
func aknReferences(content string) ([]string, error) {
	root, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	nodes, err := xmlquery.QueryAll(root,
		`//*[starts-with(@href, "/akn/") and not(ancestor::*[local-name()="remark"])]`)
	if err != nil {
		return nil, err
	}
	hrefs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		hrefs = append(hrefs, n.SelectAttr("href"))
	}
	return hrefs, nil
}

// htmlAnchors collects the akn anchors of marked-up HTML content.
func htmlAnchors(content string) ([]string, error) {
	container, err := htmlutil.ParseFragment(content)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(container, `//a[starts-with(@href, "/akn/")]`)
	if err != nil {
		return nil, err
	}
	hrefs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		hrefs = append(hrefs, htmlutil.Attr(n, "href"))
	}
	return hrefs, nil
}
