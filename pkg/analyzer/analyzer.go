// Package analyzer orchestrates citation extraction for one document: it
// picks HTML or paged-text mode, runs the registered matchers in order,
// writes anchors back into the HTML, and persists CitationLink records.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/htmlutil"
	"github.com/coolbeans/citemark/pkg/markup"
	"github.com/coolbeans/citemark/pkg/types"
)

// ErrExternalTool reports a PDF conversion or text extraction failure. The
// document's run aborts and its previous citation state stays intact.
var ErrExternalTool = errors.New("analyzer: external tool failure")

// quoteWindow is the default prefix/suffix length for quote selectors,
// clipped to the page bounds.
const quoteWindow = 80

// LinkStore persists a document's citation state. ReplaceCitationLinks
// must atomically swap the old link set for the new one so a document is
// always fully the previous run's output or fully the new run's.
type LinkStore interface {
	ReplaceCitationLinks(ctx context.Context, documentID int64, links []types.CitationLink) error
	SaveDocumentHTML(ctx context.Context, documentID int64, contentHTML string) error
}

// PDFSource produces a PDF rendering of a document's source file. It must
// be idempotent and safe to invoke on every run.
type PDFSource interface {
	AsPDF(ctx context.Context, doc *types.Document) (io.ReadCloser, error)
}

// TextExtractor extracts paged plain text (form-feed delimited, NUL-free)
// from the PDF at path.
type TextExtractor interface {
	ExtractPages(path string) (string, error)
}

// Analyzer runs an ordered matcher list over documents. The list is built
// once at process init and never mutated, so one Analyzer may serve many
// workers as long as each document is owned by a single worker.
type Analyzer struct {
	matchers  []markup.Matcher
	store     LinkStore
	pdfs      PDFSource
	extractor TextExtractor
	log       *slog.Logger
}

// New creates an Analyzer. pdfs may be nil when no documents carry source
// files.
func New(matchers []markup.Matcher, store LinkStore, pdfs PDFSource, extractor TextExtractor, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{matchers: matchers, store: store, pdfs: pdfs, extractor: extractor, log: log}
}

// ExtractCitations analyses one persisted document. Documents flagged as
// canonical Akoma Ntoso are left untouched: their markup is authoritative
// and this subsystem has no authority to re-annotate it.
func (a *Analyzer) ExtractCitations(ctx context.Context, doc *types.Document) error {
	if doc.ContentHTMLIsAKN {
		a.log.Debug("skipping canonical AKN document", "document", doc.ID)
		return nil
	}

	exprURI, err := frbr.Parse(doc.ExpressionFRBRURI)
	if err != nil {
		return fmt.Errorf("document %d: %w", doc.ID, err)
	}

	switch {
	case doc.ContentHTML != "":
		return a.extractFromHTML(ctx, doc, exprURI)
	case doc.SourceFile != nil:
		return a.extractFromSource(ctx, doc, exprURI)
	default:
		// Nothing to scan; the last run's link set is empty.
		return a.store.ReplaceCitationLinks(ctx, doc.ID, nil)
	}
}

// extractFromHTML marks citations up in place. The anchors themselves are
// the persistent record, so the stored link set is cleared.
func (a *Analyzer) extractFromHTML(ctx context.Context, doc *types.Document, exprURI frbr.URI) error {
	container, err := htmlutil.ParseFragment(doc.ContentHTML)
	if err != nil {
		a.log.Warn("skipping document with unparseable HTML", "document", doc.ID, "error", err)
		return nil
	}

	for _, matcher := range a.matchers {
		if _, err := matcher.MarkupHTML(ctx, exprURI, container); err != nil {
			return fmt.Errorf("document %d: matcher %s: %w", doc.ID, matcher.Name(), err)
		}
	}

	serialized, err := htmlutil.Serialize(container)
	if err != nil {
		return fmt.Errorf("document %d: serialising: %w", doc.ID, err)
	}
	if err := a.store.SaveDocumentHTML(ctx, doc.ID, serialized); err != nil {
		return fmt.Errorf("document %d: %w", doc.ID, err)
	}
	doc.ContentHTML = serialized
	return a.store.ReplaceCitationLinks(ctx, doc.ID, nil)
}

// extractFromSource renders the source file to PDF, extracts paged text
// and persists the matches as citation links.
func (a *Analyzer) extractFromSource(ctx context.Context, doc *types.Document, exprURI frbr.URI) error {
	if a.pdfs == nil || a.extractor == nil {
		return fmt.Errorf("document %d: no PDF pipeline configured", doc.ID)
	}

	text, err := a.sourceText(ctx, doc)
	if err != nil {
		a.log.Error("text extraction failed", "document", doc.ID, "stage", "pdf", "error", err)
		return errors.Join(ErrExternalTool, err)
	}

	var links []types.CitationLink
	pages := strings.Split(text, markup.PageBreak)
	for _, matcher := range a.matchers {
		matches, err := matcher.ExtractText(ctx, exprURI, text)
		if err != nil {
			return fmt.Errorf("document %d: matcher %s: %w", doc.ID, matcher.Name(), err)
		}
		for _, m := range matches {
			links = append(links, linkForMatch(doc.ID, pages, m))
		}
	}

	return a.store.ReplaceCitationLinks(ctx, doc.ID, links)
}

// sourceText copies the PDF rendering to a scoped temporary file and
// extracts its paged text. The temp file is released on all exit paths.
func (a *Analyzer) sourceText(ctx context.Context, doc *types.Document) (string, error) {
	rc, err := a.pdfs.AsPDF(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("rendering source to PDF: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "citemark-*.pdf")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	return a.extractor.ExtractPages(tmpPath)
}

// linkForMatch builds the CitationLink for one match: a position selector
// with the page-local offsets and a quote selector whose Exact equals the
// match text, with up to quoteWindow bytes of context either side.
func linkForMatch(documentID int64, pages []string, m markup.ExtractedMatch) types.CitationLink {
	pageText := ""
	if m.Page < len(pages) {
		pageText = pages[m.Page]
	}

	prefixStart := runeFloor(pageText, max(0, m.Start-quoteWindow))
	suffixEnd := runeCeil(pageText, min(len(pageText), m.End+quoteWindow))

	return types.CitationLink{
		DocumentID: documentID,
		Text:       m.Text,
		URL:        m.Href,
		TargetID:   types.PageTargetID(m.Page),
		TargetSelectors: []types.Selector{
			{Type: types.SelectorTypePosition, Start: m.Start, End: m.End},
			{
				Type:   types.SelectorTypeQuote,
				Exact:  m.Text,
				Prefix: pageText[prefixStart:m.Start],
				Suffix: pageText[m.End:suffixEnd],
			},
		},
	}
}

// runeFloor moves i forward to the next rune boundary so the context
// window never splits a UTF-8 sequence.
func runeFloor(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// runeCeil moves i backward to the previous rune boundary.
func runeCeil(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
