// Package pdftext extracts paged plain text from PDF files. Pages are
// joined with the ASCII form-feed byte, the delimiter the matcher
// framework splits on, and NUL bytes are replaced by a single space.
package pdftext

import (
	"fmt"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PageBreak is the inter-page delimiter in extracted text.
const PageBreak = "\x0c"

// Extractor turns a PDF into paged plain text. It tries the Go library
// first and, when enabled, falls back to the pdftotext tool (which also
// emits form feeds between pages).
type Extractor struct {
	FallbackPdftotext bool
}

// ExtractPages returns the text of the PDF at path, one page per
// form-feed-delimited segment.
func (e Extractor) ExtractPages(path string) (string, error) {
	text, err := extractWithLibrary(path)
	if err != nil && e.FallbackPdftotext {
		text, err = extractWithPdftotext(path)
	}
	if err != nil {
		return "", fmt.Errorf("pdftext: extracting %s: %w", path, err)
	}
	return sanitize(text), nil
}

func extractWithLibrary(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			b.WriteString(PageBreak)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func extractWithPdftotext(path string) (string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// sanitize replaces NUL bytes, which some extractors emit for unmapped
// glyphs, with a single space.
func sanitize(text string) string {
	return strings.ReplaceAll(text, "\x00", " ")
}
