// Package types holds the value objects shared by the citation analysis
// core: documents, works, citation links and the citation graph edge.
package types

// Document is the narrow view of a stored document that the citation core
// consumes and updates. The host platform owns the full record.
type Document struct {
	// ID is the stable integer identifier assigned by the store.
	ID int64

	// ExpressionFRBRURI identifies this exact language/date rendering.
	ExpressionFRBRURI string

	// WorkFRBRURI identifies the abstract work this document realises.
	WorkFRBRURI string

	// Language is the ISO 639-3 code of the expression.
	Language string

	// Date is the expression date, ISO format.
	Date string

	// ContentHTML is the extracted HTML content, empty when none exists.
	ContentHTML string

	// ContentHTMLIsAKN marks ContentHTML as canonical Akoma Ntoso markup.
	// Canonical markup carries authoritative references and must never be
	// re-annotated by this subsystem.
	ContentHTMLIsAKN bool

	// SourceFile describes the original upload, if any.
	SourceFile *SourceFile
}

// SourceFile describes a document's original source file.
type SourceFile struct {
	Filename string
	Mimetype string
}

// Work carries the per-work fields the citation core maintains. Authority
// scores derived from these counters live downstream in the ranking layer.
type Work struct {
	FRBRURI      string
	NCitedWorks  int // distinct works this work cites
	NCitingWorks int // distinct works citing this work
}
