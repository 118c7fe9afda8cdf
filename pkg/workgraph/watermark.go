package workgraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coolbeans/citemark/pkg/types"
)

// WatermarkStore holds the singleton reprocessing watermark: the earliest
// document date whose citations may need re-extraction because an older
// document arrived after newer ones were analysed.
type WatermarkStore interface {
	// Watermark returns the current watermark date (ISO), or "" when no
	// reprocessing is pending.
	Watermark(ctx context.Context) (string, error)

	// AdvanceWatermark moves the watermark to date if it is earlier than
	// the current value (or if none is set). Later dates are a no-op.
	AdvanceWatermark(ctx context.Context, date string) error

	// ResetWatermark clears the watermark after a completed batch.
	ResetWatermark(ctx context.Context) error

	// DocumentsSince returns all documents dated on or after date.
	DocumentsSince(ctx context.Context, date string) ([]types.Document, error)
}

// DocumentAnalyzer re-extracts the citations of one document.
type DocumentAnalyzer interface {
	ExtractCitations(ctx context.Context, doc *types.Document) error
}

// Batch drives watermark-based reprocessing. When a historically dated
// document is ingested it may be the target of citations in already-stored
// newer documents, so everything dated on or after it is re-analysed.
type Batch struct {
	store    WatermarkStore
	analyzer DocumentAnalyzer
	log      *slog.Logger
}

// NewBatch creates a Batch.
func NewBatch(store WatermarkStore, analyzer DocumentAnalyzer, log *slog.Logger) *Batch {
	if log == nil {
		log = slog.Default()
	}
	return &Batch{store: store, analyzer: analyzer, log: log}
}

// NoteIngested records a newly ingested document, moving the watermark
// backwards to its date when it predates the current watermark.
func (b *Batch) NoteIngested(ctx context.Context, doc *types.Document) error {
	if doc.Date == "" {
		return nil
	}
	return b.store.AdvanceWatermark(ctx, doc.Date)
}

// Run re-extracts citations for every document dated on or after the
// watermark, then resets it. It returns the number of documents
// processed; a document failure aborts the batch with the watermark left
// in place so the next run retries.
func (b *Batch) Run(ctx context.Context) (int, error) {
	watermark, err := b.store.Watermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("workgraph: reading watermark: %w", err)
	}
	if watermark == "" {
		return 0, nil
	}

	docs, err := b.store.DocumentsSince(ctx, watermark)
	if err != nil {
		return 0, fmt.Errorf("workgraph: listing documents since %s: %w", watermark, err)
	}

	for i := range docs {
		if err := b.analyzer.ExtractCitations(ctx, &docs[i]); err != nil {
			b.log.Error("reextract batch aborted", "document", docs[i].ID, "stage", "analyze", "error", err)
			return i, fmt.Errorf("workgraph: document %d: %w", docs[i].ID, err)
		}
	}

	if err := b.store.ResetWatermark(ctx); err != nil {
		return len(docs), fmt.Errorf("workgraph: resetting watermark: %w", err)
	}
	b.log.Info("reextract batch complete", "since", watermark, "documents", len(docs))
	return len(docs), nil
}
