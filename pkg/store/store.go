// Package store persists the citation core's state in SQLite: documents,
// works, citation links, extracted-citation edges, the flynote taxonomy
// and the reprocessing watermark.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coolbeans/citemark/pkg/flynote"
	"github.com/coolbeans/citemark/pkg/types"
)

// Store wraps the SQLite database. It satisfies the persistence
// collaborator interfaces of the analyzer, workgraph and flynote packages.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			expression_frbr_uri TEXT NOT NULL UNIQUE,
			work_frbr_uri TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT '',
			content_html TEXT NOT NULL DEFAULT '',
			content_html_is_akn INTEGER NOT NULL DEFAULT 0,
			source_filename TEXT,
			source_mimetype TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_work ON documents(work_frbr_uri)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(date)`,
		`CREATE TABLE IF NOT EXISTS works (
			frbr_uri TEXT PRIMARY KEY,
			n_cited_works INTEGER NOT NULL DEFAULT 0,
			n_citing_works INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS citation_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			url TEXT NOT NULL,
			target_id TEXT NOT NULL DEFAULT '',
			target_selectors TEXT NOT NULL DEFAULT '[]',
			treatments TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citation_links_document ON citation_links(document_id)`,
		`CREATE TABLE IF NOT EXISTS extracted_citations (
			citing_work TEXT NOT NULL,
			target_work TEXT NOT NULL,
			treatments TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (citing_work, target_work)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extracted_citations_target ON extracted_citations(target_work)`,
		`CREATE TABLE IF NOT EXISTS taxonomy (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			parent_id INTEGER REFERENCES taxonomy(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			UNIQUE (parent_id, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS taxonomy_memberships (
			judgment_id INTEGER NOT NULL,
			node_id INTEGER NOT NULL REFERENCES taxonomy(id) ON DELETE CASCADE,
			PRIMARY KEY (judgment_id, node_id)
		)`,
		`CREATE TABLE IF NOT EXISTS watermark (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			date TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const documentColumns = `id, expression_frbr_uri, work_frbr_uri, language, date,
	content_html, content_html_is_akn, source_filename, source_mimetype`

// SaveDocument inserts or updates a document keyed by its expression URI
// and fills in its ID.
func (s *Store) SaveDocument(ctx context.Context, doc *types.Document) error {
	var filename, mimetype sql.NullString
	if doc.SourceFile != nil {
		filename = sql.NullString{String: doc.SourceFile.Filename, Valid: true}
		mimetype = sql.NullString{String: doc.SourceFile.Mimetype, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(expression_frbr_uri, work_frbr_uri, language, date, content_html, content_html_is_akn, source_filename, source_mimetype)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (expression_frbr_uri) DO UPDATE SET
			work_frbr_uri = excluded.work_frbr_uri,
			language = excluded.language,
			date = excluded.date,
			content_html = excluded.content_html,
			content_html_is_akn = excluded.content_html_is_akn,
			source_filename = excluded.source_filename,
			source_mimetype = excluded.source_mimetype`,
		doc.ExpressionFRBRURI, doc.WorkFRBRURI, doc.Language, doc.Date,
		doc.ContentHTML, doc.ContentHTMLIsAKN, filename, mimetype)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ExpressionFRBRURI, err)
	}
	return s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE expression_frbr_uri = ?`, doc.ExpressionFRBRURI).
		Scan(&doc.ID)
}

func scanDocuments(rows *sql.Rows) ([]types.Document, error) {
	defer rows.Close()
	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		var isAKN int
		var filename, mimetype sql.NullString
		if err := rows.Scan(&doc.ID, &doc.ExpressionFRBRURI, &doc.WorkFRBRURI,
			&doc.Language, &doc.Date, &doc.ContentHTML, &isAKN, &filename, &mimetype); err != nil {
			return nil, err
		}
		doc.ContentHTMLIsAKN = isAKN != 0
		if filename.Valid || mimetype.Valid {
			doc.SourceFile = &types.SourceFile{Filename: filename.String, Mimetype: mimetype.String}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DocumentByID returns one document, or nil when absent.
func (s *Store) DocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	docs, err := scanDocuments(rows)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// Documents returns all documents ordered by id.
func (s *Store) Documents(ctx context.Context) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// DocumentsForWork returns every expression of a work.
func (s *Store) DocumentsForWork(ctx context.Context, workURI string) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE work_frbr_uri = ? ORDER BY id`, workURI)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// DocumentsSince returns all documents dated on or after date, oldest
// first.
func (s *Store) DocumentsSince(ctx context.Context, date string) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE date >= ? ORDER BY date, id`, date)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// SaveDocumentHTML stores re-serialised content for a document.
func (s *Store) SaveDocumentHTML(ctx context.Context, documentID int64, contentHTML string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET content_html = ? WHERE id = ?`, contentHTML, documentID)
	if err != nil {
		return fmt.Errorf("saving html of document %d: %w", documentID, err)
	}
	return nil
}

// SaveWork inserts a work if it is not already stored, preserving the
// counters of an existing row.
func (s *Store) SaveWork(ctx context.Context, work *types.Work) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO works (frbr_uri, n_cited_works, n_citing_works)
		VALUES (?, ?, ?)
		ON CONFLICT (frbr_uri) DO NOTHING`,
		work.FRBRURI, work.NCitedWorks, work.NCitingWorks)
	if err != nil {
		return fmt.Errorf("saving work %s: %w", work.FRBRURI, err)
	}
	return nil
}

// WorkByURI returns one work, or nil when absent.
func (s *Store) WorkByURI(ctx context.Context, uri string) (*types.Work, error) {
	var work types.Work
	err := s.db.QueryRowContext(ctx,
		`SELECT frbr_uri, n_cited_works, n_citing_works FROM works WHERE frbr_uri = ?`, uri).
		Scan(&work.FRBRURI, &work.NCitedWorks, &work.NCitingWorks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &work, nil
}

// WorkExists reports whether a work with the given URI is stored.
func (s *Store) WorkExists(ctx context.Context, workURI string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM works WHERE frbr_uri = ?`, workURI).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Works returns all works ordered by URI.
func (s *Store) Works(ctx context.Context) ([]types.Work, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frbr_uri, n_cited_works, n_citing_works FROM works ORDER BY frbr_uri`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var works []types.Work
	for rows.Next() {
		var w types.Work
		if err := rows.Scan(&w.FRBRURI, &w.NCitedWorks, &w.NCitingWorks); err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, rows.Err()
}

// ReplaceCitationLinks atomically swaps the link set of a document.
func (s *Store) ReplaceCitationLinks(ctx context.Context, documentID int64, links []types.CitationLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM citation_links WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clearing links of document %d: %w", documentID, err)
	}
	for _, link := range links {
		selectors, err := json.Marshal(link.TargetSelectors)
		if err != nil {
			return err
		}
		treatments, err := json.Marshal(emptyAsList(link.Treatments))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO citation_links (document_id, text, url, target_id, target_selectors, treatments)
			VALUES (?, ?, ?, ?, ?, ?)`,
			documentID, link.Text, link.URL, link.TargetID, string(selectors), string(treatments)); err != nil {
			return fmt.Errorf("inserting link %q: %w", link.Text, err)
		}
	}
	return tx.Commit()
}

// CitationLinks returns the stored links of one document in insertion
// order.
func (s *Store) CitationLinks(ctx context.Context, documentID int64) ([]types.CitationLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, text, url, target_id, target_selectors, treatments
		FROM citation_links WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []types.CitationLink
	for rows.Next() {
		var link types.CitationLink
		var selectors, treatments string
		if err := rows.Scan(&link.ID, &link.DocumentID, &link.Text, &link.URL,
			&link.TargetID, &selectors, &treatments); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selectors), &link.TargetSelectors); err != nil {
			return nil, fmt.Errorf("decoding selectors of link %d: %w", link.ID, err)
		}
		if err := json.Unmarshal([]byte(treatments), &link.Treatments); err != nil {
			return nil, fmt.Errorf("decoding treatments of link %d: %w", link.ID, err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ExtractedCitations returns the outgoing edges of a work ordered by
// target.
func (s *Store) ExtractedCitations(ctx context.Context, citingWork string) ([]types.ExtractedCitationEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT citing_work, target_work, treatments
		FROM extracted_citations WHERE citing_work = ? ORDER BY target_work`, citingWork)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []types.ExtractedCitationEdge
	for rows.Next() {
		var edge types.ExtractedCitationEdge
		var treatments string
		if err := rows.Scan(&edge.CitingWork, &edge.TargetWork, &treatments); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(treatments), &edge.Treatments); err != nil {
			return nil, fmt.Errorf("decoding treatments of edge to %s: %w", edge.TargetWork, err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// ReplaceExtractedCitations atomically swaps the outgoing edge set of a
// work.
func (s *Store) ReplaceExtractedCitations(ctx context.Context, citingWork string, edges []types.ExtractedCitationEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM extracted_citations WHERE citing_work = ?`, citingWork); err != nil {
		return fmt.Errorf("clearing edges of %s: %w", citingWork, err)
	}
	for _, edge := range edges {
		treatments, err := json.Marshal(emptyAsList(edge.Treatments))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO extracted_citations (citing_work, target_work, treatments)
			VALUES (?, ?, ?)`,
			citingWork, edge.TargetWork, string(treatments)); err != nil {
			return fmt.Errorf("inserting edge %s -> %s: %w", citingWork, edge.TargetWork, err)
		}
	}
	return tx.Commit()
}

// RecountWork recomputes both counters of a work from the stored edges.
func (s *Store) RecountWork(ctx context.Context, workURI string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE works SET
			n_cited_works = (SELECT COUNT(DISTINCT target_work) FROM extracted_citations WHERE citing_work = ?),
			n_citing_works = (SELECT COUNT(DISTINCT citing_work) FROM extracted_citations WHERE target_work = ?)
		WHERE frbr_uri = ?`,
		workURI, workURI, workURI)
	if err != nil {
		return fmt.Errorf("recounting %s: %w", workURI, err)
	}
	return nil
}

// Watermark returns the reprocessing watermark date, or "" when unset.
func (s *Store) Watermark(ctx context.Context) (string, error) {
	var date string
	err := s.db.QueryRowContext(ctx, `SELECT date FROM watermark WHERE id = 1`).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return date, err
}

// AdvanceWatermark moves the watermark to date when it is earlier than
// the stored value, or sets it when none exists.
func (s *Store) AdvanceWatermark(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermark (id, date) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET date = excluded.date
		WHERE excluded.date < watermark.date`, date)
	if err != nil {
		return fmt.Errorf("advancing watermark to %s: %w", date, err)
	}
	return nil
}

// ResetWatermark clears the watermark after a completed batch.
func (s *Store) ResetWatermark(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watermark WHERE id = 1`)
	return err
}

// RootNode returns the taxonomy root with the given slug, or nil.
func (s *Store) RootNode(ctx context.Context, slug string) (*flynote.TaxonomyNode, error) {
	return scanNode(s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), name, slug
		FROM taxonomy WHERE parent_id IS NULL AND slug = ?`, slug))
}

// ChildBySlug returns the child of parentID with the given slug, or nil.
func (s *Store) ChildBySlug(ctx context.Context, parentID int64, slug string) (*flynote.TaxonomyNode, error) {
	return scanNode(s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), name, slug
		FROM taxonomy WHERE parent_id = ? AND slug = ?`, parentID, slug))
}

func scanNode(row *sql.Row) (*flynote.TaxonomyNode, error) {
	var node flynote.TaxonomyNode
	err := row.Scan(&node.ID, &node.ParentID, &node.Name, &node.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// CreateRoot adds a root topic, slugged from its name.
func (s *Store) CreateRoot(ctx context.Context, name string) (*flynote.TaxonomyNode, error) {
	slug := flynote.Slugify(name)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO taxonomy (parent_id, name, slug) VALUES (NULL, ?, ?)`, name, slug)
	if err != nil {
		return nil, fmt.Errorf("creating taxonomy root %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &flynote.TaxonomyNode{ID: id, Name: name, Slug: slug}, nil
}

// CreateChild adds a child topic under parentID.
func (s *Store) CreateChild(ctx context.Context, parentID int64, name, slug string) (*flynote.TaxonomyNode, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO taxonomy (parent_id, name, slug) VALUES (?, ?, ?)`, parentID, name, slug)
	if err != nil {
		return nil, fmt.Errorf("creating taxonomy node %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &flynote.TaxonomyNode{ID: id, ParentID: parentID, Name: name, Slug: slug}, nil
}

// ClearMemberships removes a judgment's memberships on descendants of
// rootID.
func (s *Store) ClearMemberships(ctx context.Context, judgmentID, rootID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM taxonomy_memberships WHERE judgment_id = ? AND node_id IN (
			WITH RECURSIVE sub(id) AS (
				SELECT id FROM taxonomy WHERE parent_id = ?
				UNION ALL
				SELECT t.id FROM taxonomy t JOIN sub ON t.parent_id = sub.id
			)
			SELECT id FROM sub
		)`, judgmentID, rootID)
	if err != nil {
		return fmt.Errorf("clearing memberships of judgment %d: %w", judgmentID, err)
	}
	return nil
}

// AddMembership attaches a judgment to a node. Duplicates are ignored.
func (s *Store) AddMembership(ctx context.Context, judgmentID, nodeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO taxonomy_memberships (judgment_id, node_id) VALUES (?, ?)`,
		judgmentID, nodeID)
	return err
}

// Memberships returns the taxonomy node ids a judgment is attached to.
func (s *Store) Memberships(ctx context.Context, judgmentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM taxonomy_memberships WHERE judgment_id = ? ORDER BY node_id`, judgmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// emptyAsList keeps JSON columns as [] rather than null.
func emptyAsList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
