package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coolbeans/citemark/pkg/analyzer"
	"github.com/coolbeans/citemark/pkg/config"
	"github.com/coolbeans/citemark/pkg/flynote"
	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/matchers"
	"github.com/coolbeans/citemark/pkg/pdftext"
	"github.com/coolbeans/citemark/pkg/store"
	"github.com/coolbeans/citemark/pkg/types"
	"github.com/coolbeans/citemark/pkg/workgraph"
)

var version = "0.1.0"

var (
	cfgFile   string
	verbose   bool
	sourceDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "citemark",
		Short: "Citation analysis and markup for legal documents",
		Long: `Citemark finds citations of legal works in judgment and legislation
text, marks them up as hyperlinks, and maintains the work-to-work
citation graph.

It ingests documents keyed by Akoma Ntoso FRBR URIs and produces:
  - Marked-up HTML with citations wrapped in links
  - Citation links with position and quote selectors for page targets
  - An extracted-citation graph with per-work counters
  - Flynote-derived case index taxonomies`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(updateGraphCmd())
	rootCmd.AddCommand(reextractCmd())
	rootCmd.AddCommand(flynoteCmd())
	rootCmd.AddCommand(worksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.New(), cfgFile)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.DBPath)
}

func newAnalyzer(cfg *config.Config, s *store.Store, log *slog.Logger) *analyzer.Analyzer {
	matcherList := matchers.Default(cfg.CitatorURL, cfg.CitatorAPIKey, nil, log)
	extractor := pdftext.Extractor{FallbackPdftotext: cfg.PdftotextFallback}
	return analyzer.New(matcherList, s, &dirPDFSource{dir: sourceDir}, extractor, log)
}

// dirPDFSource serves document source files from a local directory.
type dirPDFSource struct {
	dir string
}

func (d *dirPDFSource) AsPDF(ctx context.Context, doc *types.Document) (io.ReadCloser, error) {
	if doc.SourceFile == nil {
		return nil, fmt.Errorf("document %d has no source file", doc.ID)
	}
	if doc.SourceFile.Mimetype != "application/pdf" {
		return nil, fmt.Errorf("source file %s is %s, not a PDF", doc.SourceFile.Filename, doc.SourceFile.Mimetype)
	}
	return os.Open(filepath.Join(d.dir, doc.SourceFile.Filename))
}

// ingestDocument is the JSON shape accepted by the ingest command.
type ingestDocument struct {
	ExpressionFRBRURI string `json:"expression_frbr_uri"`
	Language          string `json:"language"`
	Date              string `json:"date"`
	ContentHTML       string `json:"content_html"`
	ContentHTMLIsAKN  bool   `json:"content_html_is_akn"`
	SourceFilename    string `json:"source_filename"`
	SourceMimetype    string `json:"source_mimetype"`
	Flynote           string `json:"flynote"`
}

func ingestCmd() *cobra.Command {
	var analyze bool

	cmd := &cobra.Command{
		Use:   "ingest <document.json>",
		Short: "Ingest a document described by a JSON file",
		Long: `Ingest a document into the database. The JSON file carries the
expression FRBR URI, the content HTML and optionally a source file
reference and a flynote.

Ingesting a document dated before already-stored documents schedules
those documents for re-analysis; run "citemark reextract" to process
the backlog.

Example:
  citemark ingest judgment.json --analyze`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in ingestDocument
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			uri, err := frbr.Parse(in.ExpressionFRBRURI)
			if err != nil {
				return fmt.Errorf("invalid expression URI: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			log := newLogger()
			ctx := cmd.Context()

			doc := &types.Document{
				ExpressionFRBRURI: in.ExpressionFRBRURI,
				WorkFRBRURI:       uri.WorkURI(),
				Language:          in.Language,
				Date:              in.Date,
				ContentHTML:       in.ContentHTML,
				ContentHTMLIsAKN:  in.ContentHTMLIsAKN,
			}
			if in.SourceFilename != "" {
				doc.SourceFile = &types.SourceFile{Filename: in.SourceFilename, Mimetype: in.SourceMimetype}
			}
			if err := s.SaveDocument(ctx, doc); err != nil {
				return err
			}
			if err := s.SaveWork(ctx, &types.Work{FRBRURI: doc.WorkFRBRURI}); err != nil {
				return err
			}

			batch := workgraph.NewBatch(s, newAnalyzer(cfg, s, log), log)
			if err := batch.NoteIngested(ctx, doc); err != nil {
				return err
			}

			if in.Flynote != "" {
				extractor := flynote.NewExtractor(s, cfg.FlynoteRootSlug, log)
				if _, err := extractor.Extract(ctx, doc.ID, in.Flynote); err != nil {
					return err
				}
			}

			if analyze {
				if err := newAnalyzer(cfg, s, log).ExtractCitations(ctx, doc); err != nil {
					return err
				}
				work := &types.Work{FRBRURI: doc.WorkFRBRURI}
				if err := workgraph.NewUpdater(s, log).UpdateExtractedCitations(ctx, work); err != nil {
					return err
				}
			}

			fmt.Printf("Ingested document %d (%s)\n", doc.ID, doc.ExpressionFRBRURI)
			return nil
		},
	}

	cmd.Flags().BoolVar(&analyze, "analyze", false, "extract citations immediately after ingest")
	cmd.Flags().StringVar(&sourceDir, "source-dir", ".", "directory holding document source files")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "analyze [document-id]",
		Short: "Extract and mark up citations in stored documents",
		Long: `Run the citation matchers over a document's HTML or source file.
Found citations are wrapped as links in the HTML, or recorded as
citation links with page targets and selectors for source documents.

Example:
  citemark analyze 12
  citemark analyze --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass a document id or --all")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			log := newLogger()
			ctx := cmd.Context()
			an := newAnalyzer(cfg, s, log)

			var docs []types.Document
			if all {
				if docs, err = s.Documents(ctx); err != nil {
					return err
				}
			} else {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid document id %q", args[0])
				}
				doc, err := s.DocumentByID(ctx, id)
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("document %d not found", id)
				}
				docs = []types.Document{*doc}
			}

			for i := range docs {
				if err := an.ExtractCitations(ctx, &docs[i]); err != nil {
					return fmt.Errorf("analyzing document %d: %w", docs[i].ID, err)
				}
				log.Info("analyzed document", "id", docs[i].ID, "uri", docs[i].ExpressionFRBRURI)
			}
			fmt.Printf("Analyzed %d document(s)\n", len(docs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "analyze every stored document")
	cmd.Flags().StringVar(&sourceDir, "source-dir", ".", "directory holding document source files")
	return cmd
}

func updateGraphCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "update-graph [work-frbr-uri]",
		Short: "Recompute extracted-citation edges and work counters",
		Long: `Collect the cited works from a work's marked-up expressions and
replace its outgoing edges in the citation graph, recounting the
counters of every affected work.

Example:
  citemark update-graph /akn/za/judgment/zacc/2021/1
  citemark update-graph --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass a work FRBR URI or --all")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			log := newLogger()
			ctx := cmd.Context()
			updater := workgraph.NewUpdater(s, log)

			var works []types.Work
			if all {
				if works, err = s.Works(ctx); err != nil {
					return err
				}
			} else {
				work, err := s.WorkByURI(ctx, args[0])
				if err != nil {
					return err
				}
				if work == nil {
					return fmt.Errorf("work %s not found", args[0])
				}
				works = []types.Work{*work}
			}

			for i := range works {
				if err := updater.UpdateExtractedCitations(ctx, &works[i]); err != nil {
					return fmt.Errorf("updating %s: %w", works[i].FRBRURI, err)
				}
				// Recounting happens in the store, so read the fresh
				// counters back before reporting them.
				updated, err := s.WorkByURI(ctx, works[i].FRBRURI)
				if err != nil {
					return err
				}
				if updated != nil {
					works[i] = *updated
				}
				log.Info("updated work", "uri", works[i].FRBRURI,
					"cited", works[i].NCitedWorks, "citing", works[i].NCitingWorks)
			}
			fmt.Printf("Updated %d work(s)\n", len(works))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "update every stored work")
	return cmd
}

func reextractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reextract",
		Short: "Re-analyze documents scheduled by the reprocessing watermark",
		Long: `Process the reprocessing backlog. When a historically dated document
is ingested, newer documents may contain citations of it that were not
linkable at their original analysis time; this command re-runs citation
extraction over every document dated on or after the watermark and then
clears it.

Example:
  citemark reextract`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			log := newLogger()

			batch := workgraph.NewBatch(s, newAnalyzer(cfg, s, log), log)
			n, err := batch.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Re-analyzed %d document(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source-dir", ".", "directory holding document source files")
	return cmd
}

func flynoteCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "flynote <document-id>",
		Short: "Extract case index topics from a judgment's flynote",
		Long: `Parse a flynote into topic paths and file the judgment under the
matching case index taxonomy nodes, creating missing topics as needed.

Example:
  citemark flynote 12 --text "Criminal law - admissibility - trial within a trial"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			log := newLogger()
			ctx := cmd.Context()

			root, err := s.RootNode(ctx, cfg.FlynoteRootSlug)
			if err != nil {
				return err
			}
			if root == nil {
				if _, err := s.CreateRoot(ctx, cfg.FlynoteRootSlug); err != nil {
					return err
				}
			}

			extractor := flynote.NewExtractor(s, cfg.FlynoteRootSlug, log)
			leaves, err := extractor.Extract(ctx, id, text)
			if err != nil {
				return err
			}

			fmt.Printf("Filed document %d under %d topic(s)\n", id, len(leaves))
			for _, leaf := range leaves {
				fmt.Printf("  - %s\n", leaf.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "flynote text (plain or HTML)")
	cmd.MarkFlagRequired("text")
	return cmd
}

func worksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "works",
		Short: "List stored works and their citation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			works, err := s.Works(cmd.Context())
			if err != nil {
				return err
			}
			for _, w := range works {
				fmt.Printf("%s\tcited=%d\tciting=%d\n", w.FRBRURI, w.NCitedWorks, w.NCitingWorks)
			}
			return nil
		},
	}
}
