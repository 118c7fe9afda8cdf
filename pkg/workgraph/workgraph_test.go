package workgraph

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/coolbeans/citemark/pkg/types"
)

type memGraph struct {
	docs      map[string][]types.Document // work URI -> expressions
	links     map[int64][]types.CitationLink
	works     map[string]bool
	edges     map[string][]types.ExtractedCitationEdge
	recounted []string
}

func newMemGraph() *memGraph {
	return &memGraph{
		docs:  make(map[string][]types.Document),
		links: make(map[int64][]types.CitationLink),
		works: make(map[string]bool),
		edges: make(map[string][]types.ExtractedCitationEdge),
	}
}

func (g *memGraph) DocumentsForWork(_ context.Context, workURI string) ([]types.Document, error) {
	return g.docs[workURI], nil
}

func (g *memGraph) CitationLinks(_ context.Context, documentID int64) ([]types.CitationLink, error) {
	return g.links[documentID], nil
}

func (g *memGraph) WorkExists(_ context.Context, workURI string) (bool, error) {
	return g.works[workURI], nil
}

func (g *memGraph) ExtractedCitations(_ context.Context, citingWork string) ([]types.ExtractedCitationEdge, error) {
	return g.edges[citingWork], nil
}

func (g *memGraph) ReplaceExtractedCitations(_ context.Context, citingWork string, edges []types.ExtractedCitationEdge) error {
	g.edges[citingWork] = edges
	return nil
}

func (g *memGraph) RecountWork(_ context.Context, workURI string) error {
	g.recounted = append(g.recounted, workURI)
	return nil
}

var _ Store = (*memGraph)(nil)

func targetsOf(edges []types.ExtractedCitationEdge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.TargetWork
	}
	return out
}

func TestUpdateFromCitationLinks(t *testing.T) {
	g := newMemGraph()
	citing := "/akn/za/judgment/zacc/2024/2"
	g.docs[citing] = []types.Document{{ID: 1}, {ID: 2}}
	g.links[1] = []types.CitationLink{
		{URL: "/akn/ke/act/2019/5"},
		{URL: "/akn/za/judgment/zacc/2024/2"},          // self, dropped
		{URL: "/akn/za/act/2005/8/~sec_26"},            // portion stripped
		{URL: "not a uri"},                             // malformed, skipped silently
		{URL: "/akn/tz/judgment/tzhc/2001/3"},          // unknown work, skipped
	}
	g.links[2] = []types.CitationLink{
		{URL: "/akn/za/act/2005/8/eng@2015-01-01"}, // same work, other expression form
	}
	g.works["/akn/ke/act/2019/5"] = true
	g.works["/akn/za/act/2005/8"] = true

	work := &types.Work{FRBRURI: citing}
	if err := NewUpdater(g, nil).UpdateExtractedCitations(context.Background(), work); err != nil {
		t.Fatal(err)
	}

	want := []string{"/akn/ke/act/2019/5", "/akn/za/act/2005/8"}
	if got := targetsOf(g.edges[citing]); !reflect.DeepEqual(got, want) {
		t.Errorf("targets: got %v, want %v", got, want)
	}
	if work.NCitedWorks != 2 {
		t.Errorf("NCitedWorks: got %d", work.NCitedWorks)
	}
}

func TestUpdateFromMarkedUpHTML(t *testing.T) {
	g := newMemGraph()
	citing := "/akn/za/judgment/zacc/2024/2"
	g.docs[citing] = []types.Document{{
		ID:          1,
		ContentHTML: `<p>see <a href="/akn/ke/act/2019/5">Act 5 of 2019</a> and <a href="https://example.com">offsite</a></p>`,
	}}
	g.works["/akn/ke/act/2019/5"] = true

	work := &types.Work{FRBRURI: citing}
	if err := NewUpdater(g, nil).UpdateExtractedCitations(context.Background(), work); err != nil {
		t.Fatal(err)
	}
	if got := targetsOf(g.edges[citing]); !reflect.DeepEqual(got, []string{"/akn/ke/act/2019/5"}) {
		t.Errorf("targets: %v", got)
	}
}

func TestUpdateFromCanonicalAKN(t *testing.T) {
	g := newMemGraph()
	citing := "/akn/za/judgment/zacc/2024/2"
	g.docs[citing] = []types.Document{{
		ID: 1,
		ContentHTML: `<akomaNtoso><judgment>` +
			`<ref href="/akn/ke/act/2019/5">the Act</ref>` +
			`<remark><ref href="/akn/tz/act/2001/1">editorial</ref></remark>` +
			`</judgment></akomaNtoso>`,
		ContentHTMLIsAKN: true,
	}}
	g.works["/akn/ke/act/2019/5"] = true
	g.works["/akn/tz/act/2001/1"] = true

	work := &types.Work{FRBRURI: citing}
	if err := NewUpdater(g, nil).UpdateExtractedCitations(context.Background(), work); err != nil {
		t.Fatal(err)
	}
	if got := targetsOf(g.edges[citing]); !reflect.DeepEqual(got, []string{"/akn/ke/act/2019/5"}) {
		t.Errorf("remark reference not excluded: %v", got)
	}
}

func TestTreatmentUnion(t *testing.T) {
	g := newMemGraph()
	citing := "/akn/za/judgment/zacc/2024/2"
	g.docs[citing] = []types.Document{{ID: 1}, {ID: 2}}
	g.links[1] = []types.CitationLink{
		{URL: "/akn/ke/act/2019/5", Treatments: []string{"follows", "applies"}},
	}
	g.links[2] = []types.CitationLink{
		{URL: "/akn/ke/act/2019/5/eng", Treatments: []string{"follows", "distinguishes"}},
	}
	g.works["/akn/ke/act/2019/5"] = true

	work := &types.Work{FRBRURI: citing}
	if err := NewUpdater(g, nil).UpdateExtractedCitations(context.Background(), work); err != nil {
		t.Fatal(err)
	}
	edges := g.edges[citing]
	if len(edges) != 1 {
		t.Fatalf("edges: %+v", edges)
	}
	want := []string{"applies", "distinguishes", "follows"}
	if !reflect.DeepEqual(edges[0].Treatments, want) {
		t.Errorf("treatments: got %v, want %v", edges[0].Treatments, want)
	}
}

func TestRecountCoversRemovedTargets(t *testing.T) {
	g := newMemGraph()
	citing := "/akn/za/judgment/zacc/2024/2"
	g.docs[citing] = []types.Document{{ID: 1}}
	g.links[1] = []types.CitationLink{{URL: "/akn/ke/act/2019/5"}}
	g.works["/akn/ke/act/2019/5"] = true
	// A previously stored edge whose target is no longer cited.
	g.edges[citing] = []types.ExtractedCitationEdge{
		{CitingWork: citing, TargetWork: "/akn/tz/act/2001/1"},
	}

	work := &types.Work{FRBRURI: citing}
	if err := NewUpdater(g, nil).UpdateExtractedCitations(context.Background(), work); err != nil {
		t.Fatal(err)
	}

	sort.Strings(g.recounted)
	want := []string{"/akn/ke/act/2019/5", "/akn/tz/act/2001/1", citing}
	sort.Strings(want)
	if !reflect.DeepEqual(g.recounted, want) {
		t.Errorf("recounted: got %v, want %v", g.recounted, want)
	}
}

// --- watermark batch ---

type memWatermark struct {
	watermark string
	docs      []types.Document
	resets    int
}

func (w *memWatermark) Watermark(context.Context) (string, error) { return w.watermark, nil }

func (w *memWatermark) AdvanceWatermark(_ context.Context, date string) error {
	if w.watermark == "" || date < w.watermark {
		w.watermark = date
	}
	return nil
}

func (w *memWatermark) ResetWatermark(context.Context) error {
	w.watermark = ""
	w.resets++
	return nil
}

func (w *memWatermark) DocumentsSince(_ context.Context, date string) ([]types.Document, error) {
	var out []types.Document
	for _, d := range w.docs {
		if d.Date >= date {
			out = append(out, d)
		}
	}
	return out, nil
}

type recordingAnalyzer struct {
	seen    []int64
	failFor int64
}

func (a *recordingAnalyzer) ExtractCitations(_ context.Context, doc *types.Document) error {
	if doc.ID == a.failFor {
		return errors.New("boom")
	}
	a.seen = append(a.seen, doc.ID)
	return nil
}

func TestWatermarkAdvancesBackwardsOnly(t *testing.T) {
	w := &memWatermark{}
	b := NewBatch(w, &recordingAnalyzer{}, nil)
	ctx := context.Background()

	if err := b.NoteIngested(ctx, &types.Document{Date: "2020-05-01"}); err != nil {
		t.Fatal(err)
	}
	if err := b.NoteIngested(ctx, &types.Document{Date: "2023-01-01"}); err != nil {
		t.Fatal(err)
	}
	if w.watermark != "2020-05-01" {
		t.Errorf("watermark: got %q", w.watermark)
	}
	if err := b.NoteIngested(ctx, &types.Document{Date: "1999-12-31"}); err != nil {
		t.Fatal(err)
	}
	if w.watermark != "1999-12-31" {
		t.Errorf("watermark: got %q", w.watermark)
	}
}

func TestWatermarkBatchRun(t *testing.T) {
	w := &memWatermark{
		watermark: "2020-01-01",
		docs: []types.Document{
			{ID: 1, Date: "2019-06-01"}, // before watermark, untouched
			{ID: 2, Date: "2020-01-01"},
			{ID: 3, Date: "2022-03-15"},
		},
	}
	a := &recordingAnalyzer{}
	n, err := NewBatch(w, a, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || !reflect.DeepEqual(a.seen, []int64{2, 3}) {
		t.Errorf("processed %d, seen %v", n, a.seen)
	}
	if w.watermark != "" || w.resets != 1 {
		t.Errorf("watermark not reset: %q", w.watermark)
	}
}

func TestWatermarkBatchAbortKeepsWatermark(t *testing.T) {
	w := &memWatermark{
		watermark: "2020-01-01",
		docs:      []types.Document{{ID: 2, Date: "2020-02-01"}, {ID: 3, Date: "2021-01-01"}},
	}
	a := &recordingAnalyzer{failFor: 3}
	if _, err := NewBatch(w, a, nil).Run(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if w.watermark != "2020-01-01" {
		t.Errorf("watermark consumed on failure: %q", w.watermark)
	}
}

func TestWatermarkBatchNoopWhenUnset(t *testing.T) {
	a := &recordingAnalyzer{}
	n, err := NewBatch(&memWatermark{}, a, nil).Run(context.Background())
	if err != nil || n != 0 || len(a.seen) != 0 {
		t.Errorf("n=%d err=%v seen=%v", n, err, a.seen)
	}
}
