package markup

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/htmlutil"
)

// refStrategy links "REF year/num" to /akn/za/act/{year}/{num}.
type refStrategy struct{}

func (refStrategy) Name() string { return "ref" }

func (refStrategy) Pattern() *regexp.Regexp {
	return regexp.MustCompile(`REF (?P<year>\d{4})/(?P<num>\d+)`)
}

func (refStrategy) CandidateXPath() string { return DefaultCandidateXPath }

func (refStrategy) MakeHref(_ frbr.URI, m *Match) string {
	return "/akn/za/act/" + m.Group("year") + "/" + m.Group("num")
}

var _ Matcher = (*Marker)(nil)
var _ Strategy = refStrategy{}

var testDoc = frbr.MustParse("/akn/za/judgment/zacc/2023/1/eng")

func markup(t *testing.T, fragment string) (string, []ExtractedMatch) {
	t.Helper()
	container, err := htmlutil.ParseFragment(fragment)
	if err != nil {
		t.Fatal(err)
	}
	matches, err := NewMarker(refStrategy{}).MarkupHTML(context.Background(), testDoc, container)
	if err != nil {
		t.Fatal(err)
	}
	out, err := htmlutil.Serialize(container)
	if err != nil {
		t.Fatal(err)
	}
	return out, matches
}

func TestMarkupHTMLSingleMatch(t *testing.T) {
	out, matches := markup(t, "<p>see REF 2005/8 for details</p>")
	want := `<p>see <a href="/akn/za/act/2005/8">REF 2005/8</a> for details</p>`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: got %d, want 1", len(matches))
	}
	if matches[0].Text != "REF 2005/8" || matches[0].Href != "/akn/za/act/2005/8" {
		t.Errorf("match: %+v", matches[0])
	}
}

func TestMarkupHTMLMultipleMatchesInOneTextNode(t *testing.T) {
	out, matches := markup(t, "<p>REF 2005/8 and REF 2019/12.</p>")
	want := `<p><a href="/akn/za/act/2005/8">REF 2005/8</a> and <a href="/akn/za/act/2019/12">REF 2019/12</a>.</p>`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(matches) != 2 {
		t.Errorf("matches: got %d, want 2", len(matches))
	}
}

func TestMarkupHTMLSkipsLinkedRegions(t *testing.T) {
	in := `<p><a href="/already">REF 2005/8</a> but REF 2019/12</p>`
	out, matches := markup(t, in)
	want := `<p><a href="/already">REF 2005/8</a> but <a href="/akn/za/act/2019/12">REF 2019/12</a></p>`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(matches) != 1 {
		t.Errorf("matches: got %d, want 1", len(matches))
	}
}

func TestMarkupHTMLIdempotent(t *testing.T) {
	first, _ := markup(t, "<p>cites REF 2005/8 here</p>")
	second, matches := markup(t, first)
	if second != first {
		t.Errorf("second run changed output:\n first %q\nsecond %q", first, second)
	}
	if len(matches) != 0 {
		t.Errorf("second run produced %d matches, want 0", len(matches))
	}
}

func TestMarkupHTMLPreservesText(t *testing.T) {
	cases := []string{
		"<p>see REF 2005/8 for details</p>",
		"<div><p>REF 2005/8</p><p>REF 2019/12 and REF 2020/1</p></div>",
		"<p>no citations at all</p>",
		"<p><b>REF 2005/8</b> tail text REF 2019/12</p>",
	}
	for _, in := range cases {
		container, err := htmlutil.ParseFragment(in)
		if err != nil {
			t.Fatal(err)
		}
		before := htmlutil.TextContent(container)
		if _, err := NewMarker(refStrategy{}).MarkupHTML(context.Background(), testDoc, container); err != nil {
			t.Fatal(err)
		}
		if after := htmlutil.TextContent(container); after != before {
			t.Errorf("text changed for %q:\nbefore %q\n after %q", in, before, after)
		}
	}
}

func TestMarkupHTMLSuppressesSelfCitation(t *testing.T) {
	doc := frbr.MustParse("/akn/za/act/2005/8/eng")
	container, err := htmlutil.ParseFragment("<p>as in REF 2005/8 above</p>")
	if err != nil {
		t.Fatal(err)
	}
	matches, err := NewMarker(refStrategy{}).MarkupHTML(context.Background(), doc, container)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("self-citation marked: %+v", matches)
	}
	out, _ := htmlutil.Serialize(container)
	if strings.Contains(out, "<a") {
		t.Errorf("anchor inserted for self-citation: %q", out)
	}
}

func TestExtractTextPagedOffsets(t *testing.T) {
	text := "first page REF 2005/8 end." + PageBreak + "second page has REF 2019/12."
	matches, err := NewMarker(refStrategy{}).ExtractText(context.Background(), testDoc, text)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches: got %d, want 2", len(matches))
	}

	pages := strings.Split(text, PageBreak)
	for i, m := range matches {
		if m.Page != i {
			t.Errorf("match %d: page %d, want %d", i, m.Page, i)
		}
		if got := pages[m.Page][m.Start:m.End]; got != m.Text {
			t.Errorf("match %d: page substring %q, text %q", i, got, m.Text)
		}
	}
}

func TestExtractTextDoesNotSpanPages(t *testing.T) {
	// The pattern would match across the boundary if pages were joined.
	text := "ends with REF " + PageBreak + "2005/8 starts a page"
	matches, err := NewMarker(refStrategy{}).ExtractText(context.Background(), testDoc, text)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("match spans page boundary: %+v", matches)
	}
}

// zeroWidthStrategy can produce empty matches; they must be dropped.
type zeroWidthStrategy struct{ refStrategy }

func (zeroWidthStrategy) Pattern() *regexp.Regexp { return regexp.MustCompile(`x*`) }

func TestExtractTextIgnoresEmptyMatches(t *testing.T) {
	matches, err := NewMarker(zeroWidthStrategy{}).ExtractText(context.Background(), testDoc, "abc xx abc")
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.Start == m.End {
			t.Errorf("empty match emitted: %+v", m)
		}
	}
}

func TestMarkupHTMLTailAfterElement(t *testing.T) {
	// Match located in the text following a child element.
	out, _ := markup(t, "<p><b>bold</b> then REF 2005/8 after</p>")
	want := `<p><b>bold</b> then <a href="/akn/za/act/2005/8">REF 2005/8</a> after</p>`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestMatchGroups(t *testing.T) {
	ms := matchesIn(regexp.MustCompile(`(?P<a>x)(?P<b>y)?`), "x xy")
	if len(ms) != 2 {
		t.Fatalf("got %d matches", len(ms))
	}
	if ms[0].Group("b") != "" {
		t.Errorf("non-participating group: got %q", ms[0].Group("b"))
	}
	if ms[1].Group("a") != "x" || ms[1].Group("b") != "y" {
		t.Errorf("groups: %v", ms[1].Groups())
	}
}
