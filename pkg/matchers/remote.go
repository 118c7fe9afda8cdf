package matchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/coolbeans/citemark/pkg/frbr"
	"github.com/coolbeans/citemark/pkg/htmlutil"
	"github.com/coolbeans/citemark/pkg/markup"
)

// HTTPClient is an interface matching the Do method of *http.Client,
// allowing injection of mock clients in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// citatorTimeout bounds one citator call.
const citatorTimeout = 10 * time.Minute

// Citator asks a remote citation service for matches instead of running a
// local pattern. It is an optional capability: construct it only when an
// endpoint URL and API key are configured.
//
// The service is advisory. Timeouts, non-2xx responses and malformed
// bodies are logged and treated as "no matches"; they never fail the
// analyser run.
type Citator struct {
	baseURL string
	apiKey  string
	client  HTTPClient
	log     *slog.Logger
}

// NewCitator creates a remote citator matcher. A nil client falls back to
// an *http.Client with the citator timeout.
func NewCitator(baseURL, apiKey string, client HTTPClient, log *slog.Logger) *Citator {
	if client == nil {
		client = &http.Client{Timeout: citatorTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Citator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		log:     log,
	}
}

// Name returns "citator".
func (c *Citator) Name() string { return "citator" }

type citatorRequest struct {
	FrbrURI string `json:"frbr_uri"`
	Format  string `json:"format"`
	Body    string `json:"body"`
}

type citatorCitation struct {
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Href     string `json:"href"`
	TargetID string `json:"target_id,omitempty"`
}

type citatorResponse struct {
	Citations []citatorCitation `json:"citations"`
}

// call posts the document body to the citator and decodes the citations.
func (c *Citator) call(ctx context.Context, doc frbr.URI, format, body string) ([]citatorCitation, error) {
	ctx, cancel := context.WithTimeout(ctx, citatorTimeout)
	defer cancel()

	payload, err := json.Marshal(citatorRequest{
		FrbrURI: doc.ExpressionURI(),
		Format:  format,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get-citations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("citator: unexpected status %d", resp.StatusCode)
	}

	var decoded citatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("citator: decoding response: %w", err)
	}
	return decoded.Citations, nil
}

// ExtractText sends the paged text to the citator and adapts the response
// into page-local matches. Response offsets refer to the full supplied
// body; the page is taken from target_id ("page-N") when present, else
// derived from the offset.
func (c *Citator) ExtractText(ctx context.Context, doc frbr.URI, pagedText string) ([]markup.ExtractedMatch, error) {
	citations, err := c.call(ctx, doc, "text", pagedText)
	if err != nil {
		c.log.Warn("citator unavailable, continuing without remote matches",
			"document", doc.ExpressionURI(), "error", err)
		return nil, nil
	}

	pages := strings.Split(pagedText, markup.PageBreak)
	pageStarts := make([]int, len(pages))
	offset := 0
	for i, page := range pages {
		pageStarts[i] = offset
		offset += len(page) + len(markup.PageBreak)
	}

	var out []markup.ExtractedMatch
	for _, cit := range citations {
		if !markup.ValidHref(doc, cit.Href) {
			continue
		}
		page := pageFromTargetID(cit.TargetID)
		if page < 0 {
			page = pageForOffset(pageStarts, pages, cit.Start)
		}
		if page < 0 || page >= len(pages) {
			continue
		}
		start := cit.Start - pageStarts[page]
		end := cit.End - pageStarts[page]
		if start < 0 || end > len(pages[page]) || start >= end {
			continue
		}
		text := pages[page][start:end]
		if cit.Text != "" && cit.Text != text {
			continue
		}
		out = append(out, markup.ExtractedMatch{
			Text:  text,
			Start: start,
			End:   end,
			Href:  cit.Href,
			Page:  page,
		})
	}
	return out, nil
}

// MarkupHTML sends the serialised tree to the citator, then re-applies
// each returned citation by wrapping the first occurrence of its exact
// text in a still-unlinked text node.
func (c *Citator) MarkupHTML(ctx context.Context, doc frbr.URI, container *html.Node) ([]markup.ExtractedMatch, error) {
	body, err := htmlutil.Serialize(container)
	if err != nil {
		return nil, err
	}
	citations, err := c.call(ctx, doc, "html", body)
	if err != nil {
		c.log.Warn("citator unavailable, continuing without remote matches",
			"document", doc.ExpressionURI(), "error", err)
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(container, markup.DefaultCandidateXPath)
	if err != nil {
		return nil, err
	}

	var out []markup.ExtractedMatch
	for _, cit := range citations {
		if cit.Text == "" || !markup.ValidHref(doc, cit.Href) {
			continue
		}
		for i := 0; i < len(nodes); i++ {
			textNode := nodes[i]
			if textNode.Type != html.TextNode {
				continue
			}
			pos := strings.Index(textNode.Data, cit.Text)
			if pos < 0 {
				continue
			}
			el := htmlutil.WrapText(textNode, pos, pos+len(cit.Text), func(text string) *html.Node {
				a := htmlutil.NewElement(markup.DefaultMarkerTag, text)
				htmlutil.SetAttr(a, "href", cit.Href)
				return a
			})
			// The remainder of the split node stays scannable for the
			// following citations.
			if rest := htmlutil.NextText(el); rest != nil {
				nodes = append(nodes[:i+1], append([]*html.Node{rest}, nodes[i+1:]...)...)
			}
			out = append(out, markup.ExtractedMatch{
				Text:  cit.Text,
				Start: pos,
				End:   pos + len(cit.Text),
				Href:  cit.Href,
			})
			break
		}
	}
	return out, nil
}

// pageFromTargetID parses "page-N" (one-based) into a zero-based index,
// returning -1 when the id is absent or malformed.
func pageFromTargetID(targetID string) int {
	var n int
	if _, err := fmt.Sscanf(targetID, "page-%d", &n); err != nil || n < 1 {
		return -1
	}
	return n - 1
}

// pageForOffset locates the page containing a global byte offset.
func pageForOffset(pageStarts []int, pages []string, offset int) int {
	for i := len(pageStarts) - 1; i >= 0; i-- {
		if offset >= pageStarts[i] {
			if offset <= pageStarts[i]+len(pages[i]) {
				return i
			}
			return -1
		}
	}
	return -1
}
