// Package flynote parses the dash-separated legal-topic strings attached
// to judgments into hierarchical topic paths and reconciles them against a
// taxonomy tree.
package flynote

import (
	"regexp"
	"strings"

	"github.com/coolbeans/citemark/pkg/htmlutil"
)

// separatorRe splits a flynote segment into path parts. Em and en dashes
// separate regardless of spacing; a plain hyphen (or its non-breaking
// variants) separates only when surrounded by whitespace, so hyphenated
// words stay intact.
var separatorRe = regexp.MustCompile(`\s*[\x{2013}\x{2014}]\s*|\s+[-\x{2010}\x{2011}]\s+`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParsePaths parses a flynote string into hierarchical topic paths. The
// input may be HTML; tags are stripped first. A string without any topic
// separator is prose and yields no paths.
//
// Semicolons partition the flynote into sibling segments. The first
// segment sets the running path; each later segment of n parts replaces
// the last n entries of the running path (or the whole path when it is at
// least as long), and every resulting path is emitted in order.
func ParsePaths(flynote string) [][]string {
	text := normalize(flynote)
	if text == "" || !separatorRe.MatchString(text) {
		return nil
	}

	var paths [][]string
	var running []string
	for i, segment := range strings.Split(text, ";") {
		parts := splitParts(segment)
		if len(parts) == 0 {
			continue
		}
		if i == 0 || len(parts) >= len(running) {
			running = parts
		} else {
			running = append(running[:len(running)-len(parts)], parts...)
		}
		path := make([]string, len(running))
		copy(path, running)
		paths = append(paths, path)
	}
	return paths
}

// normalize strips markup and whitespace noise: HTML tags are removed,
// non-breaking spaces become spaces, runs of whitespace collapse, and a
// trailing full stop is dropped.
func normalize(flynote string) string {
	text := flynote
	if strings.Contains(text, "<") || strings.Contains(text, "&") {
		if container, err := htmlutil.ParseFragment(text); err == nil {
			text = htmlutil.TextContent(container)
		}
	}
	text = strings.ReplaceAll(text, " ", " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ".")
	return strings.TrimSpace(text)
}

func splitParts(segment string) []string {
	var parts []string
	for _, part := range separatorRe.Split(segment, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalises a topic name for comparison: lowercase, with runs of
// non-alphanumeric characters collapsed to single hyphens.
func Slugify(name string) string {
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
