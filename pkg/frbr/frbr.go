// Package frbr implements the FRBR URI value type used to identify legal
// works and their expressions, following the Akoma Ntoso naming convention:
//
//	/akn/{country}[-{locality}]/{doctype}[/{subtype}][/{actor}]/{date}/{number}
//
// An expression URI appends a language component, optionally with an
// expression date, and either form may carry a trailing portion anchor:
//
//	/akn/za/judgment/zacc/2023/1/eng@2023-01-15
//	/akn/za/act/2005/8/~sec_26
//
// Parsing and emission round-trip; all URIs are canonicalised to the
// leading-slash form.
package frbr

import (
	"fmt"
	"regexp"
	"strings"
)

// URI is a parsed FRBR URI. The zero value is not valid; construct via Parse.
type URI struct {
	Country  string // two-letter country code, lowercase
	Locality string // optional sub-national code (e.g. "kzn")
	DocType  string // e.g. "act", "judgment", "statement"
	Subtype  string // optional, e.g. "resolution"
	Actor    string // optional issuing body, e.g. "achpr"
	Date     string // YYYY, YYYY-MM or YYYY-MM-DD
	Number   string

	// Expression-level parts, empty for a bare work URI.
	Language       string // ISO 639-3 code
	ExpressionDate string

	// Portion is an intra-work anchor (e.g. "sec_2"), without the "~".
	Portion string
}

var (
	dateRe     = regexp.MustCompile(`^\d{4}(?:-\d{2}(?:-\d{2})?)?$`)
	countryRe  = regexp.MustCompile(`^[a-z]{2}(?:-[a-z0-9]+)?$`)
	languageRe = regexp.MustCompile(`^[a-z]{3}$`)
)

// Parse parses an FRBR URI string. A missing leading slash is tolerated and
// canonicalised. The input may be a work URI, an expression URI, and may
// carry a portion anchor.
func Parse(s string) (URI, error) {
	var u URI

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if !strings.HasPrefix(s, "/akn/") {
		return u, fmt.Errorf("frbr: not an akn URI: %q", s)
	}

	parts := strings.Split(strings.Trim(s[len("/akn/"):], "/"), "/")
	if len(parts) < 4 {
		return u, fmt.Errorf("frbr: too few components: %q", s)
	}

	place := parts[0]
	if !countryRe.MatchString(place) {
		return u, fmt.Errorf("frbr: invalid place %q in %q", place, s)
	}
	u.Country = place[:2]
	if len(place) > 3 && place[2] == '-' {
		u.Locality = place[3:]
	}
	u.DocType = parts[1]

	// Everything between the doctype and the date is subtype and actor.
	dateIdx := -1
	for i := 2; i < len(parts); i++ {
		if dateRe.MatchString(parts[i]) {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 || dateIdx+1 >= len(parts) {
		return u, fmt.Errorf("frbr: missing date or number: %q", s)
	}
	switch dateIdx {
	case 2:
	case 3:
		u.Subtype = parts[2]
	case 4:
		u.Subtype = parts[2]
		u.Actor = parts[3]
	default:
		return u, fmt.Errorf("frbr: too many components before date: %q", s)
	}
	u.Date = parts[dateIdx]
	u.Number = parts[dateIdx+1]
	if u.Number == "" || strings.HasPrefix(u.Number, "~") {
		return u, fmt.Errorf("frbr: missing number: %q", s)
	}

	for _, part := range parts[dateIdx+2:] {
		switch {
		case strings.HasPrefix(part, "~"):
			u.Portion = part[1:]
		case u.Language == "":
			lang, exprDate, _ := strings.Cut(part, "@")
			if !languageRe.MatchString(lang) {
				return u, fmt.Errorf("frbr: invalid language %q in %q", lang, s)
			}
			if exprDate != "" && !dateRe.MatchString(exprDate) {
				return u, fmt.Errorf("frbr: invalid expression date %q in %q", exprDate, s)
			}
			u.Language = lang
			u.ExpressionDate = exprDate
		default:
			return u, fmt.Errorf("frbr: unexpected trailing component %q in %q", part, s)
		}
	}

	return u, nil
}

// MustParse is Parse for known-good literals; it panics on error.
func MustParse(s string) URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Place returns the country code, extended with the locality when present
// (e.g. "za-kzn").
func (u URI) Place() string {
	if u.Locality != "" {
		return u.Country + "-" + u.Locality
	}
	return u.Country
}

// WorkURI emits the work form: no language, expression date or portion.
func (u URI) WorkURI() string {
	var b strings.Builder
	b.WriteString("/akn/")
	b.WriteString(u.Place())
	b.WriteString("/")
	b.WriteString(u.DocType)
	if u.Subtype != "" {
		b.WriteString("/")
		b.WriteString(u.Subtype)
	}
	if u.Actor != "" {
		b.WriteString("/")
		b.WriteString(u.Actor)
	}
	b.WriteString("/")
	b.WriteString(u.Date)
	b.WriteString("/")
	b.WriteString(u.Number)
	return b.String()
}

// ExpressionURI emits the expression form. When no language is set it is
// identical to the work form.
func (u URI) ExpressionURI() string {
	s := u.WorkURI()
	if u.Language != "" {
		s += "/" + u.Language
		if u.ExpressionDate != "" {
			s += "@" + u.ExpressionDate
		}
	}
	return s
}

// String emits the most specific form available, including the portion.
func (u URI) String() string {
	s := u.ExpressionURI()
	if u.Portion != "" {
		s += "/~" + u.Portion
	}
	return s
}

// Work returns a copy reduced to the work level: expression parts and
// portion cleared.
func (u URI) Work() URI {
	u.Language = ""
	u.ExpressionDate = ""
	u.Portion = ""
	return u
}

// Year returns the four-digit year component of the date.
func (u URI) Year() string {
	if len(u.Date) >= 4 {
		return u.Date[:4]
	}
	return u.Date
}
