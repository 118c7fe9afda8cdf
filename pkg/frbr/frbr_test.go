package frbr

import "testing"

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "work_uri", in: "/akn/za/act/2005/8", out: "/akn/za/act/2005/8"},
		{name: "judgment", in: "/akn/za/judgment/zacc/2023/1", out: "/akn/za/judgment/zacc/2023/1"},
		{name: "locality", in: "/akn/za-kzn/judgment/zakzdhc/2023/7", out: "/akn/za-kzn/judgment/zakzdhc/2023/7"},
		{name: "subtype_and_actor", in: "/akn/aa-au/statement/resolution/achpr/2005/79", out: "/akn/aa-au/statement/resolution/achpr/2005/79"},
		{name: "expression", in: "/akn/za/judgment/zacc/2023/1/eng@2023-01-15", out: "/akn/za/judgment/zacc/2023/1/eng@2023-01-15"},
		{name: "expression_no_date", in: "/akn/ke/act/2019/12/eng", out: "/akn/ke/act/2019/12/eng"},
		{name: "portion", in: "/akn/za/act/2005/8/~sec_26", out: "/akn/za/act/2005/8/~sec_26"},
		{name: "expression_portion", in: "/akn/za/act/2005/8/eng@2015-01-01/~sec_2", out: "/akn/za/act/2005/8/eng@2015-01-01/~sec_2"},
		{name: "missing_leading_slash", in: "akn/za/act/2005/8", out: "/akn/za/act/2005/8"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.in, err)
			}
			if got := u.String(); got != tc.out {
				t.Errorf("round trip: got %q, want %q", got, tc.out)
			}
		})
	}
}

func TestParseComponents(t *testing.T) {
	u, err := Parse("/akn/aa-au/statement/resolution/achpr/2005/79")
	if err != nil {
		t.Fatal(err)
	}
	if u.Country != "aa" || u.Locality != "au" {
		t.Errorf("place: got %q/%q", u.Country, u.Locality)
	}
	if u.DocType != "statement" || u.Subtype != "resolution" || u.Actor != "achpr" {
		t.Errorf("doctype chain: got %q/%q/%q", u.DocType, u.Subtype, u.Actor)
	}
	if u.Date != "2005" || u.Number != "79" {
		t.Errorf("date/number: got %q/%q", u.Date, u.Number)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "not_akn", in: "/foo/za/act/2005/8"},
		{name: "too_short", in: "/akn/za/act"},
		{name: "bad_place", in: "/akn/z!/act/2005/8"},
		{name: "no_number", in: "/akn/za/act/2005"},
		{name: "portion_as_number", in: "/akn/za/act/2005/~sec_2"},
		{name: "bad_language", in: "/akn/za/act/2005/8/english"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.in); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.in)
			}
		})
	}
}

func TestWorkReduction(t *testing.T) {
	u := MustParse("/akn/za/act/2005/8/eng@2015-01-01/~sec_2")
	work := u.Work()
	if got := work.String(); got != "/akn/za/act/2005/8" {
		t.Errorf("Work(): got %q", got)
	}
	if u.Portion != "sec_2" {
		t.Errorf("Work() mutated receiver: portion %q", u.Portion)
	}
}

func TestPlaceAndYear(t *testing.T) {
	u := MustParse("/akn/za-kzn/judgment/zakzdhc/2023-02-20/7")
	if u.Place() != "za-kzn" {
		t.Errorf("Place(): got %q", u.Place())
	}
	if u.Year() != "2023" {
		t.Errorf("Year(): got %q", u.Year())
	}
}
