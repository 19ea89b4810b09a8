package pdfpage

import "testing"

func TestPageSelectionDefaultsToFullRange(t *testing.T) {
	if got := pageSelection("", 12); got != "1-12" {
		t.Fatalf(`pageSelection("") = %q, want "1-12"`, got)
	}
	if got := pageSelection(" 2-3 ", 12); got != "2-3" {
		t.Fatalf("pageSelection did not trim: %q", got)
	}
	if got := pageSelection("3,7,9", 12); got != "3,7,9" {
		t.Fatalf("explicit selection altered: %q", got)
	}
}

func TestSanitizeKeepsSelectionFilenameSafe(t *testing.T) {
	if got := sanitize("1-3,7"); got != "1-3_7" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := sanitize("../etc"); got != "" {
		t.Fatalf("sanitize passed through %q", got)
	}
}
