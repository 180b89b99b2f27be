package index

import "testing"

func TestQuote_DoublesEmbeddedQuotes(t *testing.T) {
	if got := Quote("o'neil"); got != "'o''neil'" {
		t.Fatalf("got %s", got)
	}
	if got := Quote("医疗险"); got != "'医疗险'" {
		t.Fatalf("got %s", got)
	}
}

func TestAnyOf(t *testing.T) {
	if got := AnyOf("company", nil); got != "" {
		t.Fatalf("empty allow-list must produce no clause, got %q", got)
	}
	got := AnyOf("company", []string{"平安", "太保"})
	want := "(company = '平安' or company = '太保')"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAnd_SkipsEmptyClauses(t *testing.T) {
	got := And(NeInt("is_meta", 1), Eq("track", "医疗险"), "", AnyOf("channel", nil))
	want := "is_meta != 1 and track = '医疗险'"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHit_StringField(t *testing.T) {
	h := Hit{Fields: map[string]any{
		"product_id": " P001 ",
		"row_count":  float64(42),
		"flag":       true,
	}}
	if got := h.StringField("product_id"); got != "P001" {
		t.Errorf("product_id = %q", got)
	}
	if got := h.StringField("row_count"); got != "42" {
		t.Errorf("row_count = %q", got)
	}
	if got := h.StringField("missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
}
