package sparse

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"cjk per rune", "医疗险", []string{"医", "疗", "险"}},
		{"latin run", "Medical-2025 plan", []string{"medical", "2025", "plan"}},
		{"mixed", "百万medical险", []string{"百", "万", "medical", "险"}},
		{"empty", "  ", nil},
		{"punctuation only", "。，！", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrainAndEncode(t *testing.T) {
	corpus := []string{
		"质子重离子医疗",
		"百万医疗保障",
		"重疾保障计划",
	}
	e := NewTrained(corpus)

	if e.VocabSize() == 0 {
		t.Fatal("training produced empty vocabulary")
	}

	q := e.EncodeQuery("医疗保障")
	if len(q) == 0 {
		t.Fatal("query vector is empty")
	}
	// Rare terms weigh more than common ones: 疗 appears in 2 docs, 障 in 2,
	// 质 in 1.
	rare := e.EncodeQuery("质")
	common := e.EncodeQuery("疗")
	if len(rare) != 1 || len(common) != 1 {
		t.Fatal("expected single-term vectors")
	}
	var rareW, commonW float64
	for _, w := range rare {
		rareW = w
	}
	for _, w := range common {
		commonW = w
	}
	if rareW <= commonW {
		t.Errorf("rare term weight %f should exceed common term weight %f", rareW, commonW)
	}
}

func TestEncodeQuery_OutOfVocabulary(t *testing.T) {
	e := NewTrained([]string{"医疗保障"})
	v := e.EncodeQuery("unknown words only")
	if len(v) != 0 {
		t.Fatalf("expected empty vector for OOV query, got %v", v)
	}
}

func TestEncodeDocument_TermFrequencySaturates(t *testing.T) {
	e := NewTrained([]string{"保 保 保 障", "障 险"})
	once := e.EncodeDocument("保")
	thrice := e.EncodeDocument("保 保 保")

	var w1, w3 float64
	for _, w := range once {
		w1 = w
	}
	for _, w := range thrice {
		w3 = w
	}
	if w3 <= w1 {
		t.Errorf("repeated term should weigh more: %f vs %f", w3, w1)
	}
	if w3 >= w1*3 {
		t.Errorf("term frequency must saturate, got %f vs %f", w3, w1)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := NewTrained([]string{"质子重离子", "百万医疗"})
	path := filepath.Join(t.TempDir(), "bm25.json")
	if err := e.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.VocabSize() != e.VocabSize() {
		t.Fatalf("vocab size %d != %d", loaded.VocabSize(), e.VocabSize())
	}
	if !reflect.DeepEqual(loaded.EncodeQuery("医疗"), e.EncodeQuery("医疗")) {
		t.Error("loaded encoder produces different query vectors")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestLoad_EmptyVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte(`{"k1":1.2,"b":0.75,"terms":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty vocabulary")
	}
}
