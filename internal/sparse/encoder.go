// Package sparse provides a BM25-style sparse vector encoder loaded from a
// pretrained vocabulary artifact. Query vectors carry IDF term weights,
// document vectors carry saturated term-frequency weights, so the index-side
// dot product reproduces the BM25 score.
package sparse

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kailas-cloud/competisearch/internal/domain"
)

// Default BM25 parameters (Robertson k1/b).
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Vector is a sparse vector keyed by vocabulary term id.
type Vector map[uint32]float64

// termStat is one vocabulary entry of the artifact.
type termStat struct {
	ID uint32 `json:"id"`
	DF int    `json:"df"`
}

// artifact is the on-disk encoder state.
type artifact struct {
	K1       float64             `json:"k1"`
	B        float64             `json:"b"`
	AvgDL    float64             `json:"avgdl"`
	DocCount int                 `json:"doc_count"`
	Terms    map[string]termStat `json:"terms"`
}

// Encoder turns text into sparse lexical-weight vectors.
type Encoder struct {
	k1       float64
	b        float64
	avgDL    float64
	docCount int
	terms    map[string]termStat
}

// Load reads a pretrained encoder artifact from disk.
func Load(path string) (*Encoder, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read sparse artifact %s: %v", domain.ErrDependency, path, err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse sparse artifact %s: %v", domain.ErrDependency, path, err)
	}
	return newFromArtifact(a)
}

func newFromArtifact(a artifact) (*Encoder, error) {
	if len(a.Terms) == 0 {
		return nil, fmt.Errorf("%w: sparse artifact has empty vocabulary", domain.ErrDependency)
	}
	e := &Encoder{
		k1:       a.K1,
		b:        a.B,
		avgDL:    a.AvgDL,
		docCount: a.DocCount,
		terms:    a.Terms,
	}
	if e.k1 <= 0 {
		e.k1 = DefaultK1
	}
	if e.b <= 0 {
		e.b = DefaultB
	}
	if e.avgDL <= 0 {
		e.avgDL = 1
	}
	return e, nil
}

// NewTrained builds an encoder from a corpus, assigning term ids in first-seen
// order. Used by the offline build pipeline when retraining is enabled.
func NewTrained(corpus []string) *Encoder {
	e := &Encoder{
		k1:    DefaultK1,
		b:     DefaultB,
		terms: make(map[string]termStat),
	}
	e.Train(corpus)
	return e
}

// Train recomputes document frequencies and corpus stats from the corpus.
// Existing term ids are preserved; new terms get the next free id.
func (e *Encoder) Train(corpus []string) {
	nextID := uint32(0)
	for _, st := range e.terms {
		if st.ID >= nextID {
			nextID = st.ID + 1
		}
	}

	df := make(map[string]int, len(e.terms))
	totalLen := 0
	for _, doc := range corpus {
		tokens := Tokenize(doc)
		totalLen += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	for tok, n := range df {
		st, ok := e.terms[tok]
		if !ok {
			st = termStat{ID: nextID}
			nextID++
		}
		st.DF = n
		e.terms[tok] = st
	}

	e.docCount = len(corpus)
	if e.docCount > 0 {
		e.avgDL = float64(totalLen) / float64(e.docCount)
	}
	if e.avgDL <= 0 {
		e.avgDL = 1
	}
}

// Save writes the encoder state as a JSON artifact.
func (e *Encoder) Save(path string) error {
	a := artifact{K1: e.k1, B: e.b, AvgDL: e.avgDL, DocCount: e.docCount, Terms: e.terms}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode sparse artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write sparse artifact %s: %w", path, err)
	}
	return nil
}

// EncodeQuery emits IDF weights for the distinct in-vocabulary query terms.
func (e *Encoder) EncodeQuery(text string) Vector {
	v := make(Vector)
	for _, tok := range Tokenize(text) {
		st, ok := e.terms[tok]
		if !ok {
			continue
		}
		v[st.ID] = e.idf(st.DF)
	}
	return v
}

// EncodeDocument emits length-normalized saturated term-frequency weights
// for the in-vocabulary document terms.
func (e *Encoder) EncodeDocument(text string) Vector {
	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	docLen := float64(len(tokens))
	lengthNorm := 1 - e.b + e.b*(docLen/e.avgDL)

	v := make(Vector)
	for tok, n := range tf {
		st, ok := e.terms[tok]
		if !ok {
			continue
		}
		f := float64(n)
		v[st.ID] = f * (e.k1 + 1) / (f + e.k1*lengthNorm)
	}
	return v
}

// idf is the Lucene BM25 IDF variant: log(1 + (N - df + 0.5)/(df + 0.5)).
// Always non-negative, unlike the classic formula.
func (e *Encoder) idf(df int) float64 {
	if e.docCount == 0 || df == 0 {
		return 0
	}
	n := float64(e.docCount)
	d := float64(df)
	return math.Log(1 + (n-d+0.5)/(d+0.5))
}

// VocabSize returns the number of vocabulary terms.
func (e *Encoder) VocabSize() int { return len(e.terms) }

// Tokenize lowercases the text, emits each CJK code point as its own token
// and latin/digit runs as word tokens. Everything else separates tokens.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var word []rune
	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
