// Package analysis implements the tokenizer/stemmer/stopword pipeline that
// turns document zones into positioned term occurrences. The pipeline shape
// — tokenize, lowercase, strip stopwords, filter by length, stem — and the
// default English stopword list are carried over from the teacher's
// analyzer.go; what's new is zone awareness: each zone contributes to a
// running per-field position counter, with a configurable gap inserted
// between zones of the same field so adjacency (and therefore phrase
// matches) never crosses a zone boundary undetected (spec §3 "Document").
package analysis

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"

	"github.com/infisearch/infisearch/internal/fieldcfg"
)

// Tokenizer splits raw text into word-like tokens. The default
// implementation is Unicode-aware: any rune that is not a letter or digit is
// a delimiter. A language with different word-boundary rules (e.g. CJK)
// plugs in here, per spec §4.5's "pluggable tokenizer capability".
type Tokenizer interface {
	Tokenize(text string) []string
}

// DefaultTokenizer splits on any non-letter, non-digit rune.
type DefaultTokenizer struct{}

// Tokenize implements Tokenizer.
func (DefaultTokenizer) Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// EnglishStemmer wraps the Snowball (Porter2) English stemmer for use as a
// fieldcfg.Language.Stemmer.
func EnglishStemmer(token string) string {
	return snowballeng.Stem(token, false)
}

// DefaultEnglish returns the language configuration the teacher's Analyze
// used implicitly: English stemming, the built-in stopword list, no custom
// tokenizer.
func DefaultEnglish() fieldcfg.Language {
	return fieldcfg.Language{
		Code:      "en",
		Stemmer:   EnglishStemmer,
		Stopwords: englishStopwords,
	}
}

// Zone is one named field's worth of text within a single document, as
// described in spec §3 "Document".
type Zone struct {
	FieldIndex int
	Text       string
}

// Occurrence is one analyzed term and its position within its field.
type Occurrence struct {
	Term     string
	Position uint32
}

// Pipeline runs the tokenize -> lowercase -> stopword -> length -> stem
// chain over a document's zones, tracking per-field position counters and
// inserting zoneGap between successive zones of the same field.
type Pipeline struct {
	Tokenizer      Tokenizer
	Language       fieldcfg.Language
	MinTokenLength int
	ZoneGap        uint32
}

// NewPipeline builds a pipeline with the teacher's default tuning (min
// token length 2) over the given language.
func NewPipeline(lang fieldcfg.Language, zoneGap uint32) Pipeline {
	return Pipeline{
		Tokenizer:      DefaultTokenizer{},
		Language:       lang,
		MinTokenLength: 2,
		ZoneGap:        zoneGap,
	}
}

// Analyze processes zones in order and returns, per field index, the
// ordered list of term occurrences with positions.
func (p Pipeline) Analyze(zones []Zone) map[int][]Occurrence {
	result := make(map[int][]Occurrence)
	nextPos := make(map[int]uint32)

	for _, z := range zones {
		tokens := p.Tokenizer.Tokenize(z.Text)
		tokens = lowercaseFilter(tokens)
		if p.Language.Stopwords != nil {
			tokens = stopwordFilter(tokens, p.Language.Stopwords)
		}
		tokens = lengthFilter(tokens, p.MinTokenLength)
		if p.Language.Stemmer != nil {
			tokens = stemFilter(tokens, p.Language.Stemmer)
		}

		base := nextPos[z.FieldIndex]
		if base > 0 {
			base += p.ZoneGap
		}
		for i, tok := range tokens {
			result[z.FieldIndex] = append(result[z.FieldIndex], Occurrence{Term: tok, Position: base + uint32(i)})
		}
		nextPos[z.FieldIndex] = base + uint32(len(tokens))
	}

	return result
}

func lowercaseFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = strings.ToLower(token)
	}
	return r
}

func stopwordFilter(tokens []string, stopwords map[string]struct{}) []string {
	r := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, stop := stopwords[token]; !stop {
			r = append(r, token)
		}
	}
	return r
}

func lengthFilter(tokens []string, minLength int) []string {
	r := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) >= minLength {
			r = append(r, token)
		}
	}
	return r
}

func stemFilter(tokens []string, stem func(string) string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = stem(token)
	}
	return r
}
