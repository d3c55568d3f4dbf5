// Package reading derives kana readings for Japanese headwords.
package reading

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/unicode/norm"

	"github.com/japaniel/wiktload/pkg/dictionary"
)

// Kagome IPA feature index holding the katakana reading.
const readingFeature = 7

// Annotator fills Entry.Reading for headwords written in Japanese script.
type Annotator struct {
	t *tokenizer.Tokenizer
}

// NewAnnotator loads the IPA dictionary and builds a tokenizer.
func NewAnnotator() (*Annotator, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Annotator{t: t}, nil
}

// Annotate returns e with its reading set when one can be derived. Entries
// without Japanese script, or containing a segment kagome has no reading
// for, come back unchanged.
func (a *Annotator) Annotate(e dictionary.Entry) dictionary.Entry {
	if !IsJapanese(e.Word) {
		return e
	}
	if r, ok := a.Reading(e.Word); ok {
		return e.WithReading(r)
	}
	return e
}

// Reading returns the hiragana reading of text. Text is NFKC normalized
// first so half-width katakana ("ﾃｽﾄ") tokenizes like its full-width form.
func (a *Annotator) Reading(text string) (string, bool) {
	var b strings.Builder
	for _, token := range a.t.Tokenize(norm.NFKC.String(text)) {
		if token.Class == tokenizer.DUMMY || strings.TrimSpace(token.Surface) == "" {
			continue
		}
		features := token.Features()
		switch {
		case len(features) > readingFeature && features[readingFeature] != "*":
			b.WriteString(ToHiragana(features[readingFeature]))
		case isKana(token.Surface):
			b.WriteString(ToHiragana(token.Surface))
		default:
			return "", false
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// IsJapanese reports whether s contains Han, Hiragana or Katakana characters.
func IsJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func isKana(s string) bool {
	for _, r := range s {
		if !unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return false
		}
	}
	return s != ""
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
