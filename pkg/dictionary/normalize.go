package dictionary

import (
	"slices"
	"strings"
)

const thesaurusMarker = "[⇒ thesaurus]"

// wordEscapes undoes the escape tokens wiktextract uses in headwords.
var wordEscapes = strings.NewReplacer(
	"`num`", "#",
	"`gt`", ">",
	"`vert`", "|",
	"`lowbar`", "-",
)

// Normalize decodes raw and builds its Entry. The returned entry may have no
// definitions; callers filter those out. Normalize keeps no state between
// calls and is safe for concurrent use.
func Normalize(raw RawRecord) (Entry, error) {
	rec, err := DecodeRecord(raw)
	if err != nil {
		return Entry{}, err
	}
	return NormalizeRecord(rec), nil
}

// NormalizeRecord builds the Entry for an already decoded record. rec must
// have passed DecodeRecord's required-field checks.
func NormalizeRecord(rec *Record) Entry {
	word := wordEscapes.Replace(*rec.Word)
	f := extractForms(rec.Forms)

	e := Entry{
		Word:          word,
		PartOfSpeech:  LookupPOS(*rec.POS).Label,
		Etymology:     rec.EtymologyText,
		Pronunciation: firstIPA(rec.Sounds),
		Plural:        f.plural,
		Tenses:        compact(f.presentSingular, f.presentParticiple, f.pastParticiple, f.past),
		Compare:       compareForms(word, f.comparative, f.superlative),
		Definitions:   []string{},
		Examples:      []string{},
		Synonyms:      []string{},
		Antonyms:      []string{},
		Hypernyms:     []string{},
		Hyponyms:      []string{},
		Holonyms:      appendRefs([]string{}, rec.Holonyms),
		Meronyms:      appendRefs([]string{}, rec.Meronyms),
		Troponyms:     appendRefs([]string{}, rec.Troponyms),
		Derived:       appendRefs([]string{}, rec.Derived),
		Related:       appendRefs([]string{}, rec.Related),
		Homophones:    []string{},
		Forms:         formSpellings(rec.Forms),
	}

	for _, s := range rec.Senses {
		if def, ok := definition(s); ok {
			e.Definitions = append(e.Definitions, def)
		}
		for _, ex := range s.Examples {
			if ex.Text != nil {
				e.Examples = append(e.Examples, *ex.Text)
			}
		}
		e.Synonyms = appendRefs(e.Synonyms, s.Synonyms)
		e.Antonyms = appendRefs(e.Antonyms, s.Antonyms)
		e.Hypernyms = appendRefs(e.Hypernyms, s.Hypernyms)
		e.Hyponyms = appendRefs(e.Hyponyms, s.Hyponyms)
		e.Holonyms = appendRefs(e.Holonyms, s.Holonyms)
		e.Meronyms = appendRefs(e.Meronyms, s.Meronyms)
		e.Troponyms = appendRefs(e.Troponyms, s.Troponyms)
		e.Derived = appendRefs(e.Derived, s.Derived)
		e.Related = appendRefs(e.Related, s.Related)
	}
	for _, snd := range rec.Sounds {
		if snd.Homophone != nil {
			e.Homophones = append(e.Homophones, *snd.Homophone)
		}
	}

	e.Definitions = distinct(e.Definitions)
	e.Examples = distinct(e.Examples)
	e.Synonyms = sortedDistinct(e.Synonyms)
	e.Antonyms = sortedDistinct(e.Antonyms)
	e.Hypernyms = sortedDistinct(e.Hypernyms)
	e.Hyponyms = sortedDistinct(e.Hyponyms)
	e.Holonyms = sortedDistinct(e.Holonyms)
	e.Meronyms = sortedDistinct(e.Meronyms)
	e.Troponyms = sortedDistinct(e.Troponyms)
	e.Derived = sortedDistinct(e.Derived)
	e.Related = sortedDistinct(e.Related)
	e.Homophones = sortedDistinct(e.Homophones)
	return e
}

// ThesaurusFilter strips the thesaurus link marker from a cross reference
// and reports whether what remains is a real word.
func ThesaurusFilter(ref string) (string, bool) {
	ref = strings.ReplaceAll(ref, thesaurusMarker, "")
	if ref == "" || strings.Contains(ref, "thesaurus") || strings.Contains(ref, "Thesaurus") {
		return "", false
	}
	return ref, true
}

type forms struct {
	plural            *string
	presentSingular   *string
	presentParticiple *string
	pastParticiple    *string
	past              *string
	comparative       *string
	superlative       *string
}

// extractForms scans forms in order. A plural form, a simple past form or a
// superlative form ends the scan, so anything listed after them is ignored.
func extractForms(list []RawForm) forms {
	var f forms
	set := func(slot **string, v *string) {
		if *slot == nil {
			*slot = v
		}
	}

	for _, form := range list {
		if len(form.Tags) == 0 {
			continue
		}
		first := form.Tags[0]
		if first == "plural" {
			f.plural = form.Form
			break
		}

		participle := slices.Contains(form.Tags, "participle")
		past := slices.Contains(form.Tags, "past")
		if slices.Contains(form.Tags, "singular") {
			set(&f.presentSingular, form.Form)
		}
		if participle && slices.Contains(form.Tags, "present") {
			set(&f.presentParticiple, form.Form)
		}
		if participle && past {
			set(&f.pastParticiple, form.Form)
		}
		if past && !participle {
			set(&f.past, form.Form)
			break
		}

		if first == "comparative" {
			set(&f.comparative, form.Form)
		}
		if first == "superlative" {
			set(&f.superlative, form.Form)
			break
		}
	}
	return f
}

// compareForms returns [word, comparative, superlative] without missing
// slots, or an empty list when neither degree form exists.
func compareForms(word string, comparative, superlative *string) []string {
	out := compact(&word, comparative, superlative)
	if len(out) == 1 {
		return []string{}
	}
	return out
}

// formSpellings returns the non-empty form strings without repeats.
func formSpellings(list []RawForm) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		if f.Form != nil && *f.Form != "" {
			out = append(out, *f.Form)
		}
	}
	return distinct(out)
}

func definition(s RawSense) (string, bool) {
	if len(s.RawGlosses) > 0 {
		return s.RawGlosses[0], true
	}
	if len(s.Glosses) > 0 {
		return s.Glosses[0], true
	}
	return "", false
}

func appendRefs(dst []string, refs []WordRef) []string {
	for _, r := range refs {
		if w, ok := ThesaurusFilter(r.Word); ok {
			dst = append(dst, w)
		}
	}
	return dst
}

func firstIPA(sounds []RawSound) *string {
	for _, s := range sounds {
		if s.IPA != nil && *s.IPA != "" {
			return s.IPA
		}
	}
	return nil
}

func compact(vals ...*string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// distinct removes repeated strings, keeping the first occurrence of each.
func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// sortedDistinct sorts by byte order, which for UTF-8 is code point order,
// then drops adjacent repeats.
func sortedDistinct(in []string) []string {
	slices.Sort(in)
	return slices.Compact(in)
}
