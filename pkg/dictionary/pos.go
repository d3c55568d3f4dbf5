package dictionary

// PartOfSpeech pairs the short abbreviation used for a source pos tag with
// its display label.
type PartOfSpeech struct {
	Abbrev string
	Label  string
}

const LabelNoun = "Noun"

var partsOfSpeech = map[string]PartOfSpeech{
	"abbrev":      {"ab", "Abbreviation"},
	"adj":         {"adj", "Adjective"},
	"adv":         {"adv", "Adverb"},
	"affix":       {"af", "Affix"},
	"article":     {"ar", "Article"},
	"character":   {"ch", "Character"},
	"circumfix":   {"cr", "Circumfix"},
	"conj":        {"cn", "Conjunction"},
	"det":         {"dt", "Determiner"},
	"infix":       {"inf", "Infix"},
	"interfix":    {"intf", "Interfix"},
	"intj":        {"int", "Interjection"},
	"name":        {"nm", "Name"},
	"noun":        {"n", LabelNoun},
	"num":         {"num", "Numeral"},
	"particle":    {"prt", "Particle"},
	"phrase":      {"ph", "Phrase"},
	"postp":       {"pp", "Postposition"},
	"prefix":      {"prf", "Prefix"},
	"prep":        {"prp", "Preposition"},
	"prep_phrase": {"prpp", "Prepositional phrase"},
	"pron":        {"prn", "Pronoun"},
	"proverb":     {"prv", "Proverb"},
	"punct":       {"pct", "Punctuation"},
	"suffix":      {"sf", "Suffix"},
	"symbol":      {"sm", "Symbol"},
	"verb":        {"v", "Verb"},
}

// LookupPOS maps a source pos tag to its abbreviation and label. Unknown
// tags come back unchanged as both.
func LookupPOS(tag string) PartOfSpeech {
	if p, ok := partsOfSpeech[tag]; ok {
		return p
	}
	return PartOfSpeech{Abbrev: tag, Label: tag}
}

// Known reports whether tag is in the part-of-speech table.
func Known(tag string) bool {
	_, ok := partsOfSpeech[tag]
	return ok
}
