package dictionary

// Entry is the canonical, normalized form of one record. Entries are built
// once by Normalize and treated as read-only afterwards; every slice field
// is non-nil.
type Entry struct {
	Word          string
	PartOfSpeech  string
	Etymology     *string
	Pronunciation *string
	Reading       string
	Plural        *string
	Tenses        []string
	Compare       []string
	Definitions   []string
	Examples      []string
	Synonyms      []string
	Antonyms      []string
	Hypernyms     []string
	Hyponyms      []string
	Holonyms      []string
	Meronyms      []string
	Troponyms     []string
	Derived       []string
	Related       []string
	Homophones    []string
	// Forms lists every inflected spelling in the record, in input order.
	Forms []string
}

// Equal reports whether e and o share a headword. Part of speech is not
// part of an entry's identity.
func (e Entry) Equal(o Entry) bool {
	return e.Word == o.Word
}

// Admissible reports whether the entry has at least one definition.
func (e Entry) Admissible() bool {
	return len(e.Definitions) > 0
}

// IsNoun reports whether the entry is labeled as a noun.
func (e Entry) IsNoun() bool {
	return e.PartOfSpeech == LabelNoun
}

// WithReading returns a copy of e carrying the given reading.
func (e Entry) WithReading(reading string) Entry {
	e.Reading = reading
	return e
}
