package dictionary

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// RawRecord is one undecoded JSON object from a wiktextract dump.
type RawRecord json.RawMessage

// Record matches the subset of the wiktextract (kaikki.org) record layout we read.
// Unknown keys are ignored.
type Record struct {
	Word          *string    `json:"word"`
	POS           *string    `json:"pos"`
	EtymologyText *string    `json:"etymology_text"`
	Forms         []RawForm  `json:"forms"`
	Senses        []RawSense `json:"senses"`
	Sounds        []RawSound `json:"sounds"`

	// Some dumps list these relations on the record rather than per sense.
	Holonyms  []WordRef `json:"holonyms"`
	Meronyms  []WordRef `json:"meronyms"`
	Troponyms []WordRef `json:"troponyms"`
	Derived   []WordRef `json:"derived"`
	Related   []WordRef `json:"related"`
}

type RawForm struct {
	Form *string  `json:"form"`
	Tags []string `json:"tags"`
}

type RawSense struct {
	RawGlosses []string     `json:"raw_glosses"`
	Glosses    []string     `json:"glosses"`
	Examples   []RawExample `json:"examples"`
	Synonyms   []WordRef    `json:"synonyms"`
	Antonyms   []WordRef    `json:"antonyms"`
	Hypernyms  []WordRef    `json:"hypernyms"`
	Hyponyms   []WordRef    `json:"hyponyms"`
	Holonyms   []WordRef    `json:"holonyms"`
	Meronyms   []WordRef    `json:"meronyms"`
	Troponyms  []WordRef    `json:"troponyms"`
	Derived    []WordRef    `json:"derived"`
	Related    []WordRef    `json:"related"`
}

type RawExample struct {
	Text *string `json:"text"`
}

// WordRef is a cross reference to another headword (synonym, antonym, ...).
type WordRef struct {
	Word string `json:"word"`
}

type RawSound struct {
	IPA       *string `json:"ipa"`
	Homophone *string `json:"homophone"`
}

// ErrMissingField is returned when a record lacks word, pos or senses.
var ErrMissingField = errors.New("missing required field")

// RecordError describes why a single record could not be normalized.
type RecordError struct {
	Index int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Index >= 0 {
		msg = "record " + strconv.Itoa(e.Index) + ": " + msg
	}
	return msg
}

func (e *RecordError) Unwrap() error { return e.Err }

// DecodeRecord parses raw into a Record and checks the required keys are present.
// A JSON null counts as absent.
func DecodeRecord(raw RawRecord) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &RecordError{Index: -1, Err: err}
	}
	switch {
	case rec.Word == nil:
		return nil, &RecordError{Index: -1, Field: "word", Err: ErrMissingField}
	case rec.POS == nil:
		return nil, &RecordError{Index: -1, Field: "pos", Err: ErrMissingField}
	case rec.Senses == nil:
		return nil, &RecordError{Index: -1, Field: "senses", Err: ErrMissingField}
	}
	return &rec, nil
}
