package db

import (
	"database/sql"
	"encoding/json"

	"github.com/japaniel/wiktload/pkg/dictionary"
	"github.com/pkg/errors"
)

// entryColumns lists the stored entry fields in insert order.
var entryColumns = []string{
	"word",
	"part_of_speech",
	"etymology",
	"pronunciation",
	"reading",
	"plural",
	"tenses",
	"compare_forms",
	"definitions",
	"examples",
	"synonyms",
	"antonyms",
	"hypernyms",
	"hyponyms",
	"holonyms",
	"meronyms",
	"troponyms",
	"derived",
	"related",
	"homophones",
	"forms",
}

func entryColumnDefs(d Dialect) []string {
	defs := make([]string, len(entryColumns))
	for i, c := range entryColumns {
		if c == "word" {
			defs[i] = c + " " + d.WordType + " NOT NULL"
			continue
		}
		defs[i] = c + " TEXT"
	}
	return defs
}

// EncodeList renders a multi-valued field as a JSON array literal. A nil
// slice encodes as "[]".
func EncodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeList parses a column written by EncodeList.
func DecodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, errors.Wrap(err, "decoding list column")
	}
	return out, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// entryArgs returns the bind values for e in entryColumns order.
func entryArgs(e dictionary.Entry) []interface{} {
	return []interface{}{
		e.Word,
		e.PartOfSpeech,
		nullable(e.Etymology),
		nullable(e.Pronunciation),
		e.Reading,
		nullable(e.Plural),
		EncodeList(e.Tenses),
		EncodeList(e.Compare),
		EncodeList(e.Definitions),
		EncodeList(e.Examples),
		EncodeList(e.Synonyms),
		EncodeList(e.Antonyms),
		EncodeList(e.Hypernyms),
		EncodeList(e.Hyponyms),
		EncodeList(e.Holonyms),
		EncodeList(e.Meronyms),
		EncodeList(e.Troponyms),
		EncodeList(e.Derived),
		EncodeList(e.Related),
		EncodeList(e.Homophones),
		EncodeList(e.Forms),
	}
}

// scanEntry reads one row selected with entryColumns.
func scanEntry(rows *sql.Rows) (dictionary.Entry, error) {
	var (
		e                                 dictionary.Entry
		etym, pron, plural                sql.NullString
		reading                           sql.NullString
		tenses, compare, defs, examples   string
		syn, ant, hyper, hypo             string
		holo, mero, tropo, derived, rel   string
		homophones, forms                 string
	)
	if err := rows.Scan(&e.Word, &e.PartOfSpeech, &etym, &pron, &reading, &plural,
		&tenses, &compare, &defs, &examples, &syn, &ant, &hyper, &hypo,
		&holo, &mero, &tropo, &derived, &rel, &homophones, &forms); err != nil {
		return e, err
	}
	e.Etymology = fromNullable(etym)
	e.Pronunciation = fromNullable(pron)
	e.Reading = reading.String
	e.Plural = fromNullable(plural)

	lists := []struct {
		dst *[]string
		src string
	}{
		{&e.Tenses, tenses},
		{&e.Compare, compare},
		{&e.Definitions, defs},
		{&e.Examples, examples},
		{&e.Synonyms, syn},
		{&e.Antonyms, ant},
		{&e.Hypernyms, hyper},
		{&e.Hyponyms, hypo},
		{&e.Holonyms, holo},
		{&e.Meronyms, mero},
		{&e.Troponyms, tropo},
		{&e.Derived, derived},
		{&e.Related, rel},
		{&e.Homophones, homophones},
		{&e.Forms, forms},
	}
	for _, l := range lists {
		v, err := DecodeList(l.src)
		if err != nil {
			return e, err
		}
		*l.dst = v
	}
	return e, nil
}
