package dictionary

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Source yields raw records one at a time. Record returns io.EOF once the
// input is exhausted.
type Source interface {
	Record() (RawRecord, error)
}

// JSONSource reads records from either a stream of top-level JSON values
// (JSON Lines or plain concatenation) or a single top-level array. It is
// single pass.
type JSONSource struct {
	br      *bufio.Reader
	dec     *json.Decoder
	inArray bool
	done    bool
}

// NewJSONSource returns a source decoding from r.
func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{br: bufio.NewReaderSize(r, 1<<16)}
}

// Record implements Source.
func (s *JSONSource) Record() (RawRecord, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.dec == nil {
		if err := s.start(); err != nil {
			s.done = true
			return nil, err
		}
	}

	if s.inArray && !s.dec.More() {
		s.done = true
		if _, err := s.dec.Token(); err != nil {
			return nil, errors.Wrap(err, "reading end of array")
		}
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		s.done = true
		if err == io.EOF && !s.inArray {
			return nil, io.EOF
		}
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "decoding record")
	}
	return RawRecord(raw), nil
}

// start skips a byte order mark and whitespace and works out the document shape.
func (s *JSONSource) start() error {
	if bom, err := s.br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = s.br.Discard(3)
	}
	for {
		b, err := s.br.Peek(1)
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = s.br.Discard(1)
			continue
		}
		s.dec = json.NewDecoder(s.br)
		if b[0] == '[' {
			if _, err := s.dec.Token(); err != nil {
				return errors.Wrap(err, "reading start of array")
			}
			s.inArray = true
		}
		return nil
	}
}

// FileSource is a JSONSource over a file on disk.
type FileSource struct {
	*JSONSource
	closers []io.Closer
}

// OpenSource opens path for reading records. Paths ending in .gz are
// decompressed on the fly. The caller must Close the source.
func OpenSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dump")
	}
	fs := &FileSource{closers: []io.Closer{f}}
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		fs.closers = append([]io.Closer{gz}, fs.closers...)
		r = gz
	}
	fs.JSONSource = NewJSONSource(r)
	return fs, nil
}

// Close releases the underlying file.
func (fs *FileSource) Close() error {
	var first error
	for _, c := range fs.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
