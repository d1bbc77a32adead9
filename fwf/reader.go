package fwf

import (
	"bufio"
	"io"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// DefaultMaxLineBytes bounds a single record line. NAACCR records run from
// a few hundred bytes to about 24 KB with text fields.
const DefaultMaxLineBytes = 1024 * 1024

// Reader decodes a stream of fixed-width lines one Row at a time.
type Reader struct {
	scanner *bufio.Scanner
	dec     *Decoder
	line    int
	row     Row
	err     error
}

// NewReader reads lines from r. maxLineBytes <= 0 means DefaultMaxLineBytes.
func NewReader(r io.Reader, dec *Decoder, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	initial := 64 * 1024
	if initial > maxLineBytes {
		initial = maxLineBytes
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineBytes)
	return &Reader{scanner: scanner, dec: dec}
}

// Next advances to the next non-empty line.
func (r *Reader) Next() bool {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if len(text) == 0 || text == "\r" {
			continue
		}
		r.row = r.dec.DecodeLine(r.line, text)
		return true
	}
	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrapf(err, "failed to read record after line %d", r.line)
	}
	return false
}

// Row returns the row decoded by the last call to Next.
func (r *Reader) Row() Row { return r.row }

// LineNumber is the 1-based number of the last line read.
func (r *Reader) LineNumber() int { return r.line }

// Err returns the first read error, if any.
func (r *Reader) Err() error { return r.err }

// RawLine is a line with its position in the stream.
type RawLine struct {
	Number int
	Text   string
}

// ReadBatch reads up to n non-empty raw lines without decoding them.
// It returns io.EOF once the stream is exhausted and no lines were read.
func (r *Reader) ReadBatch(n int) ([]RawLine, error) {
	var batch []RawLine
	for len(batch) < n && r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if len(text) == 0 || text == "\r" {
			continue
		}
		batch = append(batch, RawLine{Number: r.line, Text: text})
	}
	if err := r.scanner.Err(); err != nil {
		return batch, errors.Wrapf(err, "failed to read record after line %d", r.line)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}
