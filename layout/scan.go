package layout

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// ScanOptions controls how the record layout table is located.
type ScanOptions struct {
	// HeaderTokens must all appear on a line for it to be the table header.
	HeaderTokens []string
	// Terminator ends the table when a line starts with it.
	Terminator string
	// SubHeading lines repeat on each page of the table and are skipped.
	SubHeading string
}

// DefaultScanOptions returns the header, terminator and sub-heading used
// by the NAACCR text export.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		HeaderTokens: []string{"Column #", "Length", "Item #", "Item Name", "Section", "Note"},
		Terminator:   "CHAPTER VIII:",
		SubHeading:   "Chapter VII:  Record Layout Table",
	}
}

// Line is a candidate table row with its 1-based position in the document.
type Line struct {
	Number int
	Text   string
}

// Table marks the record layout table within a document. Header and End
// are 0-based line indexes; End is exclusive.
type Table struct {
	Header int
	End    int
}

// IsHeader reports whether line contains every header token.
func (o ScanOptions) IsHeader(line string) bool {
	if len(o.HeaderTokens) == 0 {
		return false
	}
	for _, tok := range o.HeaderTokens {
		if !strings.Contains(line, tok) {
			return false
		}
	}
	return true
}

// FindTable locates the first header line and the terminator after it.
// Without a terminator the table runs to the end of the document.
func FindTable(lines []string, opts ScanOptions) (Table, bool) {
	for i, line := range lines {
		if !opts.IsHeader(line) {
			continue
		}
		t := Table{Header: i, End: len(lines)}
		if opts.Terminator != "" {
			for j := i + 1; j < len(lines); j++ {
				if strings.HasPrefix(lines[j], opts.Terminator) {
					t.End = j
					break
				}
			}
		}
		return t, true
	}
	return Table{}, false
}

// Candidates returns the lines of the table that look like data rows:
// the first non-whitespace character is a digit and the line is not a
// repeated sub-heading.
func Candidates(lines []string, t Table, opts ScanOptions) []Line {
	var out []Line
	for i := t.Header + 1; i < t.End && i < len(lines); i++ {
		text := lines[i]
		if opts.SubHeading != "" && strings.Contains(text, opts.SubHeading) {
			continue
		}
		if !isDataLine(text) {
			continue
		}
		out = append(out, Line{Number: i + 1, Text: text})
	}
	return out
}

func isDataLine(text string) bool {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	return trimmed != "" && trimmed[0] >= '0' && trimmed[0] <= '9'
}

// Scan locates the table and returns its candidate lines. An empty result
// means the document has no recognizable layout table.
func Scan(lines []string, opts ScanOptions) []Line {
	t, ok := FindTable(lines, opts)
	if !ok {
		return nil
	}
	return Candidates(lines, t, opts)
}

const maxLayoutLine = 1024 * 1024

// ReadLines reads a layout document and normalizes each line.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLayoutLine)

	t := newLineNormalizer()
	var lines []string
	for scanner.Scan() {
		lines = append(lines, normalize(t, scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read layout document")
	}
	return lines, nil
}

// Text extraction from the published document leaves non-breaking spaces
// and typographic dashes in column ranges. Compatibility normalization
// folds the spaces; dashes and whitespace controls are mapped, and other
// control characters dropped.
func newLineNormalizer() transform.Transformer {
	return transform.Chain(
		norm.NFKC,
		runes.Map(func(r rune) rune {
			switch r {
			case '\u2010', '\u2011', '\u2012', '\u2013', '\u2014', '\u2212':
				return '-'
			case '\t', '\f', '\v', '\r':
				return ' '
			}
			return r
		}),
		runes.Remove(runes.In(unicode.Cc)),
	)
}

// NormalizeLine folds a single line the way ReadLines does.
func NormalizeLine(s string) string {
	return normalize(newLineNormalizer(), s)
}

func normalize(t transform.Transformer, s string) string {
	out, _, err := transform.String(t, strings.TrimSuffix(s, "\r"))
	if err != nil {
		return s
	}
	return out
}
