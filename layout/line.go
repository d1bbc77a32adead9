package layout

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// LineError reports a candidate layout line that could not be parsed.
// It wraps errors.ErrMalformedLayoutLine.
type LineError struct {
	Line   int    `json:"line,omitempty"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (e *LineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Text)
}

// Unwrap lets errors.Is match ErrMalformedLayoutLine.
func (e *LineError) Unwrap() error {
	return errors.ErrMalformedLayoutLine
}

func malformed(text, format string, args ...interface{}) *LineError {
	return &LineError{Text: text, Reason: fmt.Sprintf(format, args...)}
}

// ParseLine parses one row of the record layout table.
//
// The trailing note and section are peeled off first, since the section
// names contain spaces. What remains splits on whitespace into the column
// range, length, item number and the field name, which may itself contain
// spaces. Failures are returned as *LineError without a line number; Parse
// fills it in.
func ParseLine(text string) (Field, error) {
	rest := strings.TrimSpace(text)

	rest, note := cutNote(rest)
	rest, section, ok := cutSection(rest)
	if !ok {
		return Field{}, malformed(text, "unknown section")
	}

	tokens := splitFields(rest, 4)
	if len(tokens) < 4 {
		return Field{}, malformed(text, "expected column range, length, item number and name")
	}

	start, end, err := parseColumns(tokens[0])
	if err != nil {
		return Field{}, malformed(text, "%v", err)
	}

	length, err := parseNumber(tokens[1])
	if err != nil {
		return Field{}, malformed(text, "bad length %q", tokens[1])
	}
	if length != 0 && length != end-start+1 {
		return Field{}, malformed(text, "length %d does not match columns %d-%d", length, start, end)
	}

	var code *int
	if !strings.EqualFold(tokens[2], ReservedItem) {
		n, err := parseNumber(tokens[2])
		if err != nil {
			return Field{}, malformed(text, "bad item number %q", tokens[2])
		}
		code = &n
	}

	return Field{
		Start:    start,
		End:      end,
		Length:   length,
		ItemCode: code,
		Name:     tokens[3],
		Section:  section,
		Note:     note,
	}, nil
}

func cutNote(s string) (string, Note) {
	best := NoteNone
	for _, n := range Notes {
		if len(n) > len(best) && hasTokenSuffix(s, string(n)) {
			best = n
		}
	}
	return strings.TrimSpace(s[:len(s)-len(best)]), best
}

func cutSection(s string) (string, Section, bool) {
	var best Section
	for _, sec := range Sections {
		if len(sec) > len(best) && hasTokenSuffix(s, string(sec)) {
			best = sec
		}
	}
	if best == "" {
		return s, "", false
	}
	return strings.TrimSpace(s[:len(s)-len(best)]), best, true
}

// hasTokenSuffix reports whether s ends with suffix and the suffix starts
// on a whitespace boundary.
func hasTokenSuffix(s, suffix string) bool {
	if !strings.HasSuffix(s, suffix) {
		return false
	}
	head := s[:len(s)-len(suffix)]
	return head == "" || unicode.IsSpace(rune(head[len(head)-1]))
}

// splitFields splits s on runs of whitespace into at most n tokens. The
// last token keeps its interior spacing.
func splitFields(s string, n int) []string {
	var tokens []string
	s = strings.TrimSpace(s)
	for s != "" && len(tokens) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		tokens = append(tokens, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	if s != "" {
		tokens = append(tokens, s)
	}
	return tokens
}

func parseColumns(tok string) (int, int, error) {
	lo, hi, ok := strings.Cut(tok, "-")
	if !ok {
		return 0, 0, errors.Newf("bad column range %q", tok)
	}
	start, err := parseNumber(lo)
	if err != nil {
		return 0, 0, errors.Newf("bad column range %q", tok)
	}
	end, err := parseNumber(hi)
	if err != nil {
		return 0, 0, errors.Newf("bad column range %q", tok)
	}
	if start < 1 || end < start {
		return 0, 0, errors.Newf("column range %q is out of order", tok)
	}
	return start, end, nil
}

// parseNumber accepts thousands separators, as in "2,090".
func parseNumber(tok string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Newf("negative number %d", n)
	}
	return n, nil
}
