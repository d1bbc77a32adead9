package eav

import (
	"strings"
	"time"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

const (
	// DateLayout is the NAACCR flat-file date format, yyyyMMdd.
	DateLayout = "20060102"
	// ISODate is how dates appear in record IDs and fact output.
	ISODate = "2006-01-02"
	// NoDateSentinel stands in for an absent date in a record ID.
	NoDateSentinel = "0000-00-00"
)

// ParseDate reads an 8-digit yyyyMMdd value. Blank, partial, non-numeric
// and impossible dates return false; they are unknown, not errors.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 8 || !isDigits(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseLegacyDate reads the six-digit yymmdd dates of older exports. A
// seven-digit value with a leading century digit of 0 or 9 has that digit
// dropped first.
func ParseLegacyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) == 7 && (s[0] == '0' || s[0] == '9'):
		s = s[1:]
	case len(s) != 6:
		return time.Time{}, errors.Newf("legacy date %q: want 6 or 7 digits", s)
	}
	t, err := time.Parse("060102", s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "legacy date %q", s)
	}
	return t, nil
}

// FormatKeyDate renders a record-ID date component, using the sentinel
// when the date is unknown.
func FormatKeyDate(raw, sentinel string) string {
	if t, ok := ParseDate(raw); ok {
		return t.Format(ISODate)
	}
	return sentinel
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
