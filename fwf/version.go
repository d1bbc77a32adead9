package fwf

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// RecordVersionItem is the item code of "NAACCR Record Version".
const RecordVersionItem = 50

// ParseRecordVersion reads a record version as written in the data.
// Records carry the version as three digits, major then minor, so "121"
// is 12.1 and "180" is 18.0. Dotted versions are also accepted.
func ParseRecordVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if len(s) == 3 && isDigits(s) {
		s = s[:2] + "." + s[2:]
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid record version %q", s)
	}
	return v, nil
}

// VersionCheck compares each record's version against the version the
// layout was written for.
type VersionCheck struct {
	expr       string
	constraint *semver.Constraints
}

// NewVersionCheck parses a semver constraint such as "12.1" or "~12".
// An empty expression disables the check and returns nil.
func NewVersionCheck(expr string) (*VersionCheck, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid layout version constraint %q", expr)
	}
	return &VersionCheck{expr: expr, constraint: c}, nil
}

// Check returns an error when row declares a record version outside the
// constraint. Rows without a record version field or value pass. A nil
// check passes everything.
func (vc *VersionCheck) Check(row Row) error {
	if vc == nil {
		return nil
	}
	raw, ok := row.GetItem(RecordVersionItem)
	if !ok || raw == "" {
		return nil
	}
	v, err := ParseRecordVersion(raw)
	if err != nil {
		return err
	}
	if !vc.constraint.Check(v) {
		return errors.Newf("record version %s does not satisfy layout version %s", v, vc.expr)
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// CheckRecordVersion is a one-off VersionCheck of row against constraint.
func CheckRecordVersion(row Row, constraint string) error {
	vc, err := NewVersionCheck(constraint)
	if err != nil {
		return err
	}
	return vc.Check(row)
}
