// Package layout extracts a NAACCR record layout from its layout document.
//
// The layout document is the plain-text rendering of the NAACCR standard's
// "Record Layout Table" chapter. It is not a formal grammar: section
// headings, footnotes and page furniture surround a multi-column table
// whose rows look like
//
//	428-433   6  135  Census Tract 2010  Demographic  New
//
// Parsing happens in three steps. FindTable locates the table region,
// ParseLine turns each candidate row into a Field, and Build assembles the
// fields into an immutable Schema. Parse runs all three over a document.
package layout

import (
	"fmt"
	"strconv"
)

// Section is one of the closed set of categorical groupings a field
// belongs to.
type Section string

// Recognized sections.
const (
	SectionRecordID             Section = "Record ID"
	SectionDemographic          Section = "Demographic"
	SectionCancerID             Section = "Cancer Identification"
	SectionHospitalSpecific     Section = "Hospital-Specific"
	SectionStage                Section = "Stage/Prognostic Factors"
	SectionTreatmentFirst       Section = "Treatment-1st Course"
	SectionTreatmentOther       Section = "Treatment-Subsequent & Other"
	SectionEditOverrides        Section = "Edit Overrides/Conversion History/System Admin"
	SectionFollowUp             Section = "Follow-up/Recurrence/Death"
	SectionSpecialUse           Section = "Special Use"
	SectionPatientConfidential  Section = "Patient-Confidential"
	SectionHospitalConfidential Section = "Hospital-Confidential"
	SectionOtherConfidential    Section = "Other-Confidential"
	SectionPathology            Section = "Pathology"
	SectionTextDiagnosis        Section = "Text-Diagnosis"
	SectionTextTreatment        Section = "Text-Treatment"
	SectionTextMiscellaneous    Section = "Text-Miscellaneous"
)

// Sections lists the recognized sections in match order.
var Sections = []Section{
	SectionRecordID,
	SectionDemographic,
	SectionCancerID,
	SectionHospitalSpecific,
	SectionStage,
	SectionTreatmentFirst,
	SectionTreatmentOther,
	SectionEditOverrides,
	SectionFollowUp,
	SectionSpecialUse,
	SectionPatientConfidential,
	SectionHospitalConfidential,
	SectionOtherConfidential,
	SectionPathology,
	SectionTextDiagnosis,
	SectionTextTreatment,
	SectionTextMiscellaneous,
}

// IsKnown reports whether s is one of the recognized sections.
func (s Section) IsKnown() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// Note is the optional change annotation in the last column of the table.
type Note string

// Recognized notes. NoteNone means the column was empty.
const (
	NoteNone     Note = ""
	NoteNew      Note = "New"
	NoteRevised  Note = "Revised"
	NoteGroup    Note = "Group"
	NoteSubfield Note = "Subfield"
)

// Notes lists the recognized notes in match order.
var Notes = []Note{NoteNew, NoteRevised, NoteGroup, NoteSubfield}

// ReservedItem is the item-number text used for fields with no item code.
const ReservedItem = "Reserved"

// Field describes one column range of a fixed-width record.
type Field struct {
	Start    int     `json:"start"`     // 1-based, inclusive
	End      int     `json:"end"`       // 1-based, inclusive
	Length   int     `json:"length"`    // End-Start+1, or 0 for zero-width
	ItemCode *int    `json:"item_code"` // nil for Reserved fields
	Name     string  `json:"name"`
	Section  Section `json:"section"`
	Note     Note    `json:"note,omitempty"`
	Line     int     `json:"line,omitempty"` // source line in the layout document, 0 if unknown
}

// Width is the number of columns spanned by the range, regardless of the
// declared Length.
func (f Field) Width() int {
	return f.End - f.Start + 1
}

// Code returns the item code and whether the field has one.
func (f Field) Code() (int, bool) {
	if f.ItemCode == nil {
		return 0, false
	}
	return *f.ItemCode, true
}

// IsReserved reports whether the field has no item code.
func (f Field) IsReserved() bool {
	return f.ItemCode == nil
}

// Decodable reports whether the field takes part in decoding and fact
// emission: it must be non-zero width and carry an item code.
func (f Field) Decodable() bool {
	return f.Length > 0 && f.ItemCode != nil
}

// Tokens renders the column range, length and item number the way they
// appear in the layout table.
func (f Field) Tokens() (columns, length, item string) {
	columns = fmt.Sprintf("%d-%d", f.Start, f.End)
	length = strconv.Itoa(f.Length)
	item = ReservedItem
	if code, ok := f.Code(); ok {
		item = strconv.Itoa(code)
	}
	return columns, length, item
}

func (f Field) String() string {
	columns, _, item := f.Tokens()
	return fmt.Sprintf("%s #%s %s (%s)", columns, item, f.Name, f.Section)
}

// ItemCode returns a pointer to code, for building Fields in code and tests.
func ItemCode(code int) *int {
	return &code
}
