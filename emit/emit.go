// Package emit renders a layout.Schema as text artifacts for a warehouse
// loader: a SQL*Loader control file, a table definition and a union-style
// EAV view. Output depends only on the schema and the target names, so
// regenerating from the same layout gives byte-identical files.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rwaitman/naaccr-tumor-data/layout"
)

// Names are the target database objects.
type Names struct {
	Schema string
	Table  string
	View   string
	// IDColumns are selected on every branch of the EAV view.
	IDColumns []string
}

// DefaultNames targets NAACR.EXTRACT and NAACR.EXTRACT_EAV, keyed by
// accession number and hospital sequence number.
func DefaultNames() Names {
	return Names{
		Schema:    "NAACR",
		Table:     "EXTRACT",
		View:      "EXTRACT_EAV",
		IDColumns: []string{"Accession Number--Hosp", "Sequence Number--Hospital"},
	}
}

// LoadControl lists the position of every non-zero-length field.
func LoadControl(schema *layout.Schema, n Names) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LOAD DATA\nTRUNCATE\nINTO TABLE %s.%s (\n", ident(n.Schema), ident(n.Table))
	var cols []string
	for _, f := range schema.Fields() {
		if f.Length == 0 {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s position(%d:%d) CHAR", ident(f.Name), f.Start, f.End))
	}
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString(")\n")
	return b.String()
}

// TableDDL declares one varchar2 column per non-zero-length field.
func TableDDL(schema *layout.Schema, n Names) string {
	var b strings.Builder
	fmt.Fprintf(&b, "create table %s.%s (\n", ident(n.Schema), ident(n.Table))
	var cols []string
	for _, f := range schema.Fields() {
		if f.Length == 0 {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s varchar2(%d)", ident(f.Name), f.Length))
	}
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString("\n)\n")
	return b.String()
}

// EAVViewDDL unions one select per field that has an item code and a
// length of at least one, in ascending item code order. Fields sharing an
// item code keep layout order.
func EAVViewDDL(schema *layout.Schema, n Names) string {
	var items []layout.Field
	for _, f := range schema.Fields() {
		if f.Length >= 1 && f.ItemCode != nil {
			items = append(items, f)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return *items[i].ItemCode < *items[j].ItemCode
	})

	ids := make([]string, len(n.IDColumns))
	for i, c := range n.IDColumns {
		ids[i] = ident(c)
	}
	idList := strings.Join(ids, ", ")
	if idList != "" {
		idList += ", "
	}

	var b strings.Builder
	fmt.Fprintf(&b, "create or replace view %s.%s as \n", ident(n.Schema), ident(n.View))
	for i, f := range items {
		if i > 0 {
			b.WriteString("\nunion all\n")
		}
		fmt.Fprintf(&b, "select %s\n", idList)
		fmt.Fprintf(&b, "%d as ItemNbr,\n", *f.ItemCode)
		fmt.Fprintf(&b, "%s as ItemName,\n", literal(f.Name))
		fmt.Fprintf(&b, "%s as value\n", ident(f.Name))
		fmt.Fprintf(&b, "from %s.%s\n", ident(n.Schema), ident(n.Table))
	}
	return b.String()
}

// ident quotes a SQL identifier.
func ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// literal quotes a SQL string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
