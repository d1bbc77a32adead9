package eav

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
)

// ItemKind says how the transformer treats a field.
type ItemKind string

const (
	// KindUnlisted fields are not emitted.
	KindUnlisted   ItemKind = ""
	KindCoded      ItemKind = "coded"
	KindDate       ItemKind = "date"
	KindIdentifier ItemKind = "identifier"
	KindText       ItemKind = "text"
	// KindLegacyDate fields hold yymmdd dates from older exports.
	KindLegacyDate ItemKind = "legacy_date"
)

// ParseItemKind accepts the kind names used in config and item-type files.
func ParseItemKind(s string) (ItemKind, error) {
	switch k := ItemKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCoded, KindDate, KindIdentifier, KindText, KindLegacyDate:
		return k, nil
	}
	return KindUnlisted, errors.NewInvalidRequestError("unknown item kind %q", s)
}

// Emitted reports whether fields of this kind become facts.
func (k ItemKind) Emitted() bool {
	return k == KindCoded || k == KindDate || k == KindText || k == KindLegacyDate
}

// ClassifierConfig lists field names by kind.
type ClassifierConfig struct {
	Coded      []string
	Date       []string
	Identifier []string
	Text       []string
	LegacyDate []string
}

// Classifier maps field names to kinds.
type Classifier struct {
	kinds map[string]ItemKind
}

// NewClassifier builds a classifier from base, typically loaded from an
// item-types file, overlaid with the lists in cfg. A name listed under two
// kinds in cfg is an error.
func NewClassifier(cfg ClassifierConfig, base map[string]ItemKind) (*Classifier, error) {
	c := &Classifier{kinds: make(map[string]ItemKind, len(base))}
	for name, kind := range base {
		c.kinds[name] = kind
	}

	listed := make(map[string]ItemKind)
	add := func(kind ItemKind, names []string) error {
		for _, name := range names {
			if prev, ok := listed[name]; ok && prev != kind {
				return errors.NewInvalidRequestError("field %q listed as both %s and %s", name, prev, kind)
			}
			listed[name] = kind
			c.kinds[name] = kind
		}
		return nil
	}
	for _, group := range []struct {
		kind  ItemKind
		names []string
	}{
		{KindIdentifier, cfg.Identifier},
		{KindDate, cfg.Date},
		{KindCoded, cfg.Coded},
		{KindText, cfg.Text},
		{KindLegacyDate, cfg.LegacyDate},
	} {
		if err := add(group.kind, group.names); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Kind returns the kind of name, or KindUnlisted.
func (c *Classifier) Kind(name string) ItemKind {
	return c.kinds[name]
}

// Names returns the names of a kind, sorted.
func (c *Classifier) Names(kind ItemKind) []string {
	var out []string
	for name, k := range c.kinds {
		if k == kind {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the classified names schema has no field for, sorted.
func (c *Classifier) Missing(schema *layout.Schema) []string {
	var out []string
	for name := range c.kinds {
		if _, ok := schema.Lookup(name); !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// itemTypesFile is the TOML layout of an item-types file:
//
//	[[item]]
//	name = "Primary Site"
//	kind = "coded"
type itemTypesFile struct {
	Item []struct {
		Name string `toml:"name"`
		Kind string `toml:"kind"`
	} `toml:"item"`
}

// LoadItemTypes reads an item-types file. Unknown keys and kinds are
// rejected so typos do not silently drop fields.
func LoadItemTypes(path string) (map[string]ItemKind, error) {
	var f itemTypesFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read item types %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.WithHint(
			errors.Newf("item types %s: unknown keys %s", path, strings.Join(keys, ", ")),
			"each [[item]] takes only name and kind")
	}

	out := make(map[string]ItemKind, len(f.Item))
	for i, item := range f.Item {
		if item.Name == "" {
			return nil, errors.Newf("item types %s: entry %d has no name", path, i+1)
		}
		kind, err := ParseItemKind(item.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "item types %s: %q", path, item.Name)
		}
		out[item.Name] = kind
	}
	return out, nil
}
