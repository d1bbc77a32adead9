package eav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
)

func TestClassifier(t *testing.T) {
	base, err := LoadItemTypes("testdata/item_types.toml")
	require.NoError(t, err)
	assert.Equal(t, map[string]ItemKind{
		"Primary Site":      KindCoded,
		"Date of Diagnosis": KindDate,
		"Text--Remarks":     KindText,
	}, base)

	c, err := NewClassifier(ClassifierConfig{
		Coded:      []string{"Sex"},
		Identifier: []string{"Primary Site"},
	}, base)
	require.NoError(t, err)

	assert.Equal(t, KindCoded, c.Kind("Sex"))
	assert.Equal(t, KindIdentifier, c.Kind("Primary Site"), "config overrides the file")
	assert.Equal(t, KindDate, c.Kind("Date of Diagnosis"))
	assert.Equal(t, KindUnlisted, c.Kind("Census Tract 2010"))
	assert.Equal(t, []string{"Sex"}, c.Names(KindCoded))

	assert.False(t, KindIdentifier.Emitted())
	assert.False(t, KindUnlisted.Emitted())
	assert.True(t, KindText.Emitted())
}

func TestClassifier_Conflict(t *testing.T) {
	_, err := NewClassifier(ClassifierConfig{
		Coded: []string{"Sex"},
		Text:  []string{"Sex"},
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), "Sex")
}

func TestLoadItemTypes_Errors(t *testing.T) {
	_, err := LoadItemTypes("testdata/item_types_typo.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item.knd")

	_, err = LoadItemTypes("testdata/missing.toml")
	assert.Error(t, err)
}

func TestParseItemKind(t *testing.T) {
	k, err := ParseItemKind(" Coded ")
	require.NoError(t, err)
	assert.Equal(t, KindCoded, k)

	k, err = ParseItemKind("legacy_date")
	require.NoError(t, err)
	assert.True(t, k.Emitted())

	_, err = ParseItemKind("numeric")
	assert.Error(t, err)
}

func TestClassifier_Missing(t *testing.T) {
	s, err := layout.Build([]layout.Field{
		{Start: 1, End: 1, Length: 1, ItemCode: layout.ItemCode(220), Name: "Sex", Section: layout.SectionDemographic},
	}, layout.BuildOptions{Name: "test"})
	require.NoError(t, err)

	c, err := NewClassifier(ClassifierConfig{
		Coded:      []string{"Sex", "Primary Site"},
		LegacyDate: []string{"Date of Birth"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date of Birth", "Primary Site"}, c.Missing(s))
	assert.Equal(t, KindLegacyDate, c.Kind("Date of Birth"))
}
