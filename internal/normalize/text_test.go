package normalize

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
)

func TestNormalizeCategory(t *testing.T) {
	tests := map[string]string{
		"ff":             model.CategoryFurniture,
		" Seating ":      model.CategoryFurniture,
		"Accessories":    model.CategoryAccessories,
		"wall  decor":    model.CategoryAccessories,
		"LIGHTING":       model.CategoryLighting,
		"Case Goods":     model.CategoryCasegoods,
		"Floor Covering": model.CategoryDrapery,
		"plumbing":       model.CategoryMisc,
		"":               model.CategoryMisc,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeCategory(raw), raw)
	}
}

func TestCategoryFromCode(t *testing.T) {
	cat, ok := CategoryFromCode("LB-AC-101")
	assert.True(t, ok)
	assert.Equal(t, model.CategoryAccessories, cat)

	_, ok = CategoryFromCode("12345")
	assert.False(t, ok)
}

func TestNormalizeFinishText_KeepsCase(t *testing.T) {
	assert.Equal(t, "Walnut Veneer, Satin", NormalizeFinishText("  Walnut   Veneer, Satin "))
	assert.Equal(t, "TXT", NormalizeFinishCategory(" txt "))
}

func TestNormalizeVendorID(t *testing.T) {
	assert.Equal(t, "KGA123-4567P", NormalizeVendorID(" kga123 - 4567p "))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "FF-1000", NormalizeCode(" ff-1000"))
	assert.Equal(t, "FF-1000", NormalizeCode("#FF-1000"))
	assert.Equal(t, model.CodeAbsent, NormalizeCode(""))
	assert.Equal(t, model.CodeAbsent, NormalizeCode("n/a"))
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		qty  int
		unit string
	}{
		{"4", 4, "EA"},
		{"4 ea", 4, "EA"},
		{"(12) PR", 12, "PR"},
		{"1,200", 1200, "EA"},
		{"3.0", 3, "EA"},
		{"2 sets", 2, "SETS"},
	}
	for _, tt := range tests {
		qty, unit, err := ParseQuantity(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.qty, qty, tt.raw)
		assert.Equal(t, tt.unit, unit, tt.raw)
	}
}

func TestParseQuantity_Invalid(t *testing.T) {
	for _, raw := range []string{"", "-2", "2.5", "several"} {
		_, _, err := ParseQuantity(raw)
		require.Error(t, err, raw)
		assert.True(t, eris.Is(err, model.ErrMalformedField), raw)
	}
}

func TestParseQuantity_Zero(t *testing.T) {
	for _, raw := range []string{"0", "0 EA", "0.00"} {
		_, _, err := ParseQuantity(raw)
		require.Error(t, err, raw)
		assert.True(t, eris.Is(err, model.ErrZeroQuantity), raw)
		assert.False(t, eris.Is(err, model.ErrMalformedField), raw)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("- PILLOW SHELL WITH POLYESTER INSERT\n- KNIFE EDGE; JACQUARD\n\n")
	assert.Equal(t, []string{"PILLOW SHELL WITH POLYESTER INSERT", "KNIFE EDGE", "JACQUARD"}, got)
	assert.Nil(t, SplitList("   "))
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("Y"))
	assert.True(t, ParseBool(" yes "))
	assert.False(t, ParseBool("no"))
	assert.False(t, ParseBool(""))
}
