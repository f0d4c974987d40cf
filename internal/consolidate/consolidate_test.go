package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/fingerprint"
	"github.com/sells-group/quote-cli/internal/model"
)

func newTestConsolidator() *Consolidator {
	return New(fingerprint.New(config.MatchConfig{
		Threshold:            0.85,
		DimensionToleranceIn: 1.0,
		TextWeight:           0.5,
		CategoryWeight:       0.2,
		DimensionWeight:      0.3,
	}))
}

func item(id, code string, qty int) model.Item {
	return model.Item{
		ID:                  id,
		Code:                code,
		Category:            model.CategoryFurniture,
		Name:                "Accent Chair",
		Vendor:              "Surya",
		Dimensions:          model.Dimensions{Height: "20", Width: "20", Depth: "5"},
		Quantity:            qty,
		Unit:                model.DefaultUnit,
		Accessories:         []string{},
		SpecialInstructions: []string{},
	}
}

func TestConsolidate_ExactDuplicatesSumQuantity(t *testing.T) {
	c := newTestConsolidator()
	res := c.Consolidate([]model.Item{item("1", "FF-1000", 3), item("2", "FF-1000", 2)})

	require.Len(t, res.Items, 1)
	assert.Equal(t, 5, res.Items[0].Quantity)
	assert.True(t, res.Items[0].HasDuplicate)
	assert.Equal(t, "1", res.Items[0].ID)
	assert.Equal(t, 1, res.Merged())
}

func TestConsolidate_WidthWithinToleranceMerges(t *testing.T) {
	c := newTestConsolidator()
	near := item("2", "FF-1000", 1)
	near.Dimensions.Width = "20.5"
	res := c.Consolidate([]model.Item{item("1", "FF-1000", 1), near})
	require.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Items[0].Quantity)

	far := item("2", "FF-1000", 1)
	far.Dimensions.Width = "23"
	res = c.Consolidate([]model.Item{item("1", "FF-1000", 1), far})
	require.Len(t, res.Items, 2)
	assert.False(t, res.Items[0].HasDuplicate)
	assert.False(t, res.Items[1].HasDuplicate)
}

func TestConsolidate_TransitiveClosure(t *testing.T) {
	c := newTestConsolidator()
	a := item("1", model.CodeAbsent, 1)
	b := item("2", model.CodeAbsent, 1)
	b.Dimensions.Width = "20.8"
	cc := item("3", model.CodeAbsent, 1)
	cc.Dimensions.Width = "21.6"

	e := fingerprint.New(config.MatchConfig{Threshold: 0.85, DimensionToleranceIn: 1, TextWeight: 0.5, CategoryWeight: 0.2, DimensionWeight: 0.3})
	require.True(t, e.Probable(a, b))
	require.True(t, e.Probable(b, cc))
	require.False(t, e.Probable(a, cc))

	res := c.Consolidate([]model.Item{a, b, cc})
	require.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Items[0].Quantity)
	assert.Equal(t, []string{"1", "2", "3"}, res.Groups[0].Members)
}

func TestConsolidate_PrimaryAndListUnion(t *testing.T) {
	c := newTestConsolidator()
	sparse := item("1", "FF-1", 2)
	sparse.Accessories = []string{"Cushion", "Glides"}
	sparse.SpecialInstructions = []string{"Deliver to loading dock"}

	rich := item("2", "FF-1", 4)
	rich.Description = "Accent chair with arms"
	rich.Manufacturer = "Surya"
	rich.HasImage = true
	rich.Accessories = []string{"Glides", "Arm caps"}
	rich.SpecialInstructions = []string{"Deliver to loading dock", "Label by floor"}

	res := c.Consolidate([]model.Item{sparse, rich})
	require.Len(t, res.Items, 1)

	got := res.Items[0]
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, "Accent chair with arms", got.Description)
	assert.Equal(t, 6, got.Quantity)
	assert.True(t, got.HasImage)
	assert.True(t, got.HasDuplicate)
	assert.Equal(t, []string{"Cushion", "Glides", "Arm caps"}, got.Accessories)
	assert.Equal(t, []string{"Deliver to loading dock", "Label by floor"}, got.SpecialInstructions)

	assert.Equal(t, map[string]string{"1": "2", "2": "2"}, res.MergedInto)
	assert.Equal(t, "2", res.Groups[0].Primary)
}

func TestConsolidate_SparseRecordJoinsCompleteOne(t *testing.T) {
	c := newTestConsolidator()
	sparse := item("1", "FF-1", 2)
	sparse.Dimensions = model.Dimensions{}

	full := item("2", "FF-1", 1)
	full.Description = "Accent chair, walnut frame, performance fabric"
	full.Manufacturer = "Surya"

	other := item("3", "FF-1", 1)
	other.Name = "Dining Chair"
	other.Vendor = "Bernhardt"
	other.Dimensions.Width = "30"

	res := c.Consolidate([]model.Item{sparse, full, other})
	require.Len(t, res.Items, 2)
	assert.Equal(t, "2", res.Items[0].ID)
	assert.Equal(t, 3, res.Items[0].Quantity)
	assert.Equal(t, []string{"1", "2"}, res.Groups[0].Members)
	assert.Equal(t, "3", res.Items[1].ID)
}

func TestConsolidate_PrimaryTieGoesToEarliest(t *testing.T) {
	c := newTestConsolidator()
	res := c.Consolidate([]model.Item{item("1", "FF-1", 1), item("2", "FF-1", 1)})
	require.Len(t, res.Items, 1)
	assert.Equal(t, "1", res.Items[0].ID)
}

func TestConsolidate_FirstSeenGroupOrder(t *testing.T) {
	c := newTestConsolidator()
	table := item("2", "FF-2", 1)
	table.Name = "Coffee Table"
	table.Category = model.CategoryCasegoods
	table.Dimensions = model.Dimensions{Height: "18", Width: "48", Depth: "24"}

	res := c.Consolidate([]model.Item{item("1", "FF-1", 1), table, item("3", "FF-1", 1)})
	require.Len(t, res.Items, 2)
	assert.Equal(t, "1", res.Items[0].ID)
	assert.Equal(t, 2, res.Items[0].Quantity)
	assert.Equal(t, "2", res.Items[1].ID)
	assert.False(t, res.Items[1].HasDuplicate)
}

func TestConsolidate_UnidentifiedItemsNeedSimilarity(t *testing.T) {
	c := newTestConsolidator()
	a := model.Item{ID: "1", Code: model.CodeAbsent, Category: model.CategoryMisc, Name: "Chair", Quantity: 1}
	b := model.Item{ID: "2", Code: model.CodeAbsent, Category: model.CategoryMisc, Name: "Floor lamp", Quantity: 1}
	res := c.Consolidate([]model.Item{a, b})
	assert.Len(t, res.Items, 2)
}

func TestConsolidate_Idempotent(t *testing.T) {
	c := newTestConsolidator()
	near := item("3", model.CodeAbsent, 2)
	near.Dimensions.Width = "20.5"
	near.Accessories = []string{"Glides"}
	lamp := item("4", "LT-1", 1)
	lamp.Name = "Floor Lamp"
	lamp.Category = model.CategoryLighting
	lamp.Dimensions = model.Dimensions{Height: "60"}

	first := c.Consolidate([]model.Item{item("1", "FF-1000", 3), item("2", "FF-1000", 2), near, lamp})
	second := c.Consolidate(first.Items)

	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 0, second.Merged())
}

func TestConsolidate_SumIsExact(t *testing.T) {
	c := newTestConsolidator()
	var items []model.Item
	want := 0
	for i, q := range []int{1, 7, 13, 1000, 2} {
		items = append(items, item(string(rune('a'+i)), "FF-9", q))
		want += q
	}
	res := c.Consolidate(items)
	require.Len(t, res.Items, 1)
	assert.Equal(t, want, res.Items[0].Quantity)
}

func TestConsolidate_DoesNotMutateInput(t *testing.T) {
	c := newTestConsolidator()
	a := item("1", "FF-1", 1)
	a.Accessories = []string{"Glides"}
	b := item("2", "FF-1", 1)
	b.Accessories = []string{"Cushion"}
	input := []model.Item{a, b}
	snapshot := model.CloneItems(input)

	res := c.Consolidate(input)
	res.Items[0].Accessories[0] = "changed"

	assert.Equal(t, snapshot, input)
}

func TestConsolidate_Empty(t *testing.T) {
	res := newTestConsolidator().Consolidate(nil)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Groups)
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	assert.True(t, uf.union(0, 1))
	assert.True(t, uf.union(3, 4))
	assert.False(t, uf.union(1, 0))
	assert.True(t, uf.union(1, 4))
	assert.Equal(t, uf.find(0), uf.find(3))
	assert.NotEqual(t, uf.find(0), uf.find(2))
}

func TestIdentity(t *testing.T) {
	items := []model.Item{
		{ID: "1", Code: "A", Quantity: 1},
		{ID: "2", Code: "A", Quantity: 2},
	}

	res := Identity(items)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 0, res.Merged())
	assert.Equal(t, map[string]string{"1": "1", "2": "2"}, res.MergedInto)
	assert.Equal(t, 2, res.Items[1].Quantity)

	res.Items[0].Code = "changed"
	assert.Equal(t, "A", items[0].Code)
}
