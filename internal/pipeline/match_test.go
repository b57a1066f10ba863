package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakasem/internal"
)

func TestExtractItemsQuantityAsPrinted(t *testing.T) {
	products := testCatalog().Products

	items, skipped := ExtractItems([]string{"5002116 צינור שחור 16 12.00", "606850 מתאם 3.00"}, products, nil)
	assert.Empty(t, skipped)
	require.Len(t, items, 2)

	assert.Equal(t, "5002116", items[0].Code)
	assert.Equal(t, 12.0, items[0].Quantity)
	assert.Equal(t, "606850", items[1].Code)
	assert.Equal(t, 3.0, items[1].Quantity)
	assert.Equal(t, 4.5, items[1].UnitPrice)
}

func TestExtractItemsNeighbourLines(t *testing.T) {
	products := testCatalog().Products

	cases := []struct {
		name  string
		lines []string
		want  float64
	}{
		{"same line", []string{"20.00", "5002116 3.00", "40.00"}, 3},
		{"previous line", []string{"20.00", "5002116 צינור", "40.00"}, 20},
		{"next line", []string{"כותרת", "5002116 צינור", "40.00"}, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, _ := ExtractItems(tc.lines, products, nil)
			require.Len(t, items, 1)
			assert.Equal(t, tc.want, items[0].Quantity)
		})
	}
}

func TestExtractItemsSkips(t *testing.T) {
	products := testCatalog().Products

	cases := []struct {
		name   string
		lines  []string
		reason SkipReason
	}{
		{"no quantity", []string{"5002116 צינור"}, SkipNoQuantity},
		{"zero", []string{"5002116 0.00"}, SkipZero},
		// Only four integer digits are read, so 10000.00 surfaces as 0000.00.
		{"ten thousand", []string{"5002116 10000.00"}, SkipZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, skipped := ExtractItems(tc.lines, products, nil)
			assert.Empty(t, items)
			require.Len(t, skipped, 1)
			assert.Equal(t, "5002116", skipped[0].Code)
			assert.Equal(t, 1, skipped[0].LineNo)
			assert.Equal(t, tc.reason, skipped[0].Reason)
		})
	}
}

func TestExtractItemsKeepsScanningAfterRejectedLine(t *testing.T) {
	products := testCatalog().Products

	cases := []struct {
		name   string
		lines  []string
		reason SkipReason
	}{
		{"header without quantity", []string{"5002116 צינור שחור", "שורה", "שורה", "שורה", "5002116 8.00"}, SkipNoQuantity},
		{"zero then quantity", []string{"5002116 0.00", "שורה", "שורה", "שורה", "5002116 8.00"}, SkipZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, skipped := ExtractItems(tc.lines, products, nil)
			require.Len(t, items, 1)
			assert.Equal(t, 8.0, items[0].Quantity)
			require.Len(t, skipped, 1)
			assert.Equal(t, 1, skipped[0].LineNo)
			assert.Equal(t, tc.reason, skipped[0].Reason)
		})
	}
}

func TestExtractItemsZeroFallsBackToNeighbours(t *testing.T) {
	products := testCatalog().Products

	items, skipped := ExtractItems([]string{"5002116 0.00", "6.00"}, products, nil)
	assert.Empty(t, skipped)
	require.Len(t, items, 1)
	assert.Equal(t, 6.0, items[0].Quantity)

	items, _ = ExtractItems([]string{"4.00", "5002116 10000.00"}, products, nil)
	require.Len(t, items, 1)
	assert.Equal(t, 4.0, items[0].Quantity)
}

func TestExtractItemsLineYieldsOneItem(t *testing.T) {
	products := []internal.ProductRecord{
		{Code: "5002116", Name: "a", RollLength: 100, BasePrice: 62},
		{Code: "500211", Name: "b", RollLength: 1, BasePrice: 1},
	}

	// "500211" is a substring of "5002116"; the line is already used by the first code.
	items, skipped := ExtractItems([]string{"5002116 10.00"}, products, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "5002116", items[0].Code)
	assert.Empty(t, skipped)

	items, _ = ExtractItems([]string{"5002116 10.00", "500211 2.00"}, products, nil)
	require.Len(t, items, 2)
	assert.Equal(t, 2.0, items[1].Quantity)
}

func TestExtractItemsPriceOverride(t *testing.T) {
	c := testCatalog()

	items, _ := ExtractItems([]string{"5002116 2.00"}, c.Products, c.Prices["חיפה"])
	require.Len(t, items, 1)
	assert.Equal(t, 55.0, items[0].UnitPrice)
	assert.Equal(t, 110.0, items[0].Revenue)

	items, _ = ExtractItems([]string{"5002116 2.00"}, c.Products, c.Prices["תל אביב"])
	require.Len(t, items, 1)
	assert.Equal(t, 62.0, items[0].UnitPrice)
}

func TestExtractItemsMissingRollLength(t *testing.T) {
	products := []internal.ProductRecord{{Code: "606850", Name: "מתאם", SoldBy: "", BasePrice: 4.5}}

	items, _ := ExtractItems([]string{"606850 3.00"}, products, nil)
	require.Len(t, items, 1)
	assert.Equal(t, internal.SoldByRolls, items[0].SoldBy)
	assert.Equal(t, 1.0, items[0].RollLength)
	assert.Equal(t, 3.0, items[0].Meters)
	assert.Equal(t, 3.0, items[0].Pieces)
}

func TestConvertQuantityMeters(t *testing.T) {
	cases := []struct {
		q, rollLength, price float64
		pieces               float64
	}{
		{150, 50, 1.2, 3},
		{151, 50, 1.2, 4},
		{12.5, 0, 2, 12.5},
		{0.5, 100, 10, 1},
	}
	for _, tc := range cases {
		meters, pieces, revenue := ConvertQuantity(tc.q, internal.SoldByMeters, tc.rollLength, tc.price)
		assert.Equal(t, tc.q, meters)
		assert.Equal(t, tc.pieces, pieces)
		assert.InDelta(t, tc.q*tc.price, revenue, 1e-9)
	}
}

func TestConvertQuantityPieces(t *testing.T) {
	for _, mode := range []internal.SaleMode{internal.SoldByRolls, internal.SoldByUnits} {
		cases := []struct {
			q, rollLength, price float64
			pieces, meters       float64
		}{
			{10, 100, 62, 10, 1000},
			{2.5, 100, 62, 3, 300},
			{2.49, 50, 10, 2, 100},
			{0.3, 100, 62, 1, 100},
			{4, 0, 4.5, 4, 4},
		}
		for _, tc := range cases {
			meters, pieces, revenue := ConvertQuantity(tc.q, mode, tc.rollLength, tc.price)
			assert.Equal(t, tc.pieces, pieces, "mode %s q %v", mode, tc.q)
			assert.Equal(t, tc.meters, meters, "mode %s q %v", mode, tc.q)
			assert.InDelta(t, tc.pieces*tc.price, revenue, 1e-9)
		}
	}
}

func TestRevenueInvariant(t *testing.T) {
	c := testCatalog()
	items, _ := ExtractItems([]string{"5002116 7.00", "7001020 155.50", "606850 12.00"}, c.Products, nil)
	require.Len(t, items, 3)

	for _, item := range items {
		dim := item.Pieces
		if item.SoldBy == internal.SoldByMeters {
			dim = item.Meters
		}
		assert.InDelta(t, item.UnitPrice*dim, item.Revenue, 1e-9, item.Code)
		assert.False(t, math.IsNaN(item.Revenue))
	}
	assert.Equal(t, 4.0, items[1].Pieces)
}
