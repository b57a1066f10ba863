package pipeline

import (
	"math"
	"strings"

	"nakasem/internal"
	"nakasem/internal/util"
)

// MaxQuantity bounds a plausible per-line quantity; values at or above it
// are treated as misread digits.
const MaxQuantity = 10000

type SkipReason string

const (
	SkipNoQuantity SkipReason = "no_quantity"
	SkipZero       SkipReason = "zero"
	SkipOverLimit  SkipReason = "over_limit"
)

// SkippedCode records a product code that was found on a line but did not
// produce an item.
type SkippedCode struct {
	Code   string
	LineNo int
	Line   string
	Reason SkipReason
}

// ExtractItems finds at most one item per product, walking products in
// catalog order. A line yields at most one item. prices holds the resolved
// client's overrides and may be nil.
func ExtractItems(lines []string, products []internal.ProductRecord, prices map[string]float64) ([]internal.ExtractedLineItem, []SkippedCode) {
	items := []internal.ExtractedLineItem{}
	var skipped []SkippedCode
	used := make([]bool, len(lines))

	for _, product := range products {
		code := strings.TrimSpace(product.Code)
		if code == "" {
			continue
		}

		// Lines that mention the code without a usable quantity are skipped;
		// a later line with the same code may still carry it.
		lineIdx := -1
		var quantity float64
		for i, line := range lines {
			if used[i] || !strings.Contains(line, code) {
				continue
			}
			q, ok := quantityNear(lines, i)
			var reason SkipReason
			switch {
			case !ok:
				reason = SkipNoQuantity
			case q <= 0 || math.IsNaN(q):
				reason = SkipZero
			case q >= MaxQuantity:
				reason = SkipOverLimit
			}
			if reason != "" {
				skipped = append(skipped, SkippedCode{Code: code, LineNo: i + 1, Line: line, Reason: reason})
				continue
			}
			lineIdx, quantity = i, q
			break
		}
		if lineIdx < 0 {
			continue
		}

		unitPrice := product.BasePrice
		if override, ok := prices[code]; ok {
			unitPrice = override
		}

		rollLength := product.RollLength
		if rollLength <= 0 {
			rollLength = 1
		}

		mode := product.SoldBy.Normalize()
		meters, pieces, revenue := ConvertQuantity(quantity, mode, rollLength, unitPrice)

		items = append(items, internal.ExtractedLineItem{
			Code:       code,
			Name:       product.Name,
			Quantity:   quantity,
			Meters:     meters,
			Pieces:     pieces,
			UnitPrice:  unitPrice,
			Revenue:    revenue,
			SoldBy:     mode,
			RollLength: rollLength,
		})
		used[lineIdx] = true
	}

	return items, skipped
}

// quantityNear looks for a non-zero quantity on the code's line, then the
// line before, then the line after. When only zero quantities are printed it
// reports zero.
func quantityNear(lines []string, idx int) (float64, bool) {
	found := false
	for _, i := range []int{idx, idx - 1, idx + 1} {
		if i < 0 || i >= len(lines) {
			continue
		}
		q, ok := util.ParseQuantity(lines[i])
		if !ok {
			continue
		}
		if q != 0 {
			return q, true
		}
		found = true
	}
	return 0, found
}

// ConvertQuantity turns a printed quantity into meters, pieces and revenue.
// In meters mode the quantity is a length; otherwise it counts pieces (rolls
// or units) and is rounded to a whole number, never down to zero.
func ConvertQuantity(quantity float64, mode internal.SaleMode, rollLength, unitPrice float64) (meters, pieces, revenue float64) {
	if mode == internal.SoldByMeters {
		meters = quantity
		if rollLength > 0 {
			pieces = math.Ceil(quantity / rollLength)
		} else {
			pieces = quantity
		}
		return meters, pieces, quantity * unitPrice
	}

	pieces = math.Round(quantity)
	if pieces == 0 && quantity > 0 {
		pieces = math.Ceil(quantity)
	}
	if rollLength > 0 {
		meters = pieces * rollLength
	} else {
		meters = pieces
	}
	return meters, pieces, pieces * unitPrice
}
