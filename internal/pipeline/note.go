package pipeline

import (
	"strings"

	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/util"
)

// ExtractNote builds one delivery note from the lines of a single block.
// The returned note may have no items; callers decide whether to keep it.
func ExtractNote(lines []string, pageNumber int, sourceFile string, cat catalog.Catalog) (internal.DeliveryNote, []SkippedCode) {
	match := ResolveClient(lines, cat.Clients, cat.OwnTaxID)
	meta := ExtractMetadata(strings.Join(lines, "\n"))

	note := internal.DeliveryNote{
		ClientName: internal.ClientNotRecognized,
		DocNumber:  meta.DocNumber,
		DocDate:    meta.DocDate,
		PageNumber: pageNumber,
		SourceFile: sourceFile,
	}

	var overrides map[string]float64
	if match.Found {
		note.ClientName = match.Client.Name
		note.ClientTaxID = match.Client.TaxID
		note.Region = match.Client.Region
		note.ClientKey = util.StringPtr(match.Client.Key)
		overrides = cat.Prices[match.Client.Key]
	}

	items, skipped := ExtractItems(lines, cat.Products, overrides)
	note.Items = items
	note.RecomputeTotals()
	return note, skipped
}
