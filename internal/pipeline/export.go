package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"nakasem/internal"
	"nakasem/internal/util"
)

const (
	notesSheet = "notes"
	itemsSheet = "items"
)

// ExportNotesToXLSX writes one row per note and one row per line item.
func ExportNotesToXLSX(notes []internal.DeliveryNote, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), notesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return err
	}

	writeRow(f, notesSheet, 1, []any{
		"id", "status", "createdAt", "docNum", "docDate", "clientName", "clientKey", "clientVAT", "region",
		"pageNumber", "sourceFile", "totalAmount", "totalPieces", "totalRevenue", "recognized",
	})
	writeRow(f, itemsSheet, 1, []any{
		"noteId", "docNum", "clientName", "code", "name", "quantity", "soldBy", "rollLength",
		"amount", "pieces", "price", "revenue",
	})

	itemRow := 2
	for i, note := range notes {
		writeRow(f, notesSheet, i+2, []any{
			note.ID, string(note.Status), note.CreatedAt,
			util.Deref(note.DocNumber), util.Deref(note.DocDate),
			note.ClientName, util.Deref(note.ClientKey), note.ClientTaxID, note.Region,
			note.PageNumber, note.SourceFile,
			note.TotalMeters, note.TotalPieces, internal.RoundMoney(note.TotalRevenue), yesNo(note.Recognized()),
		})
		for _, item := range note.Items {
			writeRow(f, itemsSheet, itemRow, []any{
				note.ID, util.Deref(note.DocNumber), note.ClientName,
				item.Code, item.Name, item.Quantity, string(item.SoldBy), item.RollLength,
				item.Meters, item.Pieces, item.UnitPrice, internal.RoundMoney(item.Revenue),
			})
			itemRow++
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, value := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
