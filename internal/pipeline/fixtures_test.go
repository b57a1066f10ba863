package pipeline

import (
	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/util"
)

const ownTaxID = "515396513"

func testCatalog() catalog.Catalog {
	prices := internal.PriceOverrides{}
	prices.Set("חיפה", "5002116", 55)

	return catalog.Catalog{
		Clients: []internal.ClientRecord{
			{Key: "תל אביב", Name: "חשמל ישיר תל אביב", TaxID: "516001799", Region: "מרכז"},
			{Key: "חיפה", Name: "אינסטלציה חיפה", TaxID: "514000001", Region: "צפון"},
			{Key: "נקסם", Name: "נקסם בע\"מ", TaxID: ownTaxID, Region: ""},
		},
		Products: []internal.ProductRecord{
			{Code: "5002116", Name: "צינור שחור 16", Type: "שחור", Width: util.FloatPtr(16), RollLength: 100, SoldBy: internal.SoldByRolls, BasePrice: 62},
			{Code: "7001020", Name: "שרוול השחלה 20", RollLength: 50, SoldBy: internal.SoldByMeters, BasePrice: 1.2},
			{Code: "606850", Name: "מתאם הברגה", SoldBy: internal.SoldByUnits, BasePrice: 4.5},
		},
		Prices:   prices,
		OwnTaxID: ownTaxID,
	}
}
