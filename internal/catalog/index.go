package catalog

import (
	"sort"

	"nakasem/internal"
)

// Index offers keyed lookups over a Catalog. When a tax id or code appears
// more than once, the earlier entry is kept.
type Index struct {
	ClientsByKey   map[string]internal.ClientRecord
	ClientsByTaxID map[string]internal.ClientRecord
	ProductsByCode map[string]internal.ProductRecord
}

func BuildIndex(c Catalog) *Index {
	idx := &Index{
		ClientsByKey:   map[string]internal.ClientRecord{},
		ClientsByTaxID: map[string]internal.ClientRecord{},
		ProductsByCode: map[string]internal.ProductRecord{},
	}

	for _, client := range c.Clients {
		if _, ok := idx.ClientsByKey[client.Key]; !ok {
			idx.ClientsByKey[client.Key] = client
		}
		if client.TaxID == "" {
			continue
		}
		if _, ok := idx.ClientsByTaxID[client.TaxID]; !ok {
			idx.ClientsByTaxID[client.TaxID] = client
		}
	}

	for _, p := range c.Products {
		if _, ok := idx.ProductsByCode[p.Code]; !ok {
			idx.ProductsByCode[p.Code] = p
		}
	}

	return idx
}

// PriceRef names one client price override.
type PriceRef struct {
	ClientKey string
	Code      string
}

// OrphanPrices lists overrides whose client or product is not in the
// catalog. Such overrides are kept but never applied.
func (c Catalog) OrphanPrices() []PriceRef {
	idx := BuildIndex(c)
	var out []PriceRef
	for _, client := range sortedKeys(c.Prices) {
		_, knownClient := idx.ClientsByKey[client]
		for _, code := range sortedKeys(c.Prices[client]) {
			if _, knownProduct := idx.ProductsByCode[code]; knownClient && knownProduct {
				continue
			}
			out = append(out, PriceRef{ClientKey: client, Code: code})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
