package catalog

import (
	"fmt"
	"strings"

	"nakasem/internal"
	"nakasem/internal/storage"
)

// Catalog is everything extraction needs besides the page text. Clients and
// Products are ordered: when several entries match a line, the first wins.
type Catalog struct {
	Clients  []internal.ClientRecord
	Products []internal.ProductRecord
	Prices   internal.PriceOverrides
	OwnTaxID string
}

// Load reads the stored directories in their insertion order.
func Load(db *storage.DB, ownTaxID string) (Catalog, error) {
	clients, err := db.ListClients()
	if err != nil {
		return Catalog{}, fmt.Errorf("list clients: %w", err)
	}
	products, err := db.ListProducts()
	if err != nil {
		return Catalog{}, fmt.Errorf("list products: %w", err)
	}
	prices, err := db.ListPrices()
	if err != nil {
		return Catalog{}, fmt.Errorf("list prices: %w", err)
	}
	return Catalog{Clients: clients, Products: products, Prices: prices, OwnTaxID: ownTaxID}, nil
}

// Validate reports duplicate keys and codes and entries without a key.
func (c Catalog) Validate() error {
	var problems []string

	seenKeys := map[string]struct{}{}
	for i, client := range c.Clients {
		key := strings.TrimSpace(client.Key)
		if key == "" {
			problems = append(problems, fmt.Sprintf("client #%d has no key", i+1))
			continue
		}
		if _, dup := seenKeys[key]; dup {
			problems = append(problems, fmt.Sprintf("duplicate client key %q", key))
		}
		seenKeys[key] = struct{}{}
	}

	seenCodes := map[string]struct{}{}
	for i, product := range c.Products {
		code := strings.TrimSpace(product.Code)
		if code == "" {
			problems = append(problems, fmt.Sprintf("product #%d has no code", i+1))
			continue
		}
		if _, dup := seenCodes[code]; dup {
			problems = append(problems, fmt.Sprintf("duplicate product code %q", code))
		}
		seenCodes[code] = struct{}{}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}
