package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"nakasem/internal"
	"nakasem/internal/backup"
	"nakasem/internal/util"
)

type yamlCatalog struct {
	Clients  []internal.ClientRecord       `yaml:"clients"`
	Products []internal.ProductRecord      `yaml:"products"`
	Prices   map[string]map[string]float64 `yaml:"prices"`
}

// ParseFile reads a catalog from a .yaml/.yml seed file, a JSON backup or an
// .xlsx workbook. Entry order in the file becomes matching order.
func ParseFile(path string) (Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(filepath.Base(path), content)
}

func Parse(name string, content []byte) (Catalog, error) {
	var (
		c   Catalog
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		c, err = parseYAML(content)
	case ".json":
		c, err = parseBackup(content)
	case ".xlsx":
		c, err = parseWorkbook(content)
	default:
		return Catalog{}, fmt.Errorf("unsupported catalog file %q", name)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", name, err)
	}

	c = normalize(c)
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

func parseYAML(content []byte) (Catalog, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Catalog{}, err
	}
	prices := internal.PriceOverrides{}
	for clientKey, byCode := range doc.Prices {
		for code, price := range byCode {
			prices.Set(clientKey, code, price)
		}
	}
	return Catalog{Clients: doc.Clients, Products: doc.Products, Prices: prices}, nil
}

func parseBackup(content []byte) (Catalog, error) {
	snap, err := backup.Decode(bytes.NewReader(content))
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Clients: snap.Clients, Products: snap.Products, Prices: snap.Prices}, nil
}

func parseWorkbook(content []byte) (Catalog, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Catalog{}, err
	}
	defer f.Close()

	c := Catalog{Prices: internal.PriceOverrides{}}

	if headers, rows, ok := readSheet(f, "clients", "לקוחות"); ok {
		keyIdx := findHeaderIndex(headers, []string{"key", "מפתח"})
		nameIdx := findHeaderIndex(headers, []string{"name", "שם"})
		vatIdx := findHeaderIndex(headers, []string{"vat", "tax", "ח.פ", "עוסק"})
		regionIdx := findHeaderIndex(headers, []string{"region", "אזור"})
		for _, cells := range rows {
			key := pickCell(cells, keyIdx, 0)
			if key == "" {
				continue
			}
			c.Clients = append(c.Clients, internal.ClientRecord{
				Key:    key,
				Name:   pickCell(cells, nameIdx, 1),
				TaxID:  pickCell(cells, vatIdx, -1),
				Region: pickCell(cells, regionIdx, -1),
			})
		}
	}

	if headers, rows, ok := readSheet(f, "products", "מוצרים"); ok {
		codeIdx := findHeaderIndex(headers, []string{"code", "קוד", "מק\"ט"})
		nameIdx := findHeaderIndex(headers, []string{"name", "שם", "תיאור"})
		typeIdx := findHeaderIndex(headers, []string{"type", "סוג"})
		widthIdx := findHeaderIndex(headers, []string{"width", "קוטר", "רוחב"})
		rollIdx := findHeaderIndex(headers, []string{"roll", "אורך"})
		soldByIdx := findHeaderIndex(headers, []string{"sold", "מכירה"})
		priceIdx := findHeaderIndex(headers, []string{"price", "מחיר"})
		for _, cells := range rows {
			code := pickCell(cells, codeIdx, 0)
			if code == "" {
				continue
			}
			p := internal.ProductRecord{
				Code:   code,
				Name:   pickCell(cells, nameIdx, 1),
				Type:   pickCell(cells, typeIdx, -1),
				SoldBy: internal.SaleMode(strings.ToLower(pickCell(cells, soldByIdx, -1))),
			}
			if w, ok := parseNumber(pickCell(cells, widthIdx, -1)); ok {
				p.Width = util.FloatPtr(w)
			}
			p.RollLength, _ = parseNumber(pickCell(cells, rollIdx, -1))
			p.BasePrice, _ = parseNumber(pickCell(cells, priceIdx, -1))
			c.Products = append(c.Products, p)
		}
	}

	if headers, rows, ok := readSheet(f, "prices", "מחירים"); ok {
		clientIdx := findHeaderIndex(headers, []string{"client", "לקוח"})
		codeIdx := findHeaderIndex(headers, []string{"code", "קוד", "מק\"ט"})
		priceIdx := findHeaderIndex(headers, []string{"price", "מחיר"})
		for i, cells := range rows {
			clientKey := pickCell(cells, clientIdx, 0)
			code := pickCell(cells, codeIdx, 1)
			if clientKey == "" || code == "" {
				continue
			}
			price, ok := parseNumber(pickCell(cells, priceIdx, 2))
			if !ok {
				return Catalog{}, fmt.Errorf("prices row %d: invalid price", i+2)
			}
			c.Prices.Set(clientKey, code, price)
		}
	}

	if len(c.Clients) == 0 && len(c.Products) == 0 && len(c.Prices) == 0 {
		return Catalog{}, fmt.Errorf("no clients, products or prices sheet found")
	}
	return c, nil
}

// readSheet returns the lower-cased header row and the remaining non-empty
// rows of the first sheet whose name matches one of names.
func readSheet(f *excelize.File, names ...string) ([]string, [][]string, bool) {
	for _, sheet := range f.GetSheetList() {
		for _, name := range names {
			if !strings.EqualFold(strings.TrimSpace(sheet), name) {
				continue
			}
			rows, err := f.GetRows(sheet)
			if err != nil || len(rows) == 0 {
				return nil, nil, false
			}
			headers := normalizeCells(rows[0])
			for i := range headers {
				headers[i] = strings.ToLower(headers[i])
			}
			body := make([][]string, 0, len(rows)-1)
			for _, row := range rows[1:] {
				cells := normalizeCells(row)
				if strings.Join(cells, "") == "" {
					continue
				}
				body = append(body, cells)
			}
			return headers, body, true
		}
	}
	return nil, nil, false
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if idx < 0 && fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

func parseNumber(cell string) (float64, bool) {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalize(c Catalog) Catalog {
	for i := range c.Clients {
		c.Clients[i].Key = strings.TrimSpace(c.Clients[i].Key)
		c.Clients[i].Name = strings.TrimSpace(c.Clients[i].Name)
		c.Clients[i].TaxID = strings.TrimSpace(c.Clients[i].TaxID)
	}
	for i := range c.Products {
		c.Products[i].Code = strings.TrimSpace(c.Products[i].Code)
		c.Products[i].SoldBy = c.Products[i].SoldBy.Normalize()
	}
	if c.Prices == nil {
		c.Prices = internal.PriceOverrides{}
	}
	return c
}
