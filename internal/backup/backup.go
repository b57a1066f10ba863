package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"nakasem/internal"
)

// Version is written into every export; imports accept any version.
const Version = "2.0.0"

// Snapshot is the application's full-state JSON layout: notes plus the client
// and product directories keyed by client key and product code.
type Snapshot struct {
	Notes       []internal.DeliveryNote
	Clients     []internal.ClientRecord
	Products    []internal.ProductRecord
	Prices      internal.PriceOverrides
	ClientNotes json.RawMessage
	ClientTags  json.RawMessage
	ExportDate  string
	Version     string
}

type wireClient struct {
	Name    string             `json:"name"`
	Region  string             `json:"region"`
	VAT     string             `json:"vat"`
	Pricing map[string]float64 `json:"pricing"`
}

type wireProduct struct {
	Name       string            `json:"name"`
	Type       string            `json:"type,omitempty"`
	Width      *float64          `json:"width"`
	RollLength float64           `json:"rollLength"`
	SoldBy     internal.SaleMode `json:"soldBy"`
	BasePrice  *float64          `json:"basePrice"`
	Price      *float64          `json:"price,omitempty"`
}

type wireNote struct {
	internal.DeliveryNote
	ID json.RawMessage `json:"id"`
}

type wireSnapshot struct {
	DeliveryNotes []wireNote      `json:"deliveryNotes"`
	ClientsDB     json.RawMessage `json:"clientsDB"`
	ProductsDB    json.RawMessage `json:"productsDB"`
	ClientPrices  json.RawMessage `json:"clientPrices"`
	ClientNotes   json.RawMessage `json:"clientNotes"`
	ClientTags    json.RawMessage `json:"clientTags"`
	ExportDate    string          `json:"exportDate"`
	Version       string          `json:"version"`
}

// Decode reads a snapshot, keeping the directory order of the file.
func Decode(r io.Reader) (Snapshot, error) {
	var wire wireSnapshot
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return Snapshot{}, fmt.Errorf("decode backup: %w", err)
	}

	snap := Snapshot{
		Prices:      internal.PriceOverrides{},
		ClientNotes: wire.ClientNotes,
		ClientTags:  wire.ClientTags,
		ExportDate:  wire.ExportDate,
		Version:     wire.Version,
	}

	err := decodeOrderedObject(wire.ClientsDB, func(key string, raw json.RawMessage) error {
		var c wireClient
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("client %q: %w", key, err)
		}
		snap.Clients = append(snap.Clients, internal.ClientRecord{Key: key, Name: c.Name, TaxID: c.VAT, Region: c.Region})
		for code, price := range c.Pricing {
			snap.Prices.Set(key, code, price)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = decodeOrderedObject(wire.ProductsDB, func(code string, raw json.RawMessage) error {
		var p wireProduct
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("product %q: %w", code, err)
		}
		// Category entries in the product directory carry no name.
		if strings.TrimSpace(p.Name) == "" {
			return nil
		}
		record := internal.ProductRecord{
			Code:       code,
			Name:       p.Name,
			Type:       p.Type,
			Width:      p.Width,
			RollLength: p.RollLength,
			SoldBy:     p.SoldBy.Normalize(),
		}
		switch {
		case p.BasePrice != nil:
			record.BasePrice = *p.BasePrice
		case p.Price != nil:
			record.BasePrice = *p.Price
		}
		snap.Products = append(snap.Products, record)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = decodeOrderedObject(wire.ClientPrices, func(clientKey string, raw json.RawMessage) error {
		var byCode map[string]float64
		if err := json.Unmarshal(raw, &byCode); err != nil {
			return fmt.Errorf("prices for %q: %w", clientKey, err)
		}
		for code, price := range byCode {
			snap.Prices.Set(clientKey, code, price)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	for _, wn := range wire.DeliveryNotes {
		note := wn.DeliveryNote
		note.ID = rawID(wn.ID)
		note.ClientKey = blankToNil(note.ClientKey)
		note.DocNumber = blankToNil(note.DocNumber)
		note.DocDate = blankToNil(note.DocDate)
		if note.Items == nil {
			note.Items = []internal.ExtractedLineItem{}
		}
		snap.Notes = append(snap.Notes, note)
	}

	return snap, nil
}

// Encode writes the snapshot with directories in slice order.
func Encode(w io.Writer, snap Snapshot) error {
	var buf bytes.Buffer
	buf.WriteByte('{')

	notes := snap.Notes
	if notes == nil {
		notes = []internal.DeliveryNote{}
	}
	if err := writeField(&buf, "deliveryNotes", notes, true); err != nil {
		return err
	}

	buf.WriteString(`,"clientsDB":{`)
	for i, c := range snap.Clients {
		entry := wireClient{Name: c.Name, Region: c.Region, VAT: c.TaxID, Pricing: map[string]float64{}}
		if err := writeField(&buf, c.Key, entry, i == 0); err != nil {
			return err
		}
	}
	buf.WriteString(`},"productsDB":{`)
	for i, p := range snap.Products {
		price := p.BasePrice
		entry := wireProduct{Name: p.Name, Type: p.Type, Width: p.Width, RollLength: p.RollLength, SoldBy: p.SoldBy.Normalize(), BasePrice: &price}
		if err := writeField(&buf, p.Code, entry, i == 0); err != nil {
			return err
		}
	}
	buf.WriteByte('}')

	prices := snap.Prices
	if prices == nil {
		prices = internal.PriceOverrides{}
	}
	if err := writeField(&buf, "clientPrices", prices, false); err != nil {
		return err
	}
	if err := writeField(&buf, "clientNotes", rawOrEmpty(snap.ClientNotes), false); err != nil {
		return err
	}
	if err := writeField(&buf, "clientTags", rawOrEmpty(snap.ClientTags), false); err != nil {
		return err
	}
	if err := writeField(&buf, "exportDate", snap.ExportDate, false); err != nil {
		return err
	}
	version := snap.Version
	if version == "" {
		version = Version
	}
	if err := writeField(&buf, "version", version, false); err != nil {
		return err
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func writeField(buf *bytes.Buffer, key string, value any, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// decodeOrderedObject walks a JSON object in document order; Go maps would
// lose the order that client and product matching depends on.
func decodeOrderedObject(raw json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// Older exports used numeric timestamps as note ids.
func rawID(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
