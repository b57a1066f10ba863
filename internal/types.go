package internal

import "math"

// ClientNotRecognized is the client name a note carries when no directory entry matched.
const ClientNotRecognized = "לא זוהה"

type SaleMode string

const (
	SoldByRolls  SaleMode = "rolls"
	SoldByMeters SaleMode = "meters"
	SoldByUnits  SaleMode = "units"
)

// Normalize maps empty or unknown modes to rolls, the catalog default for spooled goods.
func (m SaleMode) Normalize() SaleMode {
	switch m {
	case SoldByMeters, SoldByUnits:
		return m
	default:
		return SoldByRolls
	}
}

type ClientRecord struct {
	Key    string `json:"key" yaml:"key"`
	Name   string `json:"name" yaml:"name"`
	TaxID  string `json:"vat" yaml:"vat"`
	Region string `json:"region" yaml:"region"`
}

type ProductRecord struct {
	Code       string   `json:"code" yaml:"code"`
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Width      *float64 `json:"width" yaml:"width"`
	RollLength float64  `json:"rollLength" yaml:"rollLength"`
	SoldBy     SaleMode `json:"soldBy" yaml:"soldBy"`
	BasePrice  float64  `json:"basePrice" yaml:"basePrice"`
}

// PriceOverrides maps client key -> product code -> negotiated price.
type PriceOverrides map[string]map[string]float64

func (p PriceOverrides) Lookup(clientKey, code string) (float64, bool) {
	if clientKey == "" || p == nil {
		return 0, false
	}
	byCode, ok := p[clientKey]
	if !ok {
		return 0, false
	}
	price, ok := byCode[code]
	return price, ok
}

func (p PriceOverrides) Set(clientKey, code string, price float64) {
	if p[clientKey] == nil {
		p[clientKey] = map[string]float64{}
	}
	p[clientKey][code] = price
}

// ExtractedLineItem json names follow the application's saved-note layout,
// where "amount" holds meters.
type ExtractedLineItem struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity"`
	Meters     float64  `json:"amount"`
	Pieces     float64  `json:"pieces"`
	UnitPrice  float64  `json:"price"`
	Revenue    float64  `json:"revenue"`
	SoldBy     SaleMode `json:"soldBy"`
	RollLength float64  `json:"rollLength"`
}

type NoteStatus string

const (
	NotePending  NoteStatus = "pending"
	NoteAccepted NoteStatus = "accepted"
)

type DeliveryNote struct {
	ID           string              `json:"id,omitempty"`
	ClientName   string              `json:"clientName"`
	ClientTaxID  string              `json:"clientVAT"`
	ClientKey    *string             `json:"clientKey"`
	Region       string              `json:"region"`
	DocNumber    *string             `json:"docNum"`
	DocDate      *string             `json:"docDate"`
	Items        []ExtractedLineItem `json:"items"`
	TotalMeters  float64             `json:"totalAmount"`
	TotalPieces  float64             `json:"totalPieces"`
	TotalRevenue float64             `json:"totalRevenue"`
	PageNumber   int                 `json:"pageNumber"`
	SourceFile   string              `json:"sourceFile"`
	Status       NoteStatus          `json:"status,omitempty"`
	CreatedAt    string              `json:"createdAt,omitempty"`
}

// RecomputeTotals folds the item quantities into the note-level totals.
func (n *DeliveryNote) RecomputeTotals() {
	n.TotalMeters, n.TotalPieces, n.TotalRevenue = 0, 0, 0
	for _, item := range n.Items {
		n.TotalMeters += item.Meters
		n.TotalPieces += item.Pieces
		n.TotalRevenue += item.Revenue
	}
}

func (n DeliveryNote) Recognized() bool {
	return n.ClientKey != nil
}

// RoundMoney rounds to agorot for display and export; stored values stay unrounded.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
