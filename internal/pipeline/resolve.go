package pipeline

import (
	"regexp"
	"strings"

	"nakasem/internal"
	"nakasem/internal/catalog"
)

// Israeli company numbers: nine digits starting with 5.
var taxIDPattern = regexp.MustCompile(`\b5[0-9]{8}\b`)

type ResolvedBy string

const (
	ResolvedByName  ResolvedBy = "name"
	ResolvedByTaxID ResolvedBy = "tax_id"
	ResolvedByNone  ResolvedBy = "none"
)

type ClientMatch struct {
	Client internal.ClientRecord
	Found  bool
	By     ResolvedBy
}

// ResolveClient picks the client a page belongs to. A name or key appearing
// on any line beats a tax id; the distributor's own tax id is ignored.
func ResolveClient(lines []string, clients []internal.ClientRecord, ownTaxID string) ClientMatch {
	for _, line := range lines {
		for _, c := range clients {
			if containsTerm(line, c.Name) || containsTerm(line, c.Key) {
				return ClientMatch{Client: c, Found: true, By: ResolvedByName}
			}
		}
	}

	byTaxID := catalog.BuildIndex(catalog.Catalog{Clients: clients}).ClientsByTaxID
	for _, line := range lines {
		for _, candidate := range taxIDPattern.FindAllString(line, -1) {
			if candidate == ownTaxID {
				continue
			}
			if c, ok := byTaxID[candidate]; ok {
				return ClientMatch{Client: c, Found: true, By: ResolvedByTaxID}
			}
		}
	}

	return ClientMatch{By: ResolvedByNone}
}

func containsTerm(line, term string) bool {
	term = strings.TrimSpace(term)
	return term != "" && strings.Contains(line, term)
}
