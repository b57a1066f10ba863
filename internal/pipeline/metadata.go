package pipeline

import (
	"regexp"

	"nakasem/internal/util"
)

var (
	docNumberPattern = regexp.MustCompile(`\b\d{2}/\d{6}\b`)
	docDatePattern   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
)

type Metadata struct {
	DocNumber *string
	DocDate   *string
}

// ExtractMetadata takes the first document number (NN/NNNNNN) and the first
// date (DD/MM/YYYY) in text. The date is kept as printed.
func ExtractMetadata(text string) Metadata {
	return Metadata{
		DocNumber: util.OptionalString(docNumberPattern.FindString(text)),
		DocDate:   util.OptionalString(docDatePattern.FindString(text)),
	}
}
