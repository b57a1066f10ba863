package pipeline

import (
	"strings"

	"nakasem/internal/util"
)

type DetectResult struct {
	IsDeliveryNote bool
	Score          float64
	Reason         string
}

var detectKeywords = []string{"תעודת משלוח", "תעודה", "משלוח", "אספקה", "ת.משלוח", "delivery", "packing", "dispatch"}

// DetectDeliveryNote scores an email for whether it carries delivery notes.
func DetectDeliveryNote(subject, text, html string, attachmentNames []string, threshold float64) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	if docNumberPattern.MatchString(subject) || docNumberPattern.MatchString(text) {
		score += 0.2
	}

	qtyHits := util.CountQuantities(text)
	if qtyHits >= 2 {
		score += 0.3
	} else if qtyHits == 1 {
		score += 0.15
	}

	for _, name := range attachmentNames {
		if IsSupportedDocument(name) {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	ok := score >= threshold
	reason := "rules_negative"
	if ok {
		reason = "rules_positive"
	}

	return DetectResult{IsDeliveryNote: ok, Score: score, Reason: reason}
}
