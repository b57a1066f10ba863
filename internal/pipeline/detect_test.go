package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDeliveryNote(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		attachments []string
		want        bool
	}{
		{"subject and attachment", "תעודת משלוח 12/000123", "", []string{"scan.pdf"}, true},
		{"body with quantities", "", "תעודה 12/000123\n5002116 10.00\n606850 3.00", nil, true},
		{"newsletter", "מבצעי סוף שנה", "הנחות על כל המוצרים", nil, false},
		{"unsupported attachment only", "", "", []string{"price-list.docx"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectDeliveryNote(tc.subject, tc.text, "", tc.attachments, 0.45)
			assert.Equal(t, tc.want, got.IsDeliveryNote, "score %.2f", got.Score)
			assert.LessOrEqual(t, got.Score, 1.0)
		})
	}
}
