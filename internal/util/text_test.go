package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	text := "  חשמל ישיר תל אביב \r\n\n\u200f12/000123\u200f\n\t\n5002116 10.00\n"
	assert.Equal(t, []string{"חשמל ישיר תל אביב", "12/000123", "5002116 10.00"}, SplitLines(text))
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("page one\n\f\n \fpage two")
	assert.Equal(t, []string{"page one\n", "page two"}, pages)
}

func TestNormalizeSpaces(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpaces("  a \t b\n c "))
}
