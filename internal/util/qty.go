package util

import (
	"regexp"
	"strconv"
)

// Delivery notes print quantities with exactly two decimals, e.g. "10.00" or "1250.50".
var quantityPattern = regexp.MustCompile(`\d{1,4}\.\d{2}`)

// ParseQuantity returns the first two-decimal number on the line.
func ParseQuantity(line string) (float64, bool) {
	token := quantityPattern.FindString(line)
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func CountQuantities(text string) int {
	return len(quantityPattern.FindAllStringIndex(text, -1))
}
