package util

import "testing"

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "code then qty", input: "5002116 10.00", want: 10, ok: true},
		{name: "four digits", input: "צינור שחור 16 1250.50 מ'", want: 1250.5, ok: true},
		{name: "first wins", input: "3.00 x 62.00", want: 3, ok: true},
		{name: "longer integer part keeps last four digits", input: "12345.00", want: 2345, ok: true},
		{name: "one decimal is not a quantity", input: "10.5", ok: false},
		{name: "doc number", input: "12/000123", ok: false},
		{name: "date", input: "01/06/2024", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseQuantity(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
