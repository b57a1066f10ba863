package util

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

// OptionalString returns nil for blank values.
func OptionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
