package domain

import "fmt"

// FormatCents renders integer minor units as a dollar string. Prices stay
// integers everywhere else; this is the only display conversion.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
