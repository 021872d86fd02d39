package domain

import "testing"

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{3999, "$39.99"},
		{100, "$1.00"},
		{5, "$0.05"},
		{0, "$0.00"},
		{123456, "$1234.56"},
		{-250, "-$2.50"},
	}

	for _, tc := range cases {
		if got := FormatCents(tc.cents); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
