package core

import (
	"strings"
	"testing"
)

func TestFormatThousands(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"", ""},
		{"0", "0"},
		{"000", "0"},
		{"7", "7"},
		{"999", "999"},
		{"1000", "1.000"},
		{"12500", "12.500"},
		{"1500000", "1.500.000"},
		{"007", "7"},
		{"0001000", "1.000"},
		{"Rp 1.500.000", "1.500.000"},
		{"1a2b3c", "123"},
		{"abc", ""},
		{"123456789012345678901234", "123.456.789.012.345.678.901.234"},
	}
	for _, tc := range cases {
		if got := FormatThousands(tc.in); got != tc.out {
			t.Fatalf("FormatThousands(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in  int64
		out string
	}{
		{0, "0"},
		{5, "5"},
		{1000, "1.000"},
		{250000, "250.000"},
		{1234567, "1.234.567"},
		{-25000, "25.000"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.out {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestParseThousands(t *testing.T) {
	cases := []struct {
		in  string
		out int64
	}{
		{"", 0},
		{"abc", 0},
		{"0", 0},
		{"1.000", 1000},
		{"1.500.000", 1500000},
		{" 12.500 ", 12500},
		{"12abc", 12},
		{"007", 7},
		{"-5", 0},
		{"9.223.372.036.854.775.807", 9223372036854775807},
		{"9.223.372.036.854.775.808", 0},
	}
	for _, tc := range cases {
		if got := ParseThousands(tc.in); got != tc.out {
			t.Fatalf("ParseThousands(%q) = %d, want %d", tc.in, got, tc.out)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	values := []int64{0, 1, 9, 10, 99, 100, 999, 1000, 1001, 65000, 999999, 1000000, 123456789, 9223372036854775807}
	for _, n := range values {
		if got := ParseThousands(FormatAmount(n)); got != n {
			t.Fatalf("ParseThousands(FormatAmount(%d)) = %d", n, got)
		}
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	inputs := []string{"1.000", "1000", "12.345.678", "0", "00012", "5"}
	for _, in := range inputs {
		once := FormatThousands(FormatAmount(ParseThousands(in)))
		twice := FormatThousands(FormatAmount(ParseThousands(once)))
		if once != twice {
			t.Fatalf("reformatting %q is not stable: %q then %q", in, once, twice)
		}
		if want := FormatAmount(ParseThousands(in)); once != want {
			t.Fatalf("canonical form of %q = %q, want %q", in, once, want)
		}
	}
}

func TestMaskInput(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"1a2b3c", "123"},
		{"1.5000", "15.000"},
		{"", ""},
		{"Rp. 2500000", "2.500.000"},
	}
	for _, tc := range cases {
		calls := 0
		var got string
		MaskInput(tc.raw, func(masked string) {
			calls++
			got = masked
		})
		if calls != 1 {
			t.Fatalf("MaskInput(%q) delivered %d times, want 1", tc.raw, calls)
		}
		if got != tc.want {
			t.Fatalf("MaskInput(%q) delivered %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestFormatRupiah(t *testing.T) {
	got := FormatRupiah(1500000)
	if !strings.HasPrefix(got, "Rp ") || !strings.Contains(got, "1.500.000") {
		t.Fatalf("FormatRupiah(1500000) = %q", got)
	}
	neg := FormatRupiah(-25000)
	if !strings.HasPrefix(neg, "-Rp ") || !strings.Contains(neg, "25.000") {
		t.Fatalf("FormatRupiah(-25000) = %q", neg)
	}
}
