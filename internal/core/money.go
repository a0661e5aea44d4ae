// Package core provides the pesantren finance domain: amounts, entities and
// validation rules shared by every other package.
//
// This file contains the grouped-digit currency text formatter used by
// monetary input fields, and the Rupiah display helpers built on it.
package core

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GroupSeparator is inserted between runs of three digits.
const GroupSeparator = '.'

// FormatThousands returns the grouped-digit form of the digits found in s.
//
// Every non-digit character is dropped first, then leading zeros. An input
// without digits formats to "", an input of only zeros formats to "0".
//
// Examples:
//
//	FormatThousands("1500000")   -> "1.500.000"
//	FormatThousands("Rp 12.500") -> "12.500"
//	FormatThousands("007")       -> "7"
//	FormatThousands("")          -> ""
func FormatThousands(s string) string {
	digits := digitsOnly(s)
	if digits == "" {
		return ""
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}

	head := len(digits) % 3
	if head == 0 {
		head = 3
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(GroupSeparator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatAmount formats an integer amount with FormatThousands. The sign of
// negative amounts is not kept; use FormatRupiah for signed display.
func FormatAmount(n int64) string {
	return FormatThousands(strconv.FormatInt(n, 10))
}

// ParseThousands is the inverse of FormatThousands. Separators are removed and
// the leading run of digits is read as a base-10 integer. Input without a
// leading digit, or a value that does not fit in int64, yields 0.
//
// Examples:
//
//	ParseThousands("1.500.000") -> 1500000
//	ParseThousands("12abc")     -> 12
//	ParseThousands("abc")       -> 0
func ParseThousands(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, string(GroupSeparator), ""))

	var n int64
	const limit = (1<<63 - 1) / 10
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int64(c - '0')
		if n > limit || (n == limit && d > 7) {
			return 0
		}
		n = n*10 + d
	}
	return n
}

// MaskInput keeps a live text field showing only digits and separators.
// deliver is called exactly once, synchronously, with the masked value.
func MaskInput(raw string, deliver func(masked string)) {
	deliver(FormatThousands(digitsOnly(raw)))
}

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way receipts and reports display it,
// for example "Rp 1.500.000" or "-Rp 25.000".
func FormatRupiah(n int64) string {
	if n < 0 {
		return "-Rp " + rupiahPrinter.Sprintf("%d", -n)
	}
	return "Rp " + rupiahPrinter.Sprintf("%d", n)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
