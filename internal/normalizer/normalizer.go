// Package normalizer converts raw statement values into canonical
// ParsedTransaction records: locale-variant dates, comma/period decimal
// amounts, mixed-case currency codes and noisy descriptions. Rows that
// cannot be normalized are dropped one at a time, never the whole file.
package normalizer

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLen is the canonical description length used both for
// storage and duplicate matching.
const MaxDescriptionLen = 256

// NormalizeDescription collapses internal whitespace runs to single
// spaces, trims, and truncates to MaxDescriptionLen characters. The
// operation is idempotent: it is applied at preview time and again at
// commit time and must yield the same canonical string.
func NormalizeDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > MaxDescriptionLen {
		r = r[:MaxDescriptionLen]
	}
	return strings.TrimSpace(string(r))
}

// nativeLayouts cover ISO-8601 and the locale variants commonly seen in
// bank exports. Tried in order; first success wins.
var nativeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// DD/MM/YYYY with slash, dash or period separators.
var dmyPattern = regexp.MustCompile(`^(\d{2})[/.\-](\d{2})[/.\-](\d{4})$`)

// ParseDate parses a raw date value: native layouts first, then an
// explicit day-first pattern. Returns false when nothing matches.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("02/01/2006", m[1]+"/"+m[2]+"/"+m[3])
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var currencyRunes = strings.NewReplacer(
	"£", "", "$", "", "€", "",
	" ", "", " ", "",
)

// ParseAmount converts a raw amount string to a decimal. Currency
// symbols and spaces are stripped. When both separators appear the last
// one is taken as the decimal separator and the other as a thousands
// separator, which supports both 1,234.56 and 1.234,56 locales. A lone
// comma is treated as the decimal separator.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := currencyRunes.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
