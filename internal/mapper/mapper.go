// Package mapper infers which CSV columns hold the canonical statement
// fields by matching normalized header names against a synonym table.
package mapper

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/finwise/statement-ingest/internal/models"
)

// Synonym sets per logical field, multi-language (English, Portuguese,
// common bank export labels). Matching is on normalized headers. The
// normalizer reuses these for row-level fallbacks on unmapped fields.
var (
	DateSynonyms        = []string{"date", "data", "posted date", "transaction date", "booking date"}
	DescriptionSynonyms = []string{"description", "descricao", "memo", "details", "narrative", "historico"}
	AmountSynonyms      = []string{"amount", "valor", "montante", "value"}
	CreditSynonyms      = []string{"credit", "deposit", "credito", "credit amount"}
	DebitSynonyms       = []string{"debit", "withdrawal", "debito", "debit amount"}
	CurrencySynonyms    = []string{"currency", "moeda", "curr"}
	AccountSynonyms     = []string{"account", "account name", "conta", "agencia/conta"}
	StatusSynonyms      = []string{"status", "situacao", "state"}
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeader lower-cases a header, strips diacritics and trims
// surrounding whitespace. "Descrição" and "descricao" normalize to the
// same key.
func NormalizeHeader(h string) string {
	lower := strings.ToLower(h)
	stripped, _, err := transform.String(stripDiacritics, lower)
	if err != nil {
		stripped = lower
	}
	return strings.TrimSpace(stripped)
}

// Detect infers a ColumnMap from the header row. For each field the
// first header matching any synonym wins; fields with no match stay
// empty. The result records the raw header label, not the normalized
// key, so callers can address columns exactly as they appear.
func Detect(headers []string) models.ColumnMap {
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = NormalizeHeader(h)
	}

	find := func(synonyms []string) string {
		for i, key := range keys {
			for _, s := range synonyms {
				if key == s {
					return headers[i]
				}
			}
		}
		return ""
	}

	return models.ColumnMap{
		Date:        find(DateSynonyms),
		Description: find(DescriptionSynonyms),
		Amount:      find(AmountSynonyms),
		Credit:      find(CreditSynonyms),
		Debit:       find(DebitSynonyms),
		Currency:    find(CurrencySynonyms),
		Account:     find(AccountSynonyms),
		Status:      find(StatusSynonyms),
	}
}

// Resolve picks the map to use for a file. A non-empty explicit map is
// used verbatim, with no auto-fill of unset fields, so commit behaves
// exactly like the preview the caller approved. Only when the caller
// supplied nothing is the map inferred from the headers.
func Resolve(explicit *models.ColumnMap, headers []string) models.ColumnMap {
	if explicit != nil && !explicit.IsZero() {
		return *explicit
	}
	return Detect(headers)
}
