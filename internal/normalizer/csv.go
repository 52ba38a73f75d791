package normalizer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finwise/statement-ingest/internal/mapper"
	"github.com/finwise/statement-ingest/internal/models"
)

// CSVResult is the normalized output of one delimited-text statement.
type CSVResult struct {
	Rows    []models.ParsedTransaction
	Headers []string
	Map     models.ColumnMap
	Skips   models.SkipCounts
}

// ParseCSV reads a delimited statement and normalizes every record. The
// delimiter is detected from the header line (comma, semicolon or tab).
// A non-empty explicit map is used verbatim; otherwise the map is
// inferred from the headers. Malformed rows are skipped individually and
// counted by reason.
func ParseCSV(data []byte, explicit *models.ColumnMap) (*CSVResult, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	if len(records) == 0 {
		return &CSVResult{Map: mapper.Resolve(explicit, nil)}, nil
	}

	headers := records[0]
	res := &CSVResult{
		Headers: headers,
		Map:     mapper.Resolve(explicit, headers),
	}

	for _, rec := range records[1:] {
		row := newRowView(headers, rec)
		if txn, ok := normalizeRecord(row, res.Map, &res.Skips); ok {
			res.Rows = append(res.Rows, txn)
		}
	}
	return res, nil
}

// detectDelimiter picks the separator with the most occurrences in the
// header line, defaulting to comma.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{c}); n > bestCount {
			best, bestCount = rune(c), n
		}
	}
	return best
}

// rowView indexes one record by raw header label and by normalized
// header key, so that both explicit map labels and synonym fallbacks
// resolve to the same values.
type rowView struct {
	headers []string
	byRaw   map[string]string
	byNorm  map[string]string
}

func newRowView(headers, rec []string) rowView {
	v := rowView{
		headers: headers,
		byRaw:   make(map[string]string, len(headers)),
		byNorm:  make(map[string]string, len(headers)),
	}
	for i, h := range headers {
		if i >= len(rec) {
			break
		}
		v.byRaw[h] = rec[i]
		key := mapper.NormalizeHeader(h)
		if _, dup := v.byNorm[key]; !dup {
			v.byNorm[key] = rec[i]
		}
	}
	return v
}

// get resolves a field: the mapped column label when set, otherwise the
// first synonym present in the row. An explicit map only pins the fields
// it names; fields it leaves empty still fall back to synonyms here.
func (v rowView) get(label string, synonyms []string) (string, bool) {
	if label != "" {
		if val, ok := v.byRaw[label]; ok {
			return val, true
		}
		if val, ok := v.byNorm[mapper.NormalizeHeader(label)]; ok {
			return val, true
		}
		return "", false
	}
	for _, s := range synonyms {
		if val, ok := v.byNorm[s]; ok {
			return val, true
		}
	}
	return "", false
}

func normalizeRecord(row rowView, m models.ColumnMap, skips *models.SkipCounts) (models.ParsedTransaction, bool) {
	var zero models.ParsedTransaction

	desc, _ := row.get(m.Description, mapper.DescriptionSynonyms)
	desc = NormalizeDescription(desc)
	if desc == "" {
		skips.MissingDescription++
		return zero, false
	}

	dateRaw, _ := row.get(m.Date, mapper.DateSynonyms)
	date, ok := ParseDate(dateRaw)
	if !ok {
		skips.BadDate++
		return zero, false
	}

	amount, ok := resolveAmount(row, m, skips)
	if !ok {
		return zero, false
	}

	txn := models.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Status:      models.StatusPosted,
	}
	if cur, ok := row.get(m.Currency, mapper.CurrencySynonyms); ok {
		txn.Currency = strings.ToUpper(strings.TrimSpace(cur))
	}
	if hint, ok := row.get(m.Account, mapper.AccountSynonyms); ok {
		txn.AccountNameHint = strings.TrimSpace(hint)
	}
	if status, ok := row.get(m.Status, mapper.StatusSynonyms); ok {
		if strings.EqualFold(strings.TrimSpace(status), "pending") {
			txn.Status = models.StatusPending
		}
	}
	return txn, true
}

// resolveAmount applies the amount rules in priority order: the mapped
// or synonym-named amount column, then the credit/debit pair, then a
// scan for the row's sole numeric column. First applicable rule wins;
// an ambiguous scan drops the row, not the file.
func resolveAmount(row rowView, m models.ColumnMap, skips *models.SkipCounts) (decimal.Decimal, bool) {
	for _, rule := range amountRules {
		d, applied, ok := rule.resolve(row, m)
		if !applied {
			continue
		}
		if !ok {
			switch rule.skip {
			case skipAmbiguous:
				skips.AmbiguousAmount++
			default:
				skips.BadAmount++
			}
			return decimal.Decimal{}, false
		}
		return d, true
	}
	skips.BadAmount++
	return decimal.Decimal{}, false
}

type skipKind int

const (
	skipBadValue skipKind = iota
	skipAmbiguous
)

// amountRules is the ordered resolution list. Each rule reports whether
// it applied to the row at all, and if so whether it produced a value.
var amountRules = []struct {
	name string
	skip skipKind
	// resolve returns (value, applied, ok)
	resolve func(row rowView, m models.ColumnMap) (decimal.Decimal, bool, bool)
}{
	{
		name: "amount column",
		resolve: func(row rowView, m models.ColumnMap) (decimal.Decimal, bool, bool) {
			raw, present := row.get(m.Amount, mapper.AmountSynonyms)
			if !present || strings.TrimSpace(raw) == "" {
				return decimal.Decimal{}, false, false
			}
			d, ok := ParseAmount(raw)
			return d, true, ok
		},
	},
	{
		// Debits are sent amounts: credit - debit goes negative when the
		// debit side dominates.
		name: "credit/debit pair",
		resolve: func(row rowView, m models.ColumnMap) (decimal.Decimal, bool, bool) {
			creditRaw, hasCredit := row.get(m.Credit, mapper.CreditSynonyms)
			debitRaw, hasDebit := row.get(m.Debit, mapper.DebitSynonyms)
			if !hasCredit && !hasDebit {
				return decimal.Decimal{}, false, false
			}
			credit := decimal.Zero
			debit := decimal.Zero
			if hasCredit && strings.TrimSpace(creditRaw) != "" {
				d, ok := ParseAmount(creditRaw)
				if !ok {
					return decimal.Decimal{}, true, false
				}
				credit = d
			}
			if hasDebit && strings.TrimSpace(debitRaw) != "" {
				d, ok := ParseAmount(debitRaw)
				if !ok {
					return decimal.Decimal{}, true, false
				}
				debit = d
			}
			return credit.Sub(debit), true, true
		},
	},
	{
		name: "sole numeric column",
		skip: skipAmbiguous,
		resolve: func(row rowView, m models.ColumnMap) (decimal.Decimal, bool, bool) {
			var found decimal.Decimal
			count := 0
			seen := make(map[string]bool)
			for _, h := range row.headers {
				key := mapper.NormalizeHeader(h)
				if seen[key] {
					continue
				}
				seen[key] = true
				val, ok := row.byNorm[key]
				if !ok {
					continue
				}
				if d, ok := ParseAmount(val); ok {
					found = d
					count++
				}
			}
			if count == 1 {
				return found, true, true
			}
			// zero or several numeric columns: ambiguous row
			return decimal.Decimal{}, true, false
		},
	},
}
