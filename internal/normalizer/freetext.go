package normalizer

import (
	"regexp"
	"strings"

	"github.com/finwise/statement-ingest/internal/models"
)

// Line patterns for PDF-derived text: an ISO date or a DD/MM/YYYY-style
// date, a description, and a signed decimal amount as the last token.
// Anchored at both ends so a greedy submatch cannot eat the sign or
// split the amount. Deliberately conservative; a missed row beats a
// garbled one.
var (
	isoLinePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[\s;,:]+(.+?)[\s;,:]+(-?\d+[.,]?\d*)$`)
	dmyLinePattern = regexp.MustCompile(`^(\d{2}[/.\-]\d{2}[/.\-]\d{4})\s+(.+?)\s+(-?\d+[.,]?\d*)$`)
)

// dateLeadPattern separates candidate rows from boilerplate. Headers,
// footers and page numbers fail it and are dropped silently; only lines
// that open with a date-like token count toward the skip breakdown.
var dateLeadPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{2}[/.\-]\d{2}[/.\-]\d{4})\b`)

// ParseText extracts transactions from free-form statement text, one
// candidate per line. Date-led lines matching neither pattern are
// skipped and counted; so are lines whose date or amount fails to
// normalize. Lines without a leading date are ignored outright.
func ParseText(text string) ([]models.ParsedTransaction, models.SkipCounts) {
	var rows []models.ParsedTransaction
	var skips models.SkipCounts

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := isoLinePattern.FindStringSubmatch(line)
		if m == nil {
			m = dmyLinePattern.FindStringSubmatch(line)
		}
		if m == nil {
			if dateLeadPattern.MatchString(line) {
				skips.NoLinePattern++
			}
			continue
		}

		date, ok := ParseDate(m[1])
		if !ok {
			skips.BadDate++
			continue
		}
		amount, ok := ParseAmount(m[3])
		if !ok {
			skips.BadAmount++
			continue
		}
		desc := NormalizeDescription(m[2])
		if desc == "" {
			skips.MissingDescription++
			continue
		}

		rows = append(rows, models.ParsedTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Status:      models.StatusPosted,
		})
	}
	return rows, skips
}
