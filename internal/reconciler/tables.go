package reconciler

// categoryKeywords maps description substrings to suggested category
// names. Matching is case-insensitive over the normalized description;
// table order decides ties, first matching keyword wins. Process-wide
// constant configuration, never mutated.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"uber", "Transport"},
	{"ifood", "Food"},
	{"grocery", "Food"},
	{"supermercado", "Food"},
	{"netflix", "Entertainment"},
	{"spotify", "Entertainment"},
	{"amazon", "Shopping"},
	{"farmacia", "Health"},
	{"hospital", "Health"},
	{"energia", "Bills"},
	{"electricity", "Bills"},
	{"water", "Bills"},
	{"salary", "Income"},
	{"deposito", "Income"},
	{"transferencia", "Transfer"},
}

// catchAllCategory is the guaranteed fallback category name.
const catchAllCategory = "Others"
