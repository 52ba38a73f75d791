package models

// ColumnMap associates canonical transaction fields with the source
// file's column headers. All fields are optional; an empty string means
// the field was not detected and does not apply. A non-empty caller
// supplied map is used verbatim so that the commit stage sees exactly
// the mapping the user approved in the preview.
type ColumnMap struct {
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Debit       string `json:"debit,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Account     string `json:"account,omitempty"`
	Status      string `json:"status,omitempty"`
}

// IsZero reports whether no field of the map is set.
func (m ColumnMap) IsZero() bool {
	return m == ColumnMap{}
}

// SkipCounts breaks down how many raw rows were dropped during
// normalization, by reason. Row-level drops are silent; these counts are
// the caller's only visibility into them.
type SkipCounts struct {
	MissingDescription int `json:"missingDescription,omitempty"`
	BadDate            int `json:"badDate,omitempty"`
	BadAmount          int `json:"badAmount,omitempty"`
	AmbiguousAmount    int `json:"ambiguousAmount,omitempty"`
	NoLinePattern      int `json:"noLinePattern,omitempty"`
}

// Total returns the number of dropped rows across all reasons.
func (s SkipCounts) Total() int {
	return s.MissingDescription + s.BadDate + s.BadAmount + s.AmbiguousAmount + s.NoLinePattern
}
