package mapper

import (
	"testing"

	"github.com/finwise/statement-ingest/internal/models"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Date", "date"},
		{"  Posted Date  ", "posted date"},
		{"Descrição", "descricao"},
		{"HISTÓRICO", "historico"},
		{"Débito", "debito"},
		{"amount", "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeHeader(tt.in); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected models.ColumnMap
	}{
		{
			name:    "english bank export",
			headers: []string{"Date", "Description", "Amount", "Currency"},
			expected: models.ColumnMap{
				Date:        "Date",
				Description: "Description",
				Amount:      "Amount",
				Currency:    "Currency",
			},
		},
		{
			name:    "portuguese headers with diacritics",
			headers: []string{"Data", "Descrição", "Valor"},
			expected: models.ColumnMap{
				Date:        "Data",
				Description: "Descrição",
				Amount:      "Valor",
			},
		},
		{
			name:    "credit and debit pair",
			headers: []string{"Booking Date", "Narrative", "Credit", "Debit"},
			expected: models.ColumnMap{
				Date:        "Booking Date",
				Description: "Narrative",
				Credit:      "Credit",
				Debit:       "Debit",
			},
		},
		{
			name:    "first synonym match wins",
			headers: []string{"Date", "Posted Date", "Memo", "Amount"},
			expected: models.ColumnMap{
				Date:        "Date",
				Description: "Memo",
				Amount:      "Amount",
			},
		},
		{
			name:     "nothing recognized",
			headers:  []string{"Foo", "Bar", "Baz"},
			expected: models.ColumnMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.headers)
			if got != tt.expected {
				t.Errorf("got %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	headers := []string{"Date", "Description", "Amount"}

	t.Run("explicit map used verbatim", func(t *testing.T) {
		explicit := &models.ColumnMap{Date: "Date", Amount: "Amount"}
		got := Resolve(explicit, headers)
		// Description must NOT be auto-filled from the headers.
		if got != *explicit {
			t.Errorf("got %+v, want %+v", got, *explicit)
		}
	})

	t.Run("empty explicit map falls back to detection", func(t *testing.T) {
		got := Resolve(&models.ColumnMap{}, headers)
		if got.Description != "Description" {
			t.Errorf("expected detected description, got %+v", got)
		}
	})

	t.Run("nil explicit map falls back to detection", func(t *testing.T) {
		got := Resolve(nil, headers)
		if got.Date != "Date" || got.Amount != "Amount" {
			t.Errorf("expected detected map, got %+v", got)
		}
	})
}
