package store

import "github.com/finwise/statement-ingest/internal/models"

// DefaultCategories is the fixed set provisioned for users with no
// categories. "Others" is the guaranteed catch-all every import can
// land in. Process-wide constant configuration; never mutated.
var DefaultCategories = []models.Category{
	{Name: "Income", Color: "#16A34A"},
	{Name: "Food", Color: "#10B981"},
	{Name: "Transport", Color: "#2563EB"},
	{Name: "Shopping", Color: "#F59E0B"},
	{Name: "Bills", Color: "#EF4444"},
	{Name: "Entertainment", Color: "#8B5CF6"},
	{Name: "Health", Color: "#DC2626"},
	{Name: "Education", Color: "#1F2937"},
	{Name: "Investments", Color: "#065F46"},
	{Name: "Subscriptions", Color: "#0EA5E9"},
	{Name: "Taxes", Color: "#EA580C"},
	{Name: "Gifts", Color: "#E11D48"},
	{Name: "Fees", Color: "#6B7280"},
	{Name: "Transfer", Color: "#334155"},
	{Name: "Others", Color: "#9CA3AF"},
}
