package core

import "github.com/shopspring/decimal"

// CategoryAmount is a total aggregated by category. A nil CategoryID
// collects uncategorised amounts.
type CategoryAmount struct {
	CategoryID *int64          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// RangeOverview is a compact summary of a calendar range.
type RangeOverview struct {
	Start      Date             `json:"start"`
	End        Date             `json:"end"`
	Credits    decimal.Decimal  `json:"credits"`
	Debits     decimal.Decimal  `json:"debits"`
	Net        decimal.Decimal  `json:"net_change"`
	ByCategory []CategoryAmount `json:"by_category"`
}
