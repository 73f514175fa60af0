package calendar

import (
	"cmp"
	"slices"

	"cashcal/internal/core"

	"github.com/shopspring/decimal"
)

// Overview totals the calendar's days and groups amounts by category,
// largest absolute amount first.
func (c Calendar) Overview() core.RangeOverview {
	ov := core.RangeOverview{
		Start:   c.Start,
		End:     c.End,
		Credits: decimal.Zero,
		Debits:  decimal.Zero,
		Net:     decimal.Zero,
	}

	totals := make(map[int64]decimal.Decimal)
	uncategorised := decimal.Zero
	hasUncategorised := false
	for _, day := range c.Days {
		ov.Credits = ov.Credits.Add(day.Credits)
		ov.Debits = ov.Debits.Add(day.Debits)
		ov.Net = ov.Net.Add(day.Net)
		for _, contrib := range day.Contributions {
			if contrib.CategoryID == nil {
				uncategorised = uncategorised.Add(contrib.Amount)
				hasUncategorised = true
				continue
			}
			totals[*contrib.CategoryID] = totals[*contrib.CategoryID].Add(contrib.Amount)
		}
	}

	ov.ByCategory = make([]core.CategoryAmount, 0, len(totals)+1)
	for id, amount := range totals {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{CategoryID: &id, Amount: amount})
	}
	if hasUncategorised {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{Amount: uncategorised})
	}
	slices.SortFunc(ov.ByCategory, func(a, b core.CategoryAmount) int {
		if n := b.Amount.Abs().Cmp(a.Amount.Abs()); n != 0 {
			return n
		}
		return cmp.Compare(categoryKey(a), categoryKey(b))
	})
	return ov
}

func categoryKey(c core.CategoryAmount) int64 {
	if c.CategoryID == nil {
		return -1
	}
	return *c.CategoryID
}
