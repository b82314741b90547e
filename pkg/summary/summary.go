// Package summary aggregates records into balances, monthly totals and
// category breakdowns for the dashboard.
package summary

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

// Balance is an account with its computed balance.
type Balance struct {
	Account api.Account     `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// Balances computes opening balance plus signed flows for each account.
// Transfers debit the source and credit the destination; records that do not
// reference a listed account are ignored.
func Balances(accounts []api.Account, records []api.Record) []Balance {
	out := make([]Balance, len(accounts))
	for i, a := range accounts {
		bal := a.OpeningBalance
		for _, r := range records {
			bal = bal.Add(r.SignedFor(a.ID))
		}
		out[i] = Balance{Account: a, Balance: bal}
	}
	return out
}

// NetWorth splits balances into what is owned and what is owed.
type NetWorth struct {
	Total       decimal.Decimal `json:"total"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
}

// Net sums balances. Liabilities is the absolute value of negative balances.
func Net(balances []Balance) NetWorth {
	var nw NetWorth
	for _, b := range balances {
		if b.Balance.IsNegative() {
			nw.Liabilities = nw.Liabilities.Add(b.Balance.Abs())
		} else {
			nw.Assets = nw.Assets.Add(b.Balance)
		}
	}
	nw.Total = nw.Assets.Sub(nw.Liabilities)
	return nw
}

// Totals are the income and expenses of a period.
type Totals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Savings is income minus expenses.
func (t Totals) Savings() decimal.Decimal {
	return t.Income.Sub(t.Expenses)
}

func (t Totals) add(r api.Record) Totals {
	switch r.Type {
	case api.TypeIncome:
		t.Income = t.Income.Add(r.Amount.Abs())
	case api.TypeExpense:
		t.Expenses = t.Expenses.Add(r.Amount.Abs())
	}
	return t
}

// Month totals the records dated in the given calendar month. Transfers are
// not income or expenses.
func Month(records []api.Record, year int, month time.Month) Totals {
	var t Totals
	for _, r := range records {
		if r.Date.Year == year && r.Date.Month == month {
			t = t.add(r)
		}
	}
	return t
}

// MonthPoint is one entry of a monthly series.
type MonthPoint struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Label    string          `json:"label"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// MonthlySeries returns n consecutive months ending with the month of end,
// oldest first.
func MonthlySeries(records []api.Record, end civil.Date, n int) []MonthPoint {
	if n <= 0 {
		return nil
	}

	type key struct {
		year  int
		month time.Month
	}
	points := make([]MonthPoint, n)
	index := make(map[key]int, n)

	y, m := end.Year, end.Month
	for i := n - 1; i >= 0; i-- {
		points[i] = MonthPoint{Year: y, Month: m, Label: m.String()[:3]}
		index[key{y, m}] = i
		if m == time.January {
			y, m = y-1, time.December
		} else {
			m--
		}
	}

	totals := make([]Totals, n)
	for _, r := range records {
		if i, ok := index[key{r.Date.Year, r.Date.Month}]; ok {
			totals[i] = totals[i].add(r)
		}
	}
	for i, t := range totals {
		points[i].Income = t.Income
		points[i].Expenses = t.Expenses
		points[i].Savings = t.Savings()
	}
	return points
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ByCategory totals expenses per category within [from, to], largest first.
// Zero dates leave the range open.
func ByCategory(records []api.Record, from, to civil.Date) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		if r.Type != api.TypeExpense {
			continue
		}
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		sums[r.Category] = sums[r.Category].Add(r.Amount.Abs())
	}

	out := make([]CategoryTotal, 0, len(sums))
	for category, total := range sums {
		out = append(out, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Report is everything the dashboard shows.
type Report struct {
	Balances   []Balance       `json:"balances"`
	NetWorth   NetWorth        `json:"net_worth"`
	Month      MonthPoint      `json:"month"`
	Series     []MonthPoint    `json:"series"`
	Categories []CategoryTotal `json:"categories"`
}

// Build assembles a report for the month containing day, with a series of
// the given number of months and a category breakdown for that month.
func Build(accounts []api.Account, records []api.Record, day civil.Date, months int) Report {
	balances := Balances(accounts, records)
	first := civil.Date{Year: day.Year, Month: day.Month, Day: 1}
	last := civil.Date{Year: day.Year, Month: day.Month + 1, Day: 1}
	last = civil.DateOf(last.In(time.UTC)).AddDays(-1)

	totals := Month(records, day.Year, day.Month)

	return Report{
		Balances: balances,
		NetWorth: Net(balances),
		Month: MonthPoint{
			Year:     day.Year,
			Month:    day.Month,
			Label:    day.Month.String()[:3],
			Income:   totals.Income,
			Expenses: totals.Expenses,
			Savings:  totals.Savings(),
		},
		Series:     MonthlySeries(records, day, months),
		Categories: ByCategory(records, first, last),
	}
}
