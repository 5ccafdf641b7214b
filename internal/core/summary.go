package core

import (
	"fmt"
	"sort"
)

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = "income"
	FilterExpense TypeFilter = "expense"
)

type (
	// TypeFilter narrows a period selection to one transaction type.
	TypeFilter string

	// Totals are the four partition sums for a period: status first,
	// then type. Empty partitions sum to zero.
	Totals struct {
		ConfirmedIncome  Money
		ConfirmedExpense Money
		PendingIncome    Money
		PendingExpense   Money
	}

	// Balance pairs the realized figure with the projection that also
	// counts pending transactions.
	Balance struct {
		Confirmed Money
		Projected Money
	}

	// Summary is the full result of aggregating one calendar month.
	Summary struct {
		Filtered []Transaction // date descending, stable for equal dates
		Totals   Totals
		Balance  Balance
	}

	// CategoryAmount is one row of a per-category breakdown.
	CategoryAmount struct {
		Name   string
		Amount Money
	}
)

func (f TypeFilter) Validate() error {
	switch f {
	case FilterAll, FilterIncome, FilterExpense:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidType, string(f))
}

// Aggregate filters the transaction set down to one calendar month (month
// is 1-12) and type selection, then computes the four totals and both
// balance figures. Income counts positive, expense negative, uniformly.
//
// The input is never mutated; Filtered is a fresh slice sorted by date
// descending with a stable sort, so equal dates keep their input order
// across repeated calls.
//
// A stored record whose amount is not a positive cents value fails the
// whole aggregation: a loud error beats a silently corrupted total.
func Aggregate(txs []Transaction, month, year int, filter TypeFilter) (Summary, error) {
	if err := filter.Validate(); err != nil {
		return Summary{}, err
	}
	if month < 1 || month > 12 {
		return Summary{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}

	var s Summary
	s.Filtered = make([]Transaction, 0)
	for _, t := range txs {
		if !t.Date.InMonth(year, month) {
			continue
		}
		if filter != FilterAll && TypeFilter(t.Type) != filter {
			continue
		}
		if t.Amount.Cents <= 0 {
			return Summary{}, fmt.Errorf("transaction %d: %w", t.ID, ErrInvalidAmount)
		}
		s.Filtered = append(s.Filtered, t)

		switch {
		case t.Status == Confirmed && t.Type == Income:
			s.Totals.ConfirmedIncome = s.Totals.ConfirmedIncome.Add(t.Amount)
		case t.Status == Confirmed && t.Type == Expense:
			s.Totals.ConfirmedExpense = s.Totals.ConfirmedExpense.Add(t.Amount)
		case t.Status == Pending && t.Type == Income:
			s.Totals.PendingIncome = s.Totals.PendingIncome.Add(t.Amount)
		case t.Status == Pending && t.Type == Expense:
			s.Totals.PendingExpense = s.Totals.PendingExpense.Add(t.Amount)
		default:
			return Summary{}, fmt.Errorf("transaction %d: %w", t.ID, ErrInvalidStatus)
		}
	}

	sort.SliceStable(s.Filtered, func(i, j int) bool {
		return s.Filtered[i].Date.After(s.Filtered[j].Date.Time)
	})

	s.Balance.Confirmed = s.Totals.ConfirmedIncome.Sub(s.Totals.ConfirmedExpense)
	s.Balance.Projected = s.Totals.ConfirmedIncome.Add(s.Totals.PendingIncome).
		Sub(s.Totals.ConfirmedExpense.Add(s.Totals.PendingExpense))
	return s, nil
}

// GroupByCategory sums a month's expenses per category, largest first.
// Categories with equal totals sort by name so the output is deterministic.
func GroupByCategory(txs []Transaction, month, year int) ([]CategoryAmount, error) {
	sums := make(map[string]int64)
	for _, t := range txs {
		if t.Type != Expense || !t.Date.InMonth(year, month) {
			continue
		}
		if t.Amount.Cents <= 0 {
			return nil, fmt.Errorf("transaction %d: %w", t.ID, ErrInvalidAmount)
		}
		sums[t.Category] += t.Amount.Cents
	}

	out := make([]CategoryAmount, 0, len(sums))
	for name, cents := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
