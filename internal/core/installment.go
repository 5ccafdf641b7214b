package core

import (
	"fmt"
	"strings"
)

// NextID supplies fresh unique transaction identifiers. Expansion is pure:
// it never touches a clock or a store itself, the caller decides where IDs
// come from.
type NextID func() int64

// ExpandInstallments turns a draft into the records that actually get
// stored. A draft flagged as installment-based with N >= 2 installments
// becomes N records: same per-installment amount (equal division, half-up
// rounded, remainder never redistributed), dates one calendar month apart
// starting at the draft's date, descriptions suffixed "(i/N)", everything
// else copied verbatim. Any other draft becomes a single record.
//
// A draft with IsInstallment set but fewer than 2 installments degrades
// gracefully to the single-record path rather than failing; rejecting that
// input is the form layer's call, not ours.
//
// Each call issues fresh IDs, so re-submitting the same draft creates a
// new, distinct batch.
func ExpandInstallments(draft Transaction, next NextID) ([]Transaction, error) {
	if next == nil {
		return nil, fmt.Errorf("expand installments: nil id source")
	}
	if err := draft.Type.Validate(); err != nil {
		return nil, err
	}
	if err := draft.Status.Validate(); err != nil {
		return nil, err
	}
	if err := draft.Date.Validate(); err != nil {
		return nil, err
	}
	if err := draft.Amount.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft.Description) == "" {
		return nil, ErrEmptyDescription
	}

	if !draft.IsInstallment || draft.Installments < 2 {
		single := draft
		single.ID = next()
		single.IsInstallment = false
		single.Installments = 1
		single.CurrentInstallment = 1
		return []Transaction{single}, nil
	}

	n := draft.Installments
	per := draft.Amount.SplitEven(n)
	batch := make([]Transaction, 0, n)
	for i := 1; i <= n; i++ {
		t := draft
		t.ID = next()
		t.Amount = per
		t.Date = draft.Date.AddMonths(i - 1)
		t.CurrentInstallment = i
		t.Description = fmt.Sprintf("%s (%d/%d)", draft.Description, i, n)
		batch = append(batch, t)
	}
	return batch, nil
}
