package core

// TransactionPatch is a partial update. Nil fields keep the stored value;
// set fields replace it. CardID uses a double pointer so "clear the card"
// (set to nil) and "leave the card alone" stay distinguishable.
type TransactionPatch struct {
	Type        *TransactionType
	Description *string
	Amount      *Money
	Category    *string
	Date        *Date
	Status      *TransactionStatus
	IsRecurring *bool
	CardID      **int64
}

// Apply merges the patch onto a stored transaction field by field and
// validates the result before returning it. The input is not mutated.
func (p TransactionPatch) Apply(t Transaction) (Transaction, error) {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
	}
	if p.CardID != nil {
		t.CardID = *p.CardID
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
