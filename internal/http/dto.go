package http

import (
	"encoding/json"
	"fmt"

	"financas/internal/core"
)

// Wire types. Amounts travel as decimal strings ("100.00") and dates as
// "2006-01-02"; cents never leave the process.

type transactionDTO struct {
	ID                 int64  `json:"id"`
	Type               string `json:"type"`
	Description        string `json:"description"`
	Amount             string `json:"amount"`
	Category           string `json:"category"`
	Date               string `json:"date"`
	Status             string `json:"status"`
	IsRecurring        bool   `json:"is_recurring"`
	IsInstallment      bool   `json:"is_installment"`
	Installments       int    `json:"installments"`
	CurrentInstallment int    `json:"current_installment"`
	CardID             *int64 `json:"card"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:                 t.ID,
		Type:               string(t.Type),
		Description:        t.Description,
		Amount:             t.Amount.String(),
		Category:           t.Category,
		Date:               t.Date.String(),
		Status:             string(t.Status),
		IsRecurring:        t.IsRecurring,
		IsInstallment:      t.IsInstallment,
		Installments:       t.Installments,
		CurrentInstallment: t.CurrentInstallment,
		CardID:             t.CardID,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

type createTransactionRequest struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	IsRecurring   bool   `json:"is_recurring"`
	IsInstallment bool   `json:"is_installment"`
	Installments  int    `json:"installments"`
	CardID        *int64 `json:"card"`
}

// toDraft converts the request into an unexpanded transaction draft.
func (req createTransactionRequest) toDraft() (core.Transaction, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	status := core.TransactionStatus(req.Status)
	if req.Status == "" {
		status = core.Pending
	}
	return core.Transaction{
		Type:          core.TransactionType(req.Type),
		Description:   req.Description,
		Amount:        amount,
		Category:      req.Category,
		Date:          date,
		Status:        status,
		IsRecurring:   req.IsRecurring,
		IsInstallment: req.IsInstallment,
		Installments:  req.Installments,
		CardID:        req.CardID,
	}, nil
}

// patchTransactionRequest mirrors TransactionPatch on the wire. The card
// reference is raw JSON so an explicit null (detach the card) stays
// distinguishable from an absent key (leave it alone).
type patchTransactionRequest struct {
	Type        *string         `json:"type"`
	Description *string         `json:"description"`
	Amount      *string         `json:"amount"`
	Category    *string         `json:"category"`
	Date        *string         `json:"date"`
	Status      *string         `json:"status"`
	IsRecurring *bool           `json:"is_recurring"`
	CardID      json.RawMessage `json:"card"`
}

func (req patchTransactionRequest) toPatch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		p.Type = &t
	}
	p.Description = req.Description
	if req.Amount != nil {
		amount, err := core.ParseMoney(*req.Amount)
		if err != nil {
			return core.TransactionPatch{}, err
		}
		p.Amount = &amount
	}
	p.Category = req.Category
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return core.TransactionPatch{}, err
		}
		p.Date = &date
	}
	if req.Status != nil {
		st := core.TransactionStatus(*req.Status)
		p.Status = &st
	}
	p.IsRecurring = req.IsRecurring
	if len(req.CardID) > 0 {
		var cardID *int64
		if err := json.Unmarshal(req.CardID, &cardID); err != nil {
			return core.TransactionPatch{}, fmt.Errorf("card: %w", err)
		}
		p.CardID = &cardID
	}
	return p, nil
}

type cardDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	DueDay int    `json:"due_day"`
	Color  string `json:"color"`
}

func toCardDTO(c core.Card) cardDTO {
	return cardDTO{ID: c.ID, Name: c.Name, DueDay: c.DueDay, Color: c.Color}
}

type createCardRequest struct {
	Name   string `json:"name"`
	DueDay int    `json:"due_day"`
	Color  string `json:"color"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// statsDTO is the flat stats payload: the four period totals, both
// balance figures, and how many transactions matched the period.
type statsDTO struct {
	ConfirmedIncome   string `json:"confirmed_income"`
	ConfirmedExpense  string `json:"confirmed_expense"`
	PendingIncome     string `json:"pending_income"`
	PendingExpense    string `json:"pending_expense"`
	ConfirmedBalance  string `json:"confirmed_balance"`
	ProjectedBalance  string `json:"projected_balance"`
	TotalTransactions int    `json:"total_transactions"`
}

func toStatsDTO(s core.Summary) statsDTO {
	return statsDTO{
		ConfirmedIncome:   s.Totals.ConfirmedIncome.String(),
		ConfirmedExpense:  s.Totals.ConfirmedExpense.String(),
		PendingIncome:     s.Totals.PendingIncome.String(),
		PendingExpense:    s.Totals.PendingExpense.String(),
		ConfirmedBalance:  s.Balance.Confirmed.String(),
		ProjectedBalance:  s.Balance.Projected.String(),
		TotalTransactions: len(s.Filtered),
	}
}

type categoryAmountDTO struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func toCategoryAmountDTOs(rows []core.CategoryAmount) []categoryAmountDTO {
	out := make([]categoryAmountDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, categoryAmountDTO{Category: r.Name, Amount: r.Amount.String()})
	}
	return out
}
