package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"financas/internal/core"
	"financas/internal/log"
)

// handleListTransactions returns stored transactions, optionally narrowed
// by type, status, month, year, card, and category query parameters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.transactions.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list transactions failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(out))
}

type listFilter struct {
	txType   string
	status   string
	category string
	month    int
	year     int
	cardID   int64
	byCard   bool
}

func parseListFilter(r *http.Request) (listFilter, error) {
	q := r.URL.Query()
	f := listFilter{
		txType:   strings.TrimSpace(q.Get("type")),
		status:   strings.TrimSpace(q.Get("status")),
		category: strings.TrimSpace(q.Get("category")),
	}

	if f.txType != "" {
		if err := core.TransactionType(f.txType).Validate(); err != nil {
			return listFilter{}, fmt.Errorf("invalid type %q", f.txType)
		}
	}
	if f.status != "" {
		if err := core.TransactionStatus(f.status).Validate(); err != nil {
			return listFilter{}, fmt.Errorf("invalid status %q", f.status)
		}
	}

	month, ok, err := queryInt(r, "month")
	if err != nil {
		return listFilter{}, err
	}
	if ok {
		if month < 1 || month > 12 {
			return listFilter{}, fmt.Errorf("invalid month %d", month)
		}
		f.month = int(month)
	}
	year, ok, err := queryInt(r, "year")
	if err != nil {
		return listFilter{}, err
	}
	if ok {
		f.year = int(year)
	}
	cardID, ok, err := queryInt(r, "card")
	if err != nil {
		return listFilter{}, err
	}
	if ok {
		f.cardID = cardID
		f.byCard = true
	}
	return f, nil
}

func (f listFilter) matches(t core.Transaction) bool {
	if f.txType != "" && string(t.Type) != f.txType {
		return false
	}
	if f.status != "" && string(t.Status) != f.status {
		return false
	}
	if f.category != "" && t.Category != f.category {
		return false
	}
	if f.month != 0 && t.Date.Month() != f.month {
		return false
	}
	if f.year != 0 && t.Date.Year() != f.year {
		return false
	}
	if f.byCard && (t.CardID == nil || *t.CardID != f.cardID) {
		return false
	}
	return true
}

// handleCreateTransaction creates a transaction, expanding installment
// purchases into one record per month. It returns the full batch.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	txs, err := s.transactions.Create(r.Context(), draft)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateStats()
	writeJSON(w, http.StatusCreated, toTransactionDTOs(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req patchTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := s.transactions.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateStats()
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

// handleBulkDelete removes a set of transactions and reports how many
// actually existed. Unknown ids are skipped.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	deleted, err := s.transactions.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateStats()
	writeJSON(w, http.StatusOK, bulkDeleteResponse{DeletedCount: deleted})
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.transactions.ToggleStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateStats()
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// handleStats returns the monthly stats: the four partition totals, both
// balance figures, and the matching transaction count.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := core.TypeFilter(strings.TrimSpace(r.URL.Query().Get("type")))
	if filter == "" {
		filter = core.FilterAll
	}
	if err := filter.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", filter))
		return
	}

	key := fmt.Sprintf("%d-%02d-%s", year, month, filter)
	if cached, found := s.statsCache.Get(key); found {
		writeJSON(w, http.StatusOK, toStatsDTO(cached))
		return
	}

	summary, err := s.transactions.Summary(r.Context(), month, year, filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "stats aggregation failed",
			log.FieldError, err,
			log.FieldYear, year,
			log.FieldMonth, month)
		writeDomainError(w, err)
		return
	}

	s.statsCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toStatsDTO(summary))
}

// handleByCategory returns the month's expenses grouped by category,
// largest first.
func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%d-%02d", year, month)
	if cached, found := s.byCategoryCache.Get(key); found {
		writeJSON(w, http.StatusOK, toCategoryAmountDTOs(cached))
		return
	}

	rows, err := s.transactions.ByCategory(r.Context(), month, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.byCategoryCache.Set(key, rows)
	writeJSON(w, http.StatusOK, toCategoryAmountDTOs(rows))
}
