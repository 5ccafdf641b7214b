package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"financas/internal/id"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	gen := id.NewGenerator()
	txService := services.NewTransactionService(repo, nil, gen, logger)
	cardService := services.NewCardService(repo, gen, logger)

	s := NewServer(":0", txService, cardService, logger)
	t.Cleanup(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
	})
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

const createBody = `{
	"type": "expense",
	"description": "Mercado",
	"amount": "123.45",
	"category": "Alimentação",
	"date": "2025-06-15"
}`

func TestCreateTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions/", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	created := decodeBody[[]transactionDTO](t, rec)
	if len(created) != 1 {
		t.Fatalf("created %d records, want 1", len(created))
	}
	got := created[0]
	if got.ID == 0 || got.Amount != "123.45" || got.Status != "pending" || got.Date != "2025-06-15" {
		t.Errorf("created = %+v", got)
	}
}

func TestCreateTransaction_Installments(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"type": "expense",
		"description": "Notebook",
		"amount": "3000.00",
		"category": "Eletrônicos",
		"date": "2025-01-15",
		"is_installment": true,
		"installments": 3
	}`
	rec := doRequest(t, s, http.MethodPost, "/transactions/", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	created := decodeBody[[]transactionDTO](t, rec)
	if len(created) != 3 {
		t.Fatalf("created %d records, want 3", len(created))
	}
	wantDates := []string{"2025-01-15", "2025-02-15", "2025-03-15"}
	for i, tx := range created {
		if tx.Description != fmt.Sprintf("Notebook (%d/3)", i+1) {
			t.Errorf("description[%d] = %q", i, tx.Description)
		}
		if tx.Date != wantDates[i] {
			t.Errorf("date[%d] = %s, want %s", i, tx.Date, wantDates[i])
		}
		if tx.Amount != "1000.00" {
			t.Errorf("amount[%d] = %s, want 1000.00", i, tx.Amount)
		}
	}
}

func TestCreateTransaction_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"malformed amount", `{"type":"expense","description":"x","amount":"abc","category":"c","date":"2025-06-15"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"type":"expense","description":"x","amount":"-5.00","category":"c","date":"2025-06-15"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"type":"transfer","description":"x","amount":"5.00","category":"c","date":"2025-06-15"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"expense","description":"x","amount":"5.00","category":"c","date":"15/06/2025"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"type":"expense","description":"","amount":"5.00","category":"c","date":"2025-06-15"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/transactions/", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestListTransactions_Filters(t *testing.T) {
	s := newTestServer(t)

	bodies := []string{
		`{"type":"expense","description":"Mercado","amount":"100.00","category":"Alimentação","date":"2025-06-15"}`,
		`{"type":"income","description":"Salário","amount":"5000.00","category":"Trabalho","date":"2025-06-01","status":"confirmed"}`,
		`{"type":"expense","description":"Aluguel","amount":"1500.00","category":"Moradia","date":"2025-07-01"}`,
	}
	for _, b := range bodies {
		if rec := doRequest(t, s, http.MethodPost, "/transactions/", b); rec.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d %s", rec.Code, rec.Body)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?type=expense", 2},
		{"?type=income", 1},
		{"?status=confirmed", 1},
		{"?month=6&year=2025", 2},
		{"?month=7&year=2025", 1},
		{"?category=Moradia", 1},
		{"?category=Inexistente", 0},
	}
	for _, tt := range tests {
		t.Run("q="+tt.query, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, "/transactions/"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			got := decodeBody[[]transactionDTO](t, rec)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	if rec := doRequest(t, s, http.MethodGet, "/transactions/?type=transfer", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid type filter: status = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/transactions/?month=13", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid month filter: status = %d, want 400", rec.Code)
	}
}

func TestGetPatchDeleteTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions/", createBody)
	created := decodeBody[[]transactionDTO](t, rec)
	txID := created[0].ID

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/transactions/%d", txID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPatch, fmt.Sprintf("/transactions/%d", txID),
		`{"description":"Feira","amount":"99.90"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rec.Code, rec.Body)
	}
	patched := decodeBody[transactionDTO](t, rec)
	if patched.Description != "Feira" || patched.Amount != "99.90" {
		t.Errorf("patched = %+v", patched)
	}
	if patched.Category != "Alimentação" {
		t.Errorf("unpatched field changed: %q", patched.Category)
	}

	rec = doRequest(t, s, http.MethodPatch, fmt.Sprintf("/transactions/%d", txID),
		`{"amount":"oops"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad patch status = %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/transactions/%d", txID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/transactions/%d", txID), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	s := newTestServer(t)
	if rec := doRequest(t, s, http.MethodGet, "/transactions/404", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/transactions/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBulkDelete(t *testing.T) {
	s := newTestServer(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		rec := doRequest(t, s, http.MethodPost, "/transactions/", createBody)
		ids = append(ids, decodeBody[[]transactionDTO](t, rec)[0].ID)
	}

	body := fmt.Sprintf(`{"ids":[%d,%d,404]}`, ids[0], ids[1])
	rec := doRequest(t, s, http.MethodDelete, "/transactions/bulk_delete", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[bulkDeleteResponse](t, rec)
	if resp.DeletedCount != 2 {
		t.Errorf("deleted_count = %d, want 2", resp.DeletedCount)
	}

	if rec := doRequest(t, s, http.MethodDelete, "/transactions/bulk_delete", `{"ids":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", rec.Code)
	}
}

func TestToggleStatus(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions/", createBody)
	txID := decodeBody[[]transactionDTO](t, rec)[0].ID

	rec = doRequest(t, s, http.MethodPatch, fmt.Sprintf("/transactions/%d/toggle_status", txID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[transactionDTO](t, rec); got.Status != "confirmed" {
		t.Errorf("status = %s, want confirmed", got.Status)
	}

	rec = doRequest(t, s, http.MethodPatch, fmt.Sprintf("/transactions/%d/toggle_status", txID), "")
	if got := decodeBody[transactionDTO](t, rec); got.Status != "pending" {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)

	bodies := []string{
		`{"type":"income","description":"Salário","amount":"5000.00","category":"Trabalho","date":"2025-06-01","status":"confirmed"}`,
		`{"type":"expense","description":"Aluguel","amount":"1500.00","category":"Moradia","date":"2025-06-05","status":"confirmed"}`,
		`{"type":"expense","description":"Mercado","amount":"800.00","category":"Alimentação","date":"2025-06-10"}`,
	}
	for _, b := range bodies {
		if rec := doRequest(t, s, http.MethodPost, "/transactions/", b); rec.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/transactions/stats?month=6&year=2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[statsDTO](t, rec)
	if got.TotalTransactions != 3 {
		t.Errorf("total_transactions = %d, want 3", got.TotalTransactions)
	}
	if got.ConfirmedIncome != "5000.00" || got.ConfirmedExpense != "1500.00" ||
		got.PendingExpense != "800.00" || got.PendingIncome != "0.00" {
		t.Errorf("totals = %+v", got)
	}
	if got.ConfirmedBalance != "3500.00" || got.ProjectedBalance != "2700.00" {
		t.Errorf("balances = %+v", got)
	}

	// A type filter narrows the matched set but keeps the full balance picture.
	rec = doRequest(t, s, http.MethodGet, "/transactions/stats?month=6&year=2025&type=expense", "")
	got = decodeBody[statsDTO](t, rec)
	if got.TotalTransactions != 2 {
		t.Errorf("filtered total_transactions = %d, want 2", got.TotalTransactions)
	}

	if rec := doRequest(t, s, http.MethodGet, "/transactions/stats?month=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("month=0: status = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/transactions/stats?type=nope", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("type=nope: status = %d, want 400", rec.Code)
	}
}

func TestStats_CacheInvalidatedOnWrite(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/transactions/stats?month=6&year=2025", "")
	if got := decodeBody[statsDTO](t, rec); got.TotalTransactions != 0 {
		t.Fatalf("expected empty month, got %d", got.TotalTransactions)
	}

	if rec := doRequest(t, s, http.MethodPost, "/transactions/", createBody); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/transactions/stats?month=6&year=2025", "")
	if got := decodeBody[statsDTO](t, rec); got.TotalTransactions != 1 {
		t.Errorf("stale stats after create: %d transactions, want 1", got.TotalTransactions)
	}
}

func TestByCategory(t *testing.T) {
	s := newTestServer(t)

	bodies := []string{
		`{"type":"expense","description":"Aluguel","amount":"1500.00","category":"Moradia","date":"2025-06-05"}`,
		`{"type":"expense","description":"Mercado","amount":"600.00","category":"Alimentação","date":"2025-06-10"}`,
		`{"type":"expense","description":"Feira","amount":"200.00","category":"Alimentação","date":"2025-06-12"}`,
		`{"type":"income","description":"Salário","amount":"5000.00","category":"Trabalho","date":"2025-06-01"}`,
	}
	for _, b := range bodies {
		if rec := doRequest(t, s, http.MethodPost, "/transactions/", b); rec.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/transactions/by_category?month=6&year=2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[[]categoryAmountDTO](t, rec)
	if len(got) != 2 {
		t.Fatalf("categories = %d, want 2 (income excluded)", len(got))
	}
	if got[0].Category != "Moradia" || got[0].Amount != "1500.00" {
		t.Errorf("first row = %+v, want Moradia 1500.00", got[0])
	}
	if got[1].Category != "Alimentação" || got[1].Amount != "800.00" {
		t.Errorf("second row = %+v, want Alimentação 800.00", got[1])
	}
}
