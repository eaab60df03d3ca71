package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, accessLog *bytes.Buffer) *gin.Engine {
	t.Helper()
	ledger, err := memory.NewMutexLedger([]domain.Account{
		{ID: 1, Limit: 1000},
		{ID: 2, Limit: 80000},
		{ID: 3, Limit: 1000000},
		{ID: 4, Limit: 10000000},
		{ID: 5, Limit: 500000},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	core, err := usecase.NewCoreUseCase(context.Background(), ledger)
	if err != nil {
		t.Fatal(err)
	}
	if accessLog == nil {
		return NewRouter(core, nil)
	}
	return NewRouter(core, accessLog)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostTransactionFlow(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/accounts/1/transactions", `{"amount":500,"kind":"d","description":"groceries"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body)
	}
	var bal balanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil {
		t.Fatal(err)
	}
	if bal.Limit != 1000 || bal.Balance != -500 {
		t.Fatalf("balance=%+v", bal)
	}

	w = do(r, http.MethodPost, "/accounts/1/transactions", `{"amount":600,"kind":"d","description":"more"}`)
	if w.Code != http.StatusUnprocessableEntity || w.Body.Len() != 0 {
		t.Fatalf("over limit code=%d body=%q", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/accounts/1/statement", "")
	if w.Code != http.StatusOK {
		t.Fatalf("statement code=%d", w.Code)
	}
	var st statementResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Balance.Total != -500 || st.Balance.Limit != 1000 || len(st.LastTransactions) != 1 {
		t.Fatalf("statement=%+v", st)
	}
	if st.LastTransactions[0].Kind != domain.KindDebit || st.LastTransactions[0].Description != "groceries" {
		t.Fatalf("transaction=%+v", st.LastTransactions[0])
	}
	if time.Since(st.Balance.Timestamp) > time.Minute {
		t.Fatalf("timestamp=%v", st.Balance.Timestamp)
	}
}

func TestStatementShape(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/accounts/2/statement", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["lastTransactions"]) != "[]" {
		t.Fatalf("lastTransactions=%s", raw["lastTransactions"])
	}
	var balance map[string]any
	if err := json.Unmarshal(raw["balance"], &balance); err != nil {
		t.Fatal(err)
	}
	ts, _ := balance["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("timestamp %q: %v", ts, err)
	}

	for i := 0; i < 12; i++ {
		do(r, http.MethodPost, "/accounts/2/transactions", `{"amount":1,"kind":"c","description":"tick"}`)
	}
	w = do(r, http.MethodGet, "/accounts/2/statement", "")
	var st statementResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if len(st.LastTransactions) != domain.StatementSize || st.Balance.Total != 12 {
		t.Fatalf("count=%d total=%d", len(st.LastTransactions), st.Balance.Total)
	}
	for i := 1; i < len(st.LastTransactions); i++ {
		if !st.LastTransactions[i].Timestamp.Before(st.LastTransactions[i-1].Timestamp) {
			t.Fatalf("not descending at %d", i)
		}
	}
}

func TestStatusCodes(t *testing.T) {
	r := newTestRouter(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown account statement", http.MethodGet, "/accounts/6/statement", "", http.StatusNotFound},
		{"unknown account post", http.MethodPost, "/accounts/6/transactions", `{"amount":1,"kind":"c","description":"x"}`, http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/accounts/abc/statement", "", http.StatusNotFound},
		{"negative id", http.MethodGet, "/accounts/-1/statement", "", http.StatusNotFound},
		{"empty description", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":"c","description":""}`, http.StatusUnprocessableEntity},
		{"eleven chars", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":"c","description":"abcdefghijk"}`, http.StatusUnprocessableEntity},
		{"over forty bytes", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":"c","description":"` + strings.Repeat("😀", 10) + `x"}`, http.StatusUnprocessableEntity},
		{"missing description", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":"c"}`, http.StatusUnprocessableEntity},
		{"null amount", http.MethodPost, "/accounts/1/transactions", `{"amount":null,"kind":"c","description":"x"}`, http.StatusUnprocessableEntity},
		{"bad kind", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":"x","description":"x"}`, http.StatusUnprocessableEntity},
		{"zero amount", http.MethodPost, "/accounts/1/transactions", `{"amount":0,"kind":"c","description":"x"}`, http.StatusUnprocessableEntity},
		{"syntax error", http.MethodPost, "/accounts/1/transactions", `{"amount":1,`, http.StatusUnprocessableEntity},
		{"garbage", http.MethodPost, "/accounts/1/transactions", `not json`, http.StatusUnprocessableEntity},
		{"trailing garbage", http.MethodPost, "/accounts/1/transactions", `{"amount":5,"kind":"d","description":"x"} garbage`, http.StatusUnprocessableEntity},
		{"two objects", http.MethodPost, "/accounts/1/transactions", `{"amount":5,"kind":"d","description":"x"}{"amount":5,"kind":"d","description":"x"}`, http.StatusUnprocessableEntity},
		{"empty body", http.MethodPost, "/accounts/1/transactions", "", http.StatusUnprocessableEntity},
		{"fractional amount", http.MethodPost, "/accounts/1/transactions", `{"amount":1.5,"kind":"c","description":"x"}`, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/accounts/1/transactions", `{"amount":-1,"kind":"c","description":"x"}`, http.StatusBadRequest},
		{"amount as string", http.MethodPost, "/accounts/1/transactions", `{"amount":"1","kind":"c","description":"x"}`, http.StatusBadRequest},
		{"kind as number", http.MethodPost, "/accounts/1/transactions", `{"amount":1,"kind":1,"description":"x"}`, http.StatusBadRequest},
		{"overflowing amount", http.MethodPost, "/accounts/1/transactions", `{"amount":9223372036854775808,"kind":"c","description":"x"}`, http.StatusBadRequest},
		{"array body", http.MethodPost, "/accounts/1/transactions", `[1]`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/accounts/1/transactions", `{"description":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/accounts/1/statement", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("code=%d want %d", w.Code, tt.want)
			}
			if w.Body.Len() != 0 {
				t.Fatalf("error response must be empty, got %q", w.Body)
			}
		})
	}

	w := do(r, http.MethodGet, "/accounts/1/statement", "")
	var st statementResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Balance.Total != 0 || len(st.LastTransactions) != 0 {
		t.Fatalf("rejected requests changed state: %+v", st)
	}
}

func TestHealthAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(t, &buf)

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("code=%d body=%s", w.Code, w.Body)
	}
	id := w.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q: %v", id, err)
	}

	var entry struct {
		RequestID string `json:"request_id"`
		Rsp       struct {
			Status      int    `json:"status"`
			StatusClass string `json:"status_class"`
		} `json:"rsp"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("access log %q: %v", buf.String(), err)
	}
	if entry.RequestID != id || entry.Rsp.Status != 200 || entry.Rsp.StatusClass != "2xx" {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestRequestIDIsReused(t *testing.T) {
	r := newTestRouter(t, nil)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, id)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != id {
		t.Fatalf("got %q want %q", got, id)
	}
}
