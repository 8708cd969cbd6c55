package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"milecard/internal/core"
	"milecard/internal/services"
	"milecard/internal/storage"
)

func testServer(t *testing.T) (*Server, *storage.MemStore) {
	t.Helper()

	store := storage.NewMemStore()
	store.SeedReference(
		[]string{"dining", "groceries", "travel"},
		[]core.MilesProgram{
			{ID: 1, Name: "SkyHigh Miles", Airline: "SkyHigh", Kind: core.KindAirline},
			{ID: 2, Name: "Everyday Points", Kind: core.KindBankPoints},
		},
		[]core.Card{
			{ID: 10, Name: "Voyager", Bank: "First Bank", BaseRate: 1.0, Active: true, ProgramID: 1},
			{ID: 11, Name: "Metro", Bank: "City Bank", BaseRate: 0.5, Active: true, ProgramID: 2},
		},
		[]core.EarnRule{
			{ID: 100, CardID: 10, Category: "dining", Rate: 3.0, Bonus: true, EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		[]core.Cap{
			{ID: 200, CardID: 10, Scope: core.CategoryScope("dining"), Amount: core.Money{Cents: 50_000}},
		},
		[]core.TransferPartner{
			{ID: 300, FromProgramID: 2, ToProgramID: 1, FromUnits: 2, ToUnits: 1},
		},
		[]core.RateChange{
			{ID: 400, CardID: int64ptr(10), ChangeKind: "earn_rate", Severity: core.SeverityWarning,
				EffectiveDate: time.Now().AddDate(0, 0, -1), Title: "Dining bonus reduced"},
		},
	)
	store.AddUserCard(context.Background(), 1, 10)
	store.AddUserCard(context.Background(), 1, 11)

	ledger := services.NewLedgerService(store, nil)
	advisor := services.NewAdvisorService(store)
	goals := services.NewGoalService(store, advisor, nil)

	srv := NewServer(":0", ledger, goals, advisor, store, 90)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, store
}

func int64ptr(v int64) *int64 { return &v }

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRecordTransactionEndpoint(t *testing.T) {
	srv, store := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/users/1/transactions",
		`{"card_id":10,"category":"dining","amount_cents":12000,"date":"2026-03-05"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST transactions = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == 0 {
		t.Error("response id = 0, want assigned id")
	}

	states, _ := store.ListSpendingStates(context.Background(), 1, "2026-03")
	if len(states) != 1 || states[0].TotalSpent.Cents != 12000 {
		t.Errorf("spending states = %+v, want one row of 12000", states)
	}
}

func TestRecordTransactionEndpointErrors(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "malformed json",
			body:     `{"card_id":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing amount",
			body:     `{"card_id":10,"category":"dining","date":"2026-03-05"}`,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "blank category",
			body:     `{"card_id":10,"category":"  ","amount_cents":100,"date":"2026-03-05"}`,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "unknown category",
			body:     `{"card_id":10,"category":"utilities","amount_cents":100,"date":"2026-03-05"}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "bad date format",
			body:     `{"card_id":10,"category":"dining","amount_cents":100,"date":"05/03/2026"}`,
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/users/1/transactions", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestRecommendEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/users/1/recommendations?category=dining", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET recommendations = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Recommendations []recommendationDTO `json:"recommendations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}
	top := resp.Recommendations[0]
	if top.Card.ID != 10 || !top.Recommended {
		t.Errorf("top = card %d recommended=%v, want card 10 recommended", top.Card.ID, top.Recommended)
	}

	// second read hits the cache and must return the same body
	rec2 := doRequest(t, srv, http.MethodGet, "/api/users/1/recommendations?category=dining", "")
	if rec2.Code != http.StatusOK || rec2.Body.String() != rec.Body.String() {
		t.Errorf("cached read differs: %d %s", rec2.Code, rec2.Body.String())
	}

	if rec := doRequest(t, srv, http.MethodGet, "/api/users/1/recommendations?category=utilities", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown category = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodGet, "/api/users/1/recommendations", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing category = %d, want 400", rec.Code)
	}
}

func TestPortfolioAndBalanceEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/users/1/balances/2", `{"balance":10000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT balance = %d, body %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(t, srv, http.MethodPut, "/api/users/1/balances/99", `{"balance":10}`); rec.Code != http.StatusNotFound {
		t.Errorf("PUT balance unknown program = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/users/1/portfolio", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET portfolio = %d", rec.Code)
	}
	var resp struct {
		Portfolio []portfolioRowDTO `json:"portfolio"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Portfolio) != 2 {
		t.Fatalf("got %d portfolio rows, want 2", len(resp.Portfolio))
	}
	if resp.Portfolio[0].Program.ID != 2 || resp.Portfolio[0].DisplayTotal != 10000 {
		t.Errorf("top row = %+v, want program 2 at 10000", resp.Portfolio[0])
	}

	if rec := doRequest(t, srv, http.MethodGet, "/api/users/1/portfolio?kind=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", rec.Code)
	}
}

func TestTransferEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	if rec := doRequest(t, srv, http.MethodPut, "/api/users/1/balances/2", `{"balance":10000}`); rec.Code != http.StatusOK {
		t.Fatalf("seed balance failed: %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/users/1/programs/2/transfers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET transfers = %d", rec.Code)
	}
	var resp struct {
		Options []transferOptionDTO `json:"options"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Options) != 1 || resp.Options[0].ResultingMiles != 5000 {
		t.Errorf("options = %+v, want one option of 5000 miles", resp.Options)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/users/1/programs/1/potential", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET potential = %d", rec.Code)
	}
	var pot struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pot); err != nil {
		t.Fatal(err)
	}
	if pot.Total != 5000 {
		t.Errorf("potential total = %d, want 5000", pot.Total)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/users/1/nudge", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET nudge = %d", rec.Code)
	}
	var nud struct {
		Nudge *nudgeDTO `json:"nudge"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &nud); err != nil {
		t.Fatal(err)
	}
	if nud.Nudge == nil || nud.Nudge.Program.ID != 2 {
		t.Errorf("nudge = %+v, want program 2 suggestion", nud.Nudge)
	}
}

func TestGoalEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	var created goalDTO
	for i := 0; i < core.MaxOpenGoals; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/api/users/1/programs/1/goals",
			`{"target":25000,"description":"Tokyo"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("POST goal #%d = %d, body %s", i+1, rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatal(err)
		}
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/users/1/programs/1/goals",
		`{"target":25000,"description":"Osaka"}`); rec.Code != http.StatusConflict {
		t.Errorf("POST over limit = %d, want 409", rec.Code)
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/users/1/programs/1/goals",
		`{"target":500,"description":"Too small"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST low target = %d, want 422", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/users/1/programs/1/goals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET goals = %d", rec.Code)
	}
	var resp struct {
		Goals []goalDTO `json:"goals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Goals) != core.MaxOpenGoals {
		t.Errorf("got %d goals, want %d", len(resp.Goals), core.MaxOpenGoals)
	}

	if rec := doRequest(t, srv, http.MethodDelete, "/api/users/2/goals/"+jsonID(created.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("DELETE by wrong user = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodDelete, "/api/users/1/goals/"+jsonID(created.ID), ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE goal = %d, want 204", rec.Code)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestAlertEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/users/1/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET alerts = %d", rec.Code)
	}
	var resp alertsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Alerts) != 1 || resp.Alerts[0].ID != 400 {
		t.Fatalf("alerts = %+v, want single alert 400", resp)
	}
	if resp.Top == nil || resp.Top.ID != 400 {
		t.Errorf("top = %+v, want alert 400", resp.Top)
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/users/1/alerts/400/dismiss", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("POST dismiss = %d, want 204", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/users/1/alerts", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 0 {
		t.Errorf("alerts after dismissal = %d, want 0", resp.Count)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/cards/10/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET card alerts = %d", rec.Code)
	}
	var cardResp struct {
		Alerts []alertDTO `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cardResp); err != nil {
		t.Fatal(err)
	}
	// card view ignores dismissal
	if len(cardResp.Alerts) != 1 {
		t.Errorf("card alerts = %d, want 1 despite dismissal", len(cardResp.Alerts))
	}
}

func TestUserCardEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/users/2/cards", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET cards = %d", rec.Code)
	}
	var resp struct {
		Cards []cardDTO `json:"cards"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Cards) != 0 {
		t.Fatalf("new user has %d cards, want 0", len(resp.Cards))
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/users/2/cards", `{"card_id":10}`); rec.Code != http.StatusCreated {
		t.Fatalf("POST card = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/users/2/cards", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Cards) != 1 || resp.Cards[0].ID != 10 {
		t.Errorf("cards after add = %+v, want card 10", resp.Cards)
	}

	if rec := doRequest(t, srv, http.MethodDelete, "/api/users/2/cards/10", ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE card = %d, want 204", rec.Code)
	}
}
