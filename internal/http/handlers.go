package http

import (
	"encoding/json"
	"net/http"
	"time"

	"milecard/internal/core"
	"milecard/internal/engine"
)

// Wire DTOs. The engine types stay JSON-free; the API names its own
// fields so internal renames never leak into clients.
type (
	cardDTO struct {
		ID             int64           `json:"id"`
		Name           string          `json:"name"`
		Bank           string          `json:"bank"`
		Network        string          `json:"network,omitempty"`
		AnnualFeeCents int64           `json:"annual_fee_cents"`
		BaseRate       float64         `json:"base_rate"`
		Active         bool            `json:"active"`
		ProgramID      int64           `json:"program_id"`
		Eligibility    *eligibilityDTO `json:"eligibility,omitempty"`
	}

	eligibilityDTO struct {
		MinIncomeCents int64  `json:"min_income_cents,omitempty"`
		BankingTier    string `json:"banking_tier,omitempty"`
		Gender         string `json:"gender,omitempty"`
		MinAge         int    `json:"min_age,omitempty"`
		MaxAge         int    `json:"max_age,omitempty"`
	}

	programDTO struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Airline string `json:"airline,omitempty"`
		Kind    string `json:"kind"`
	}

	recommendationDTO struct {
		Card        cardDTO `json:"card"`
		Rate        float64 `json:"rate"`
		CapRatio    float64 `json:"cap_ratio"`
		Score       float64 `json:"score"`
		Recommended bool    `json:"recommended"`
	}

	transactionDTO struct {
		ID          int64  `json:"id"`
		CardID      int64  `json:"card_id"`
		Category    string `json:"category"`
		AmountCents int64  `json:"amount_cents"`
		Date        string `json:"date"`
	}

	portfolioRowDTO struct {
		Program       programDTO            `json:"program"`
		Manual        int64                 `json:"manual_balance"`
		AutoEarned    int64                 `json:"auto_earned"`
		TotalRedeemed int64                 `json:"total_redeemed"`
		DisplayTotal  int64                 `json:"display_total"`
		Cards         []contributingCardDTO `json:"cards,omitempty"`
	}

	contributingCardDTO struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Bank string `json:"bank"`
	}

	transferOptionDTO struct {
		PartnerID      int64      `json:"partner_id"`
		To             programDTO `json:"to"`
		FromUnits      int64      `json:"from_units"`
		ToUnits        int64      `json:"to_units"`
		PointsPerMile  float64    `json:"points_per_mile"`
		ResultingMiles int64      `json:"resulting_miles"`
		FeeCents       int64      `json:"fee_cents,omitempty"`
		MinTransfer    int64      `json:"min_transfer,omitempty"`
	}

	potentialSourceDTO struct {
		From           programDTO `json:"from"`
		Balance        int64      `json:"balance"`
		ResultingMiles int64      `json:"resulting_miles"`
		Total          int64      `json:"total"`
	}

	nudgeDTO struct {
		Program programDTO        `json:"program"`
		Balance int64             `json:"balance"`
		Option  transferOptionDTO `json:"option"`
	}

	goalDTO struct {
		ID          int64  `json:"id"`
		ProgramID   int64  `json:"program_id"`
		Target      int64  `json:"target"`
		Description string `json:"description"`
		Achieved    bool   `json:"achieved"`
		AchievedAt  string `json:"achieved_at,omitempty"`
		CreatedAt   string `json:"created_at"`
	}

	alertDTO struct {
		ID            int64  `json:"id"`
		CardID        *int64 `json:"card_id,omitempty"`
		ProgramID     *int64 `json:"program_id,omitempty"`
		ChangeKind    string `json:"change_kind"`
		Category      string `json:"category,omitempty"`
		OldValue      string `json:"old_value,omitempty"`
		NewValue      string `json:"new_value,omitempty"`
		EffectiveDate string `json:"effective_date"`
		Title         string `json:"title"`
		Body          string `json:"body,omitempty"`
		Severity      string `json:"severity"`
	}

	alertsResponse struct {
		Alerts    []alertDTO `json:"alerts"`
		Count     int        `json:"count"`
		Collapsed bool       `json:"collapsed"`
		Top       *alertDTO  `json:"top,omitempty"`
	}
)

func toCardDTO(c core.Card) cardDTO {
	dto := cardDTO{
		ID:             c.ID,
		Name:           c.Name,
		Bank:           c.Bank,
		Network:        c.Network,
		AnnualFeeCents: c.AnnualFee.Cents,
		BaseRate:       c.BaseRate,
		Active:         c.Active,
		ProgramID:      c.ProgramID,
	}
	if c.Eligibility != nil {
		dto.Eligibility = &eligibilityDTO{
			MinIncomeCents: c.Eligibility.MinIncome.Cents,
			BankingTier:    c.Eligibility.BankingTier,
			Gender:         c.Eligibility.Gender,
			MinAge:         c.Eligibility.MinAge,
			MaxAge:         c.Eligibility.MaxAge,
		}
	}
	return dto
}

func toProgramDTO(p core.MilesProgram) programDTO {
	return programDTO{ID: p.ID, Name: p.Name, Airline: p.Airline, Kind: string(p.Kind)}
}

func toTransferOptionDTO(o engine.TransferOption) transferOptionDTO {
	return transferOptionDTO{
		PartnerID:      o.Partner.ID,
		To:             toProgramDTO(o.To),
		FromUnits:      o.Partner.FromUnits,
		ToUnits:        o.Partner.ToUnits,
		PointsPerMile:  o.PointsPerMile,
		ResultingMiles: o.ResultingMiles,
		FeeCents:       o.Partner.Fee.Cents,
		MinTransfer:    o.Partner.MinTransfer,
	}
}

func toGoalDTO(g core.MilesGoal) goalDTO {
	dto := goalDTO{
		ID:          g.ID,
		ProgramID:   g.ProgramID,
		Target:      g.Target,
		Description: g.Description,
		Achieved:    g.Achieved(),
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
	if g.AchievedAt != nil {
		dto.AchievedAt = g.AchievedAt.Format(time.RFC3339)
	}
	return dto
}

func toAlertDTO(c core.RateChange) alertDTO {
	return alertDTO{
		ID:            c.ID,
		CardID:        c.CardID,
		ProgramID:     c.ProgramID,
		ChangeKind:    c.ChangeKind,
		Category:      c.Category,
		OldValue:      c.OldValue,
		NewValue:      c.NewValue,
		EffectiveDate: c.EffectiveDate.Format("2006-01-02"),
		Title:         c.Title,
		Body:          c.Body,
		Severity:      string(c.Severity),
	}
}

// --- reference data ---

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.ListCards(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]cardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string][]cardDTO{"cards": out})
}

// --- user cards ---

func (s *Server) handleListUserCards(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cards, err := s.store.ListUserCards(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]cardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string][]cardDTO{"cards": out})
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req addCardRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, r, err)
		return
	}
	if err := s.ledger.AddCard(r.Context(), userID, req.CardID); err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, map[string]int64{"card_id": req.CardID})
}

func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cardID, err := pathID(r, "cardID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.RemoveCard(r.Context(), userID, cardID); err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateUser(userID)
	writeJSON(w, http.StatusNoContent, nil)
}

// --- spending ledger ---

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req recordTransactionRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, r, core.ErrInvalidDate)
		return
	}

	tx := core.Transaction{
		UserID:   userID,
		CardID:   req.CardID,
		Category: req.Category,
		Amount:   core.Money{Cents: req.AmountCents},
		Date:     date,
	}
	id, err := s.ledger.RecordTransaction(r.Context(), tx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txs, err := s.store.ListTransactions(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionDTO{
			ID:          tx.ID,
			CardID:      tx.CardID,
			Category:    tx.Category,
			AmountCents: tx.Amount.Cents,
			Date:        tx.Date.Format("2006-01-02"),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]transactionDTO{"transactions": out})
}

// --- recommendations ---

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category query parameter is required")
		return
	}

	key := s.userCachePrefix(userID) + "recommend:" + category
	if body, ok := s.readCache.Get(key); ok {
		writeJSONRaw(w, http.StatusOK, body)
		return
	}

	recs, err := s.advisor.Recommend(r.Context(), userID, category)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]recommendationDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recommendationDTO{
			Card:        toCardDTO(rec.Card),
			Rate:        rec.Rate,
			CapRatio:    rec.CapRatio,
			Score:       rec.Score,
			Recommended: rec.Recommended,
		})
	}
	s.respondCached(w, key, map[string][]recommendationDTO{"recommendations": out})
}

// --- portfolio and balances ---

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var kind *core.ProgramKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := core.ProgramKind(raw)
		if !k.Valid() {
			writeError(w, http.StatusBadRequest, "invalid program kind")
			return
		}
		kind = &k
	}

	key := s.userCachePrefix(userID) + "portfolio:" + r.URL.Query().Get("kind")
	if body, ok := s.readCache.Get(key); ok {
		writeJSONRaw(w, http.StatusOK, body)
		return
	}

	rows, err := s.advisor.Portfolio(r.Context(), userID, kind)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]portfolioRowDTO, 0, len(rows))
	for _, row := range rows {
		dto := portfolioRowDTO{
			Program:       toProgramDTO(row.Program),
			Manual:        row.Manual,
			AutoEarned:    row.AutoEarned,
			TotalRedeemed: row.TotalRedeemed,
			DisplayTotal:  row.DisplayTotal,
		}
		for _, c := range row.Cards {
			dto.Cards = append(dto.Cards, contributingCardDTO{ID: c.ID, Name: c.Name, Bank: c.Bank})
		}
		out = append(out, dto)
	}
	s.respondCached(w, key, map[string][]portfolioRowDTO{"portfolio": out})
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := pathID(r, "programID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setBalanceRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, r, err)
		return
	}
	if err := s.ledger.SetBalance(r.Context(), userID, programID, req.Balance); err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, map[string]int64{"program_id": programID, "balance": req.Balance})
}

func (s *Server) handleRecordRedemption(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req recordRedemptionRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, r, err)
		return
	}
	mt := core.MilesTransaction{
		UserID:      userID,
		ProgramID:   req.ProgramID,
		Amount:      req.Miles,
		Description: req.Description,
	}
	id, err := s.ledger.RecordRedemption(r.Context(), mt)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// --- transfers ---

func (s *Server) handleTransferOptions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := pathID(r, "programID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := s.advisor.TransferOptions(r.Context(), userID, programID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]transferOptionDTO, 0, len(opts))
	for _, o := range opts {
		out = append(out, toTransferOptionDTO(o))
	}
	writeJSON(w, http.StatusOK, map[string][]transferOptionDTO{"options": out})
}

func (s *Server) handlePotentialMiles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := pathID(r, "programID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sources, err := s.advisor.PotentialMiles(r.Context(), userID, programID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]potentialSourceDTO, 0, len(sources))
	var total int64
	for _, src := range sources {
		total = src.Total
		out = append(out, potentialSourceDTO{
			From:           toProgramDTO(src.From),
			Balance:        src.Balance,
			ResultingMiles: src.ResultingMiles,
			Total:          src.Total,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out, "total": total})
}

func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nudge, err := s.advisor.Nudge(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if nudge == nil {
		writeJSON(w, http.StatusOK, map[string]any{"nudge": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]nudgeDTO{"nudge": {
		Program: toProgramDTO(nudge.Program),
		Balance: nudge.Balance,
		Option:  toTransferOptionDTO(nudge.Option),
	}})
}

// --- goals ---

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := pathID(r, "programID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	goals, err := s.goals.List(r.Context(), userID, programID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]goalDTO, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, map[string][]goalDTO{"goals": out})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := pathID(r, "programID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req createGoalRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, r, err)
		return
	}
	goal, err := s.goals.Create(r.Context(), core.MilesGoal{
		UserID:      userID,
		ProgramID:   programID,
		Target:      req.Target,
		Description: req.Description,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	goalID, err := pathID(r, "goalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.goals.Delete(r.Context(), userID, goalID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// --- alerts ---

func (s *Server) handleUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts, pres, err := s.advisor.UserAlerts(r.Context(), userID, s.alertWindowDays)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp := alertsResponse{
		Alerts:    make([]alertDTO, 0, len(alerts)),
		Count:     pres.Count,
		Collapsed: pres.Collapsed,
	}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, toAlertDTO(a))
	}
	if pres.Top != nil {
		top := toAlertDTO(*pres.Top)
		resp.Top = &top
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCardAlerts(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts, err := s.advisor.CardAlerts(r.Context(), cardID, s.alertWindowDays)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]alertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string][]alertDTO{"alerts": out})
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alertID, err := pathID(r, "alertID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.DismissAlert(r.Context(), userID, alertID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// respondCached marshals once, stores the body in the read cache and
// writes it out.
func (s *Server) respondCached(w http.ResponseWriter, key string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.readCache.Set(key, raw)
	writeJSONRaw(w, http.StatusOK, raw)
}

// respondBadRequest distinguishes malformed JSON from failed validation.
func respondBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	if err == errBadBody {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondError(w, r, err)
}
