package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"milecard/internal/core"
)

// Tab layouts, one row per entity, header in row 1:
//
//	Programs:    ID | Name | Airline | Kind
//	Cards:       ID | Name | Bank | Network | AnnualFee | BaseRate | Active | ProgramID | MinIncome | BankingTier | Gender | MinAge | MaxAge
//	EarnRules:   ID | CardID | Category | Rate | Bonus | ConditionNote | EffectiveFrom | EffectiveTo
//	Caps:        ID | CardID | Category (blank = whole card) | Amount
//	Partners:    ID | FromProgramID | ToProgramID | FromUnits | ToUnits | Fee | MinTransfer
//	RateChanges: ID | CardID | ProgramID | ChangeKind | Category | OldValue | NewValue | EffectiveDate | Title | Body | Severity
//
// Money columns are dollars with an optional decimal part. Dates are
// "2006-01-02".

// parseCategories keeps non-blank, non-comment names, first occurrence wins.
func parseCategories(rows [][]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(row[0])
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func parseProgramRow(row []string) (core.MilesProgram, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.MilesProgram{}, err
	}
	return core.MilesProgram{
		ID:      id,
		Name:    safeGet(row, 1),
		Airline: safeGet(row, 2),
		Kind:    core.ProgramKind(safeGet(row, 3)),
	}, nil
}

func parseCardRow(row []string) (core.Card, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.Card{}, err
	}
	fee, ok := parseDollarsToCents(safeGet(row, 4))
	if !ok {
		return core.Card{}, fmt.Errorf("bad annual fee %q", safeGet(row, 4))
	}
	rate, err := strconv.ParseFloat(safeGet(row, 5), 64)
	if err != nil {
		return core.Card{}, fmt.Errorf("bad base rate %q", safeGet(row, 5))
	}
	programID, err := parseID(safeGet(row, 7))
	if err != nil {
		return core.Card{}, fmt.Errorf("bad program id: %w", err)
	}

	c := core.Card{
		ID:        id,
		Name:      safeGet(row, 1),
		Bank:      safeGet(row, 2),
		Network:   safeGet(row, 3),
		AnnualFee: core.Money{Cents: fee},
		BaseRate:  rate,
		Active:    parseBool(safeGet(row, 6)),
		ProgramID: programID,
	}
	c.Eligibility = parseEligibility(row)
	return c, nil
}

// parseEligibility reads columns I..M; all blank means no predicate.
func parseEligibility(row []string) *core.Eligibility {
	income := safeGet(row, 8)
	tier := safeGet(row, 9)
	gender := safeGet(row, 10)
	minAge := safeGet(row, 11)
	maxAge := safeGet(row, 12)
	if income == "" && tier == "" && gender == "" && minAge == "" && maxAge == "" {
		return nil
	}

	e := &core.Eligibility{BankingTier: tier, Gender: gender}
	if cents, ok := parseDollarsToCents(income); ok {
		e.MinIncome = core.Money{Cents: cents}
	}
	if n, err := strconv.Atoi(minAge); err == nil {
		e.MinAge = n
	}
	if n, err := strconv.Atoi(maxAge); err == nil {
		e.MaxAge = n
	}
	return e
}

func parseEarnRuleRow(row []string) (core.EarnRule, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.EarnRule{}, err
	}
	cardID, err := parseID(safeGet(row, 1))
	if err != nil {
		return core.EarnRule{}, fmt.Errorf("bad card id: %w", err)
	}
	rate, err := strconv.ParseFloat(safeGet(row, 3), 64)
	if err != nil {
		return core.EarnRule{}, fmt.Errorf("bad rate %q", safeGet(row, 3))
	}
	from, err := parseDate(safeGet(row, 6))
	if err != nil {
		return core.EarnRule{}, fmt.Errorf("bad effective-from: %w", err)
	}

	rule := core.EarnRule{
		ID:            id,
		CardID:        cardID,
		Category:      safeGet(row, 2),
		Rate:          rate,
		Bonus:         parseBool(safeGet(row, 4)),
		ConditionNote: safeGet(row, 5),
		EffectiveFrom: from,
	}
	if to := safeGet(row, 7); to != "" {
		t, err := parseDate(to)
		if err != nil {
			return core.EarnRule{}, fmt.Errorf("bad effective-to: %w", err)
		}
		rule.EffectiveTo = &t
	}
	return rule, nil
}

func parseCapRow(row []string) (core.Cap, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.Cap{}, err
	}
	cardID, err := parseID(safeGet(row, 1))
	if err != nil {
		return core.Cap{}, fmt.Errorf("bad card id: %w", err)
	}
	amount, ok := parseDollarsToCents(safeGet(row, 3))
	if !ok {
		return core.Cap{}, fmt.Errorf("bad amount %q", safeGet(row, 3))
	}

	scope := core.GlobalScope()
	if category := safeGet(row, 2); category != "" {
		scope = core.CategoryScope(category)
	}
	return core.Cap{ID: id, CardID: cardID, Scope: scope, Amount: core.Money{Cents: amount}}, nil
}

func parsePartnerRow(row []string) (core.TransferPartner, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.TransferPartner{}, err
	}
	from, err := parseID(safeGet(row, 1))
	if err != nil {
		return core.TransferPartner{}, fmt.Errorf("bad from-program id: %w", err)
	}
	to, err := parseID(safeGet(row, 2))
	if err != nil {
		return core.TransferPartner{}, fmt.Errorf("bad to-program id: %w", err)
	}
	fromUnits, err := parseID(safeGet(row, 3))
	if err != nil {
		return core.TransferPartner{}, fmt.Errorf("bad from-units: %w", err)
	}
	toUnits, err := parseID(safeGet(row, 4))
	if err != nil {
		return core.TransferPartner{}, fmt.Errorf("bad to-units: %w", err)
	}

	p := core.TransferPartner{
		ID: id, FromProgramID: from, ToProgramID: to,
		FromUnits: fromUnits, ToUnits: toUnits,
	}
	if fee, ok := parseDollarsToCents(safeGet(row, 5)); ok {
		p.Fee = core.Money{Cents: fee}
	}
	if min, err := strconv.ParseInt(safeGet(row, 6), 10, 64); err == nil {
		p.MinTransfer = min
	}
	return p, nil
}

func parseRateChangeRow(row []string) (core.RateChange, error) {
	id, err := parseID(safeGet(row, 0))
	if err != nil {
		return core.RateChange{}, err
	}
	effective, err := parseDate(safeGet(row, 7))
	if err != nil {
		return core.RateChange{}, fmt.Errorf("bad effective date: %w", err)
	}

	c := core.RateChange{
		ID:            id,
		ChangeKind:    safeGet(row, 3),
		Category:      safeGet(row, 4),
		OldValue:      safeGet(row, 5),
		NewValue:      safeGet(row, 6),
		EffectiveDate: effective,
		Title:         safeGet(row, 8),
		Body:          safeGet(row, 9),
		Severity:      core.Severity(safeGet(row, 10)),
	}
	if v := safeGet(row, 1); v != "" {
		cardID, err := parseID(v)
		if err != nil {
			return core.RateChange{}, fmt.Errorf("bad card id: %w", err)
		}
		c.CardID = &cardID
	}
	if v := safeGet(row, 2); v != "" {
		programID, err := parseID(v)
		if err != nil {
			return core.RateChange{}, fmt.Errorf("bad program id: %w", err)
		}
		c.ProgramID = &programID
	}
	return c, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return id, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// parseDollarsToCents accepts "1,234.50", "95", or "95.00". Sheets may
// hand numeric cells back with a decimal comma depending on locale.
func parseDollarsToCents(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f*100.0 + 0.5), true
}
