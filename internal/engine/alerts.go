package engine

import (
	"sort"
	"time"

	"milecard/internal/core"
)

// DefaultAlertWindowDays bounds how far back alert queries look.
const DefaultAlertWindowDays = 90

// AlertCollapseThreshold is the number of active alerts at which the
// client stops showing one alert in full and collapses to a count.
// Design constant, not tunable per user.
const AlertCollapseThreshold = 3

type (
	// AlertQuery scopes an alert lookup in time.
	AlertQuery struct {
		Now        time.Time
		MaxAgeDays int // 0 means DefaultAlertWindowDays
	}

	// UserAlertInput is everything needed to filter alerts for one user.
	// Dismissals travel as an explicit set so the filter stays pure.
	UserAlertInput struct {
		Changes    []core.RateChange
		Cards      []core.Card // cards the user owns
		ProgramIDs []int64     // programs the user holds
		Reads      []core.UserAlertRead
	}

	// AlertPresentation is the governing rule for the alert banner: below
	// the collapse threshold the single highest-severity alert shows in
	// full, at or above it only a count.
	AlertPresentation struct {
		Count     int
		Collapsed bool
		Top       *core.RateChange
	}
)

func (q AlertQuery) cutoff() time.Time {
	days := q.MaxAgeDays
	if days <= 0 {
		days = DefaultAlertWindowDays
	}
	return q.Now.AddDate(0, 0, -days)
}

// UserAlerts returns the undismissed rate changes relevant to the user's
// portfolio, newest-effective within the trailing window, ordered by
// severity descending then effective date descending. Changes effective
// in the future pass the recency filter: an announced devaluation is
// exactly what the user wants to hear about early.
func UserAlerts(in UserAlertInput, q AlertQuery) []core.RateChange {
	cutoff := q.cutoff()

	cardIDs := make(map[int64]bool, len(in.Cards))
	for _, c := range in.Cards {
		cardIDs[c.ID] = true
	}
	programIDs := make(map[int64]bool, len(in.ProgramIDs))
	for _, id := range in.ProgramIDs {
		programIDs[id] = true
	}
	read := make(map[int64]bool, len(in.Reads))
	for _, r := range in.Reads {
		read[r.RateChangeID] = true
	}

	out := make([]core.RateChange, 0)
	for _, c := range in.Changes {
		if c.EffectiveDate.Before(cutoff) || read[c.ID] {
			continue
		}
		inPortfolio := (c.CardID != nil && cardIDs[*c.CardID]) ||
			(c.ProgramID != nil && programIDs[*c.ProgramID])
		if !inPortfolio {
			continue
		}
		out = append(out, c)
	}

	sortAlerts(out)
	return out
}

// CardAlerts returns every recent change touching one card, regardless of
// dismissal or portfolio membership. The card-detail view wants the full
// history, read or not.
func CardAlerts(changes []core.RateChange, cardID int64, q AlertQuery) []core.RateChange {
	cutoff := q.cutoff()
	out := make([]core.RateChange, 0)
	for _, c := range changes {
		if c.CardID == nil || *c.CardID != cardID {
			continue
		}
		if c.EffectiveDate.Before(cutoff) {
			continue
		}
		out = append(out, c)
	}
	sortAlerts(out)
	return out
}

// Presentation applies the collapse rule to an already-sorted alert list.
func Presentation(alerts []core.RateChange) AlertPresentation {
	p := AlertPresentation{Count: len(alerts)}
	if len(alerts) == 0 {
		return p
	}
	if len(alerts) >= AlertCollapseThreshold {
		p.Collapsed = true
		return p
	}
	top := alerts[0]
	p.Top = &top
	return p
}

func sortAlerts(alerts []core.RateChange) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].EffectiveDate.After(alerts[j].EffectiveDate)
	})
}
