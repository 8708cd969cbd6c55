package engine

import (
	"testing"
	"time"

	"milecard/internal/core"
)

var alertNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func change(id int64, cardID, programID *int64, sev core.Severity, effective time.Time) core.RateChange {
	return core.RateChange{
		ID: id, CardID: cardID, ProgramID: programID,
		ChangeKind: "rate_decrease", Severity: sev, EffectiveDate: effective,
		Title: "rate change",
	}
}

func TestUserAlerts_FilterAndOrder(t *testing.T) {
	ownedCard := int64(1)
	otherCard := int64(9)
	heldProgram := int64(2)

	in := UserAlertInput{
		Changes: []core.RateChange{
			change(1, &ownedCard, nil, core.SeverityInfo, alertNow.AddDate(0, 0, -10)),
			change(2, &ownedCard, nil, core.SeverityCritical, alertNow.AddDate(0, 0, -30)),
			change(3, &otherCard, nil, core.SeverityCritical, alertNow.AddDate(0, 0, -5)),   // not in portfolio
			change(4, &ownedCard, nil, core.SeverityWarning, alertNow.AddDate(0, 0, -120)), // outside window
			change(5, nil, &heldProgram, core.SeverityWarning, alertNow.AddDate(0, 0, -3)),
			change(6, &ownedCard, nil, core.SeverityWarning, alertNow.AddDate(0, 0, -1)), // dismissed
		},
		Cards:      []core.Card{{ID: ownedCard, Name: "Mine"}},
		ProgramIDs: []int64{heldProgram},
		Reads:      []core.UserAlertRead{{UserID: 7, RateChangeID: 6}},
	}

	got := UserAlerts(in, AlertQuery{Now: alertNow})
	wantIDs := []int64{2, 5, 1} // critical first, then warning, then info
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d alerts, want %d", len(got), len(wantIDs))
	}
	for i, a := range got {
		if a.ID != wantIDs[i] {
			t.Errorf("alerts[%d].ID = %d, want %d", i, a.ID, wantIDs[i])
		}
	}
}

func TestUserAlerts_SameSeverityNewestFirst(t *testing.T) {
	card := int64(1)
	in := UserAlertInput{
		Changes: []core.RateChange{
			change(1, &card, nil, core.SeverityWarning, alertNow.AddDate(0, 0, -20)),
			change(2, &card, nil, core.SeverityWarning, alertNow.AddDate(0, 0, -2)),
			change(3, &card, nil, core.SeverityWarning, alertNow.AddDate(0, 0, -8)),
		},
		Cards: []core.Card{{ID: card}},
	}

	got := UserAlerts(in, AlertQuery{Now: alertNow})
	wantIDs := []int64{2, 3, 1}
	for i, a := range got {
		if a.ID != wantIDs[i] {
			t.Errorf("alerts[%d].ID = %d, want %d", i, a.ID, wantIDs[i])
		}
	}
}

func TestCardAlerts_IgnoresDismissal(t *testing.T) {
	card := int64(1)
	changes := []core.RateChange{
		change(1, &card, nil, core.SeverityInfo, alertNow.AddDate(0, 0, -10)),
		change(2, &card, nil, core.SeverityCritical, alertNow.AddDate(0, 0, -200)), // stale
		change(3, nil, int64p(5), core.SeverityInfo, alertNow.AddDate(0, 0, -1)),   // different subject
	}

	got := CardAlerts(changes, card, AlertQuery{Now: alertNow})
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("got %+v, want only change 1", got)
	}
}

func TestPresentation_CollapseThreshold(t *testing.T) {
	card := int64(1)
	mk := func(n int) []core.RateChange {
		out := make([]core.RateChange, 0, n)
		sevs := []core.Severity{core.SeverityCritical, core.SeverityWarning, core.SeverityInfo, core.SeverityInfo}
		for i := 0; i < n; i++ {
			out = append(out, change(int64(i+1), &card, nil, sevs[i], alertNow.AddDate(0, 0, -i)))
		}
		return out
	}

	tests := []struct {
		name          string
		alerts        []core.RateChange
		wantCollapsed bool
		wantTop       bool
	}{
		{name: "no alerts", alerts: mk(0)},
		{name: "one alert shown in full", alerts: mk(1), wantTop: true},
		{name: "two alerts show the top one", alerts: mk(2), wantTop: true},
		{name: "three alerts collapse", alerts: mk(3), wantCollapsed: true},
		{name: "four alerts collapse", alerts: mk(4), wantCollapsed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Presentation(tt.alerts)
			if p.Count != len(tt.alerts) {
				t.Errorf("Count = %d, want %d", p.Count, len(tt.alerts))
			}
			if p.Collapsed != tt.wantCollapsed {
				t.Errorf("Collapsed = %v, want %v", p.Collapsed, tt.wantCollapsed)
			}
			if (p.Top != nil) != tt.wantTop {
				t.Errorf("Top present = %v, want %v", p.Top != nil, tt.wantTop)
			}
			if tt.wantTop && p.Top.Severity != tt.alerts[0].Severity {
				t.Errorf("Top severity = %s, want highest", p.Top.Severity)
			}
		})
	}
}
