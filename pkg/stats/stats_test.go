package stats

import (
	"testing"
	"time"

	"lostfound/pkg/domain"
)

func TestTrendPercent(t *testing.T) {
	tests := []struct {
		name     string
		prior    int
		current  int
		want     string
		positive bool
	}{
		{"prior zero current nonzero", 0, 5, "+100%", true},
		{"halved", 10, 5, "-50.0%", false},
		{"both zero", 0, 0, "0%", true},
		{"doubled", 5, 10, "100.0%", true},
		{"flat", 4, 4, "0.0%", true},
		{"third more", 3, 4, "33.3%", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TrendPercent(tc.prior, tc.current)
			if got.Value != tc.want {
				t.Fatalf("value = %q, want %q", got.Value, tc.want)
			}
			if got.Positive != tc.positive {
				t.Fatalf("positive = %v, want %v", got.Positive, tc.positive)
			}
		})
	}
}

func TestWindowCounts(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		now.Add(-2 * 24 * time.Hour),  // current window
		now.Add(-6 * 24 * time.Hour),  // current window
		now.Add(-8 * 24 * time.Hour),  // prior window
		now.Add(-20 * 24 * time.Hour), // too old
		{},                            // missing timestamp
	}
	current, prior := windowCounts(times, now)
	if current != 2 || prior != 1 {
		t.Fatalf("windows = (%d, %d), want (2, 1)", current, prior)
	}
}

func TestAverageResponseDaysExcludesUnresolvable(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	lost := []domain.LostObject{
		{ID: "l1", CreatedAt: base},
		{ID: "l2", CreatedAt: base},
	}
	matches := []domain.Match{
		{LostID: "l1", Timestamp: base.Add(48 * time.Hour)},         // 2 days
		{LostID: "l2", Timestamp: base.Add(4*24*time.Hour + time.Hour)}, // ceil to 5 days
		{LostID: "missing", Timestamp: base.Add(90 * 24 * time.Hour)},   // excluded entirely
	}

	avg, counted := AverageResponseDays(matches, lost)
	if counted != 2 {
		t.Fatalf("counted = %d, want 2", counted)
	}
	if avg != 3.5 {
		t.Fatalf("avg = %v, want 3.5", avg)
	}
}

func TestAverageResponseDaysEmpty(t *testing.T) {
	avg, counted := AverageResponseDays(nil, nil)
	if avg != 0 || counted != 0 {
		t.Fatalf("got (%v, %d), want (0, 0)", avg, counted)
	}
}

func TestSatisfaction(t *testing.T) {
	// Instant responses with full match coverage cap at 100.
	if got := Satisfaction(100, 0); got != 100 {
		t.Fatalf("capped satisfaction = %v", got)
	}
	// matchRate 50, avg 5 days: 50*0.7 + 0.5*30 = 50.
	if got := Satisfaction(50, 5); got != 50 {
		t.Fatalf("satisfaction = %v, want 50", got)
	}
	// Slow responses never push the factor below zero.
	if got := Satisfaction(0, 30); got != 0 {
		t.Fatalf("satisfaction = %v, want 0", got)
	}
}

func TestComputeKPIs(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	found := []domain.FoundObject{
		{CreatedAt: now.Add(-24 * time.Hour)},
		{CreatedAt: now.Add(-8 * 24 * time.Hour)},
	}
	lost := []domain.LostObject{
		{ID: "l1", CreatedAt: now.Add(-3 * 24 * time.Hour)},
	}
	accepted := []domain.Match{
		{LostID: "l1", Timestamp: now.Add(-24 * time.Hour)},
	}

	kpis := ComputeKPIs(found, lost, accepted, now)

	if kpis.FoundTrend.Value != "0.0%" {
		t.Fatalf("found trend = %q", kpis.FoundTrend.Value)
	}
	if kpis.MatchTrend.Value != "+100%" {
		t.Fatalf("match trend = %q", kpis.MatchTrend.Value)
	}
	if kpis.TotalObjects != 3 {
		t.Fatalf("total objects = %d", kpis.TotalObjects)
	}
	if kpis.ObjectsInWaiting != 2 {
		t.Fatalf("objects in waiting = %d", kpis.ObjectsInWaiting)
	}
	if kpis.AverageResponseDays != 2 {
		t.Fatalf("avg response days = %v", kpis.AverageResponseDays)
	}
}

func TestDailySeries(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	found := []domain.FoundObject{
		{CreatedAt: now},
		{CreatedAt: now.Add(-24 * time.Hour)},
		{CreatedAt: now.Add(-40 * 24 * time.Hour)}, // outside range
	}
	lost := []domain.LostObject{{CreatedAt: now}}

	series := DailySeries(found, lost, nil, 7, now)
	if len(series) != 7 {
		t.Fatalf("series length = %d", len(series))
	}
	last := series[6]
	if last.Date != "2026-06-15" || last.Found != 1 || last.Lost != 1 {
		t.Fatalf("last day = %+v", last)
	}
	if series[5].Found != 1 {
		t.Fatalf("previous day = %+v", series[5])
	}
	if series[0].Found != 0 {
		t.Fatalf("oldest day should be empty: %+v", series[0])
	}
}

func TestTopTypesAndLocations(t *testing.T) {
	found := []domain.FoundObject{
		{Type: "Téléphone", Location: "Terminal 1"},
		{Type: "Téléphone", Location: "Terminal 1"},
		{Type: "Valise", Location: "Porte B12"},
		{Type: "", Location: ""},
	}
	lost := []domain.LostObject{
		{Type: "Téléphone"},
	}

	types := TopTypes(found, lost)
	if types[0].Name != "Téléphone" || types[0].Total != 3 || types[0].Found != 2 || types[0].Lost != 1 {
		t.Fatalf("top type = %+v", types[0])
	}
	var sawUnspecified bool
	for _, tc := range types {
		if tc.Name == "Non spécifié" {
			sawUnspecified = true
		}
	}
	if !sawUnspecified {
		t.Fatal("missing type should bucket under Non spécifié")
	}

	locations := TopLocations(found)
	if locations[0].Name != "Terminal 1" || locations[0].Value != 2 {
		t.Fatalf("top location = %+v", locations[0])
	}
}

func TestNewOverview(t *testing.T) {
	o := NewOverview(4, 6, 3, 2)
	if o.TotalObjects != 10 || o.TotalMatches != 2 {
		t.Fatalf("overview = %+v", o)
	}
}
