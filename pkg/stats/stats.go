// Package stats derives the dashboard KPIs and chart series from loaded
// collections. Everything here is pure computation; callers fetch the data.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"lostfound/pkg/domain"
)

const (
	trendWindow  = 7 * 24 * time.Hour
	topLimit     = 8
	noTypeLabel  = "Non spécifié"
	satisfiedCap = 100.0
)

// Overview holds the collection totals shown in the header cards.
type Overview struct {
	TotalFound   int `json:"totalFound"`
	TotalLost    int `json:"totalLost"`
	TotalOwners  int `json:"totalOwners"`
	TotalMatches int `json:"totalMatches"`
	TotalObjects int `json:"totalObjects"`
}

// NewOverview computes the totals. totalMatches counts accepted matches only.
func NewOverview(found, lost, owners, acceptedMatches int) Overview {
	return Overview{
		TotalFound:   found,
		TotalLost:    lost,
		TotalOwners:  owners,
		TotalMatches: acceptedMatches,
		TotalObjects: found + lost,
	}
}

// Trend is a week-over-week percent change for display.
type Trend struct {
	Value    string `json:"value"`
	Positive bool   `json:"isPositive"`
}

// TrendPercent compares the current 7-day window against the prior one.
// A prior count of zero collapses to sentinels: "+100%" when anything
// happened this week, "0%" when nothing did.
func TrendPercent(prior, current int) Trend {
	var value string
	switch {
	case prior > 0:
		value = fmt.Sprintf("%.1f%%", float64(current-prior)/float64(prior)*100)
	case current > 0:
		value = "+100%"
	default:
		value = "0%"
	}
	return Trend{Value: value, Positive: !strings.HasPrefix(value, "-")}
}

// windowCounts splits timestamps into the current 7-day window and the
// 7 days before it. Anything older than 14 days is ignored.
func windowCounts(times []time.Time, now time.Time) (current, prior int) {
	weekAgo := now.Add(-trendWindow)
	twoWeeksAgo := now.Add(-2 * trendWindow)
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		switch {
		case !t.Before(weekAgo):
			current++
		case !t.Before(twoWeeksAgo):
			prior++
		}
	}
	return current, prior
}

// AverageResponseDays returns the mean number of days between a lost
// object's creation and its accepted match, rounded to one decimal. Matches
// whose lost object cannot be resolved contribute nothing to either side of
// the mean. The second return value is the number of matches counted.
func AverageResponseDays(matches []domain.Match, lost []domain.LostObject) (float64, int) {
	lostByID := make(map[string]domain.LostObject, len(lost))
	for _, obj := range lost {
		lostByID[obj.ID] = obj
	}
	var total, counted int
	for _, m := range matches {
		if m.Timestamp.IsZero() {
			continue
		}
		obj, ok := lostByID[m.LostID]
		if !ok || obj.CreatedAt.IsZero() {
			continue
		}
		diff := m.Timestamp.Sub(obj.CreatedAt)
		if diff < 0 {
			diff = -diff
		}
		days := int(math.Ceil(diff.Hours() / 24))
		total += days
		counted++
	}
	if counted == 0 {
		return 0, 0
	}
	avg := float64(total) / float64(counted)
	return math.Round(avg*10) / 10, counted
}

// Satisfaction blends the match rate (weight 0.7) with a response-time decay
// factor (weight 0.3), capped at 100. A display heuristic, nothing more.
func Satisfaction(matchRate, avgResponseDays float64) float64 {
	factor := math.Max(0, (10-avgResponseDays)/10)
	score := math.Min(satisfiedCap, matchRate*0.7+factor*30)
	return math.Round(score*10) / 10
}

// KPIs holds the derived dashboard indicators.
type KPIs struct {
	FoundTrend          Trend   `json:"foundTrend"`
	LostTrend           Trend   `json:"lostTrend"`
	MatchTrend          Trend   `json:"matchTrend"`
	AverageResponseDays float64 `json:"averageResponseTime"`
	Satisfaction        float64 `json:"satisfaction"`
	MatchRate           float64 `json:"matchRate"`
	TotalObjects        int     `json:"totalObjects"`
	ObjectsInWaiting    int     `json:"objectsInWaiting"`
}

// ComputeKPIs derives the indicator block. acceptedMatches must already be
// filtered to status accepted.
func ComputeKPIs(found []domain.FoundObject, lost []domain.LostObject, acceptedMatches []domain.Match, now time.Time) KPIs {
	foundTimes := make([]time.Time, 0, len(found))
	for _, obj := range found {
		foundTimes = append(foundTimes, obj.CreatedAt)
	}
	lostTimes := make([]time.Time, 0, len(lost))
	for _, obj := range lost {
		lostTimes = append(lostTimes, obj.CreatedAt)
	}
	matchTimes := make([]time.Time, 0, len(acceptedMatches))
	for _, m := range acceptedMatches {
		matchTimes = append(matchTimes, m.Timestamp)
	}

	curFound, priorFound := windowCounts(foundTimes, now)
	curLost, priorLost := windowCounts(lostTimes, now)
	curMatch, priorMatch := windowCounts(matchTimes, now)

	avgDays, _ := AverageResponseDays(acceptedMatches, lost)

	totalObjects := len(found) + len(lost)
	var matchRate float64
	if totalObjects > 0 {
		matchRate = float64(len(acceptedMatches)) / float64(totalObjects) * 100
	}

	return KPIs{
		FoundTrend:          TrendPercent(priorFound, curFound),
		LostTrend:           TrendPercent(priorLost, curLost),
		MatchTrend:          TrendPercent(priorMatch, curMatch),
		AverageResponseDays: avgDays,
		Satisfaction:        Satisfaction(matchRate, avgDays),
		MatchRate:           math.Round(matchRate*10) / 10,
		TotalObjects:        totalObjects,
		ObjectsInWaiting:    totalObjects - len(acceptedMatches),
	}
}

// DayCount is one day of the activity series.
type DayCount struct {
	Date    string `json:"date"`
	Found   int    `json:"found"`
	Lost    int    `json:"lost"`
	Matches int    `json:"matches"`
}

// DailySeries buckets created records per UTC day over the last `days` days,
// oldest first, including empty days.
func DailySeries(found []domain.FoundObject, lost []domain.LostObject, acceptedMatches []domain.Match, days int, now time.Time) []DayCount {
	if days <= 0 {
		return nil
	}
	byDay := make(map[string]*DayCount, days)
	series := make([]DayCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := now.UTC().AddDate(0, 0, -i).Format("2006-01-02")
		series = append(series, DayCount{Date: date})
	}
	for i := range series {
		byDay[series[i].Date] = &series[i]
	}
	for _, obj := range found {
		if dc, ok := byDay[obj.CreatedAt.UTC().Format("2006-01-02")]; ok {
			dc.Found++
		}
	}
	for _, obj := range lost {
		if dc, ok := byDay[obj.CreatedAt.UTC().Format("2006-01-02")]; ok {
			dc.Lost++
		}
	}
	for _, m := range acceptedMatches {
		if dc, ok := byDay[m.Timestamp.UTC().Format("2006-01-02")]; ok {
			dc.Matches++
		}
	}
	return series
}

// TypeCount is one object type's share of found and lost records.
type TypeCount struct {
	Name  string `json:"name"`
	Found int    `json:"found"`
	Lost  int    `json:"lost"`
	Total int    `json:"total"`
}

// TopTypes returns the most frequent object types across both collections,
// at most topLimit entries, sorted by total descending.
func TopTypes(found []domain.FoundObject, lost []domain.LostObject) []TypeCount {
	byName := make(map[string]*TypeCount)
	bump := func(name string, isFound bool) {
		if name == "" {
			name = noTypeLabel
		}
		tc, ok := byName[name]
		if !ok {
			tc = &TypeCount{Name: name}
			byName[name] = tc
		}
		if isFound {
			tc.Found++
		} else {
			tc.Lost++
		}
		tc.Total++
	}
	for _, obj := range found {
		bump(obj.Type, true)
	}
	for _, obj := range lost {
		bump(obj.Type, false)
	}
	out := make([]TypeCount, 0, len(byName))
	for _, tc := range byName {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topLimit {
		out = out[:topLimit]
	}
	return out
}

// LocationCount is one discovery location's found-object count.
type LocationCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TopLocations returns the most frequent discovery locations of found
// objects, at most topLimit entries.
func TopLocations(found []domain.FoundObject) []LocationCount {
	byName := make(map[string]int)
	for _, obj := range found {
		name := obj.Location
		if name == "" {
			name = noTypeLabel
		}
		byName[name]++
	}
	out := make([]LocationCount, 0, len(byName))
	for name, value := range byName {
		out = append(out, LocationCount{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topLimit {
		out = out[:topLimit]
	}
	return out
}

// StatusCount is one slice of the status pie chart.
type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// StatusBreakdown mirrors the dashboard pie: found vs lost vs accepted
// matches.
func StatusBreakdown(found, lost, acceptedMatches int) []StatusCount {
	return []StatusCount{
		{Name: "Trouvés", Value: found},
		{Name: "Perdus", Value: lost},
		{Name: "Matchés", Value: acceptedMatches},
	}
}
