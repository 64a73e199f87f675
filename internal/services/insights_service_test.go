package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/yourusername/fpl-insights-backend/internal/models"
)

func intPtr(v int) *int { return &v }

func simpleTimeline() *models.SeasonTimeline {
	return &models.SeasonTimeline{
		EntryID: 123,
		Gameweeks: []models.GameweekRecord{
			{Gameweek: 1, Points: 60, BenchPoints: 5, OverallRank: intPtr(100000), TeamValue: 1000, Chip: models.ChipNone},
			{Gameweek: 2, Points: 45, BenchPoints: 10, OverallRank: intPtr(150000), TeamValue: 1003, Chip: models.ChipNone},
			{Gameweek: 3, Points: 80, BenchPoints: 0, OverallRank: intPtr(90000), TeamValue: 1008, Chip: models.ChipNone},
		},
	}
}

func TestComputeInsightsEmptyTimeline(t *testing.T) {
	var emptyErr *EmptyTimelineError

	result, err := ComputeInsights(&models.SeasonTimeline{EntryID: 1})
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyTimelineError, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no partial result, got %+v", result)
	}

	result, err = ComputeInsights(nil)
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyTimelineError for nil timeline, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no partial result for nil timeline, got %+v", result)
	}
}

func TestBenchPointsWasted(t *testing.T) {
	tests := []struct {
		name      string
		gameweeks []models.GameweekRecord
		want      int
	}{
		{
			name:      "no chips played",
			gameweeks: simpleTimeline().Gameweeks,
			want:      15,
		},
		{
			name: "bench boost gameweek excluded",
			gameweeks: []models.GameweekRecord{
				{Gameweek: 1, Points: 60, BenchPoints: 5, Chip: models.ChipNone},
				{Gameweek: 2, Points: 45, BenchPoints: 12, Chip: models.ChipBenchBoost},
				{Gameweek: 3, Points: 80, BenchPoints: 3, Chip: models.ChipNone},
			},
			want: 8,
		},
		{
			name: "other chips still count",
			gameweeks: []models.GameweekRecord{
				{Gameweek: 1, Points: 60, BenchPoints: 7, Chip: models.ChipTripleCaptain},
			},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ComputeInsights(&models.SeasonTimeline{EntryID: 1, Gameweeks: tt.gameweeks})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.BenchPointsWasted != tt.want {
				t.Errorf("bench points wasted = %d, want %d", result.BenchPointsWasted, tt.want)
			}
			if result.BenchPointsWasted < 0 {
				t.Errorf("bench points wasted must never be negative")
			}
		})
	}
}

func TestTransferCosts(t *testing.T) {
	tests := []struct {
		name            string
		transfers       []models.TransferEvent
		wantTotal       int
		wantPerGameweek float64
	}{
		{
			name:            "no transfers reports zero",
			transfers:       nil,
			wantTotal:       0,
			wantPerGameweek: 0,
		},
		{
			name: "free transfers cost nothing",
			transfers: []models.TransferEvent{
				{Gameweek: 2, PointsCost: 0},
				{Gameweek: 3, PointsCost: 0},
			},
			wantTotal:       0,
			wantPerGameweek: 0,
		},
		{
			name: "hits divided by gameweeks with transfers",
			transfers: []models.TransferEvent{
				{Gameweek: 2, PointsCost: 0},
				{Gameweek: 2, PointsCost: 4},
				{Gameweek: 3, PointsCost: 4},
			},
			wantTotal:       8,
			wantPerGameweek: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := simpleTimeline()
			tl.Transfers = tt.transfers
			result, err := ComputeInsights(tl)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.TransferCosts.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", result.TransferCosts.Total, tt.wantTotal)
			}
			if result.TransferCosts.PerGameweek != tt.wantPerGameweek {
				t.Errorf("perGameweek = %v, want %v", result.TransferCosts.PerGameweek, tt.wantPerGameweek)
			}
		})
	}
}

func TestCaptaincyEfficiency(t *testing.T) {
	squad := func(points ...int) []models.PlayerScore {
		ps := make([]models.PlayerScore, len(points))
		for i, p := range points {
			ps[i] = models.PlayerScore{Element: i + 1, Points: p}
		}
		return ps
	}

	tl := &models.SeasonTimeline{
		EntryID: 1,
		Gameweeks: []models.GameweekRecord{
			// Captain matched the best player: ratio 1.
			{Gameweek: 1, Points: 60, CaptainPoints: 12, Squad: squad(12, 8, 3)},
			// Captain scored half the best haul.
			{Gameweek: 2, Points: 45, CaptainPoints: 5, Squad: squad(10, 5, 2)},
			// No squad data: undefined, not zero.
			{Gameweek: 3, Points: 80, CaptainPoints: 9},
			// Captain blanked: degenerate, undefined.
			{Gameweek: 4, Points: 30, CaptainPoints: 0, Squad: squad(6, 0, 1)},
		},
	}

	result, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	perGW := result.Captaincy.PerGameweek
	if len(perGW) != 4 {
		t.Fatalf("expected 4 per-gameweek entries, got %d", len(perGW))
	}

	if perGW[0].Ratio == nil || *perGW[0].Ratio != 1.0 {
		t.Errorf("GW1 ratio = %v, want 1.0", perGW[0].Ratio)
	}
	if perGW[1].Ratio == nil || *perGW[1].Ratio != 0.5 {
		t.Errorf("GW2 ratio = %v, want 0.5", perGW[1].Ratio)
	}
	if perGW[2].Ratio != nil {
		t.Errorf("GW3 ratio = %v, want null without squad data", *perGW[2].Ratio)
	}
	if perGW[3].Ratio != nil {
		t.Errorf("GW4 ratio = %v, want null for blanked captain", *perGW[3].Ratio)
	}

	for _, entry := range perGW {
		if entry.Ratio != nil && (*entry.Ratio <= 0 || *entry.Ratio > 1) {
			t.Errorf("GW%d ratio %v out of (0, 1]", entry.Gameweek, *entry.Ratio)
		}
	}

	if result.Captaincy.Aggregate == nil || *result.Captaincy.Aggregate != 0.75 {
		t.Errorf("aggregate = %v, want 0.75", result.Captaincy.Aggregate)
	}
}

func TestCaptaincyAggregateNullWithoutSquadData(t *testing.T) {
	result, err := ComputeInsights(simpleTimeline())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Captaincy.Aggregate != nil {
		t.Errorf("aggregate = %v, want null when no ratio is defined", *result.Captaincy.Aggregate)
	}
}

func TestChipTimings(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID: 1,
		Gameweeks: []models.GameweekRecord{
			{Gameweek: 1, Points: 50},
			{Gameweek: 2, Points: 40},
			{Gameweek: 3, Points: 60},
			{Gameweek: 4, Points: 45},
			{Gameweek: 5, Points: 55},
			// Rolling mean of GWs 2-5 is 50: 70 beats it.
			{Gameweek: 6, Points: 70, Chip: models.ChipBenchBoost},
			// Rolling mean of GWs 3-6 is 57.5: 30 falls short.
			{Gameweek: 7, Points: 30, Chip: models.ChipTripleCaptain},
		},
	}

	result, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.ChipTimings) != 2 {
		t.Fatalf("expected 2 chip timings, got %d", len(result.ChipTimings))
	}

	boost := result.ChipTimings[0]
	if boost.Chip != models.ChipBenchBoost || boost.Gameweek != 6 {
		t.Fatalf("unexpected first timing: %+v", boost)
	}
	if boost.RollingMean == nil || *boost.RollingMean != 50 {
		t.Errorf("bench boost rolling mean = %v, want 50", boost.RollingMean)
	}
	if boost.Verdict != models.ChipWellTimed {
		t.Errorf("bench boost verdict = %s, want well-timed", boost.Verdict)
	}

	triple := result.ChipTimings[1]
	if triple.RollingMean == nil || *triple.RollingMean != 57.5 {
		t.Errorf("triple captain rolling mean = %v, want 57.5", triple.RollingMean)
	}
	if triple.Verdict != models.ChipPoorlyTimed {
		t.Errorf("triple captain verdict = %s, want poorly-timed", triple.Verdict)
	}
}

func TestChipTimingShortHistory(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID: 1,
		Gameweeks: []models.GameweekRecord{
			{Gameweek: 1, Points: 65, Chip: models.ChipWildcard},
			{Gameweek: 2, Points: 20, Chip: models.ChipFreeHit},
		},
	}

	result, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ChipTimings) != 2 {
		t.Fatalf("expected 2 chip timings, got %d", len(result.ChipTimings))
	}

	wildcard := result.ChipTimings[0]
	if wildcard.RollingMean != nil {
		t.Errorf("wildcard in GW1 should have no rolling mean, got %v", *wildcard.RollingMean)
	}
	if wildcard.Verdict != models.ChipWellTimed {
		t.Errorf("wildcard verdict = %s, want well-timed for a scoring gameweek", wildcard.Verdict)
	}

	freeHit := result.ChipTimings[1]
	if freeHit.RollingMean == nil || *freeHit.RollingMean != 65 {
		t.Errorf("free hit rolling mean = %v, want 65 (single prior gameweek)", freeHit.RollingMean)
	}
	if freeHit.Verdict != models.ChipPoorlyTimed {
		t.Errorf("free hit verdict = %s, want poorly-timed", freeHit.Verdict)
	}
}

func TestNoChipsYieldsNoEntries(t *testing.T) {
	result, err := ComputeInsights(simpleTimeline())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ChipTimings) != 0 {
		t.Errorf("expected no chip timings for a chipless season, got %d", len(result.ChipTimings))
	}
}

func TestRankTrajectory(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID: 1,
		Gameweeks: []models.GameweekRecord{
			{Gameweek: 1, Points: 60, OverallRank: intPtr(200000)},
			{Gameweek: 2, Points: 45}, // unranked
			{Gameweek: 3, Points: 80, OverallRank: intPtr(120000)},
			{Gameweek: 4, Points: 50, OverallRank: intPtr(140000)},
		},
	}

	result, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points := result.RankTrajectory.Points
	if len(points) != 4 {
		t.Fatalf("trajectory length = %d, want every input gameweek retained", len(points))
	}
	for i, gw := range []int{1, 2, 3, 4} {
		if points[i].Gameweek != gw {
			t.Fatalf("trajectory order broken: position %d holds GW%d", i, points[i].Gameweek)
		}
	}

	if points[0].Delta != nil {
		t.Errorf("first recorded rank must have no delta")
	}
	if points[1].Rank != nil || points[1].Delta != nil {
		t.Errorf("unranked gameweek should keep null markers")
	}
	// Delta skips the unranked gameweek: 200000 - 120000.
	if points[2].Delta == nil || *points[2].Delta != 80000 {
		t.Errorf("GW3 delta = %v, want 80000", points[2].Delta)
	}
	if points[3].Delta == nil || *points[3].Delta != -20000 {
		t.Errorf("GW4 delta = %v, want -20000", points[3].Delta)
	}

	if result.RankTrajectory.SeasonDelta == nil || *result.RankTrajectory.SeasonDelta != 60000 {
		t.Errorf("season delta = %v, want 60000", result.RankTrajectory.SeasonDelta)
	}
}

func TestRankTrajectoryAllUnranked(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID:   1,
		Gameweeks: []models.GameweekRecord{{Gameweek: 1, Points: 10}},
	}
	result, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RankTrajectory.SeasonDelta != nil {
		t.Errorf("season delta should be null with no recorded rank")
	}
}

func TestTeamValueGrowth(t *testing.T) {
	result, err := ComputeInsights(simpleTimeline())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TeamValueGrowth == nil || *result.TeamValueGrowth != 8 {
		t.Errorf("team value growth = %v, want 8", result.TeamValueGrowth)
	}

	noValues := &models.SeasonTimeline{
		EntryID:   1,
		Gameweeks: []models.GameweekRecord{{Gameweek: 1, Points: 10}},
	}
	result, err = ComputeInsights(noValues)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TeamValueGrowth != nil {
		t.Errorf("team value growth should be null when no value was recorded")
	}
}

func TestComputeInsightsDeterministic(t *testing.T) {
	tl := simpleTimeline()
	tl.Transfers = []models.TransferEvent{
		{Gameweek: 2, ElementIn: 10, ElementOut: 20, PointsCost: 4},
	}

	first, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeInsights(tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("identical input must yield byte-identical output:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestInsightsResultStableSchema(t *testing.T) {
	result, err := ComputeInsights(simpleTimeline())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"entryId", "gameweeks", "benchPointsWasted", "transferCosts", "captaincy", "chipTimings", "rankTrajectory", "teamValueGrowth"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("metric key %q missing from output schema", key)
		}
	}
	// Insufficient data must be an explicit null, not an omitted key.
	if string(decoded["teamValueGrowth"]) == "" {
		t.Errorf("teamValueGrowth must be present even when undefined")
	}
}
