package services

import (
	"math"
	"strings"
	"testing"

	"github.com/yourusername/fpl-insights-backend/internal/models"
)

func approx(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func metricElements() map[int]models.ElementInfo {
	return map[int]models.ElementInfo{
		1: {ID: 1, WebName: "Salah", Team: 10, NowCost: 130, EPNext: 6.5, EPThis: 2.0, Form: 3.5, PointsPerGame: 5.0},
		2: {ID: 2, WebName: "Cheap", Team: 20, NowCost: 40, EPNext: 2.0, EPThis: 3.0, Form: 0.5, PointsPerGame: 1.0},
		3: {ID: 3, WebName: "Dud", Team: 30, NowCost: 50, EPNext: 1.0, EPThis: 2.5, Form: 2.0, PointsPerGame: 3.0},
	}
}

func TestComputeValueEfficiency(t *testing.T) {
	report := ComputeValueEfficiency(42, 7, []int{3, 1, 2, 99}, metricElements())

	if report.EntryID != 42 || report.Gameweek != 7 {
		t.Fatalf("report identity wrong: %+v", report)
	}
	// Element 99 has no bootstrap row and is skipped.
	if len(report.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(report.Players))
	}

	// Salah and Cheap tie at 0.5 each; Dud trails at 0.2. Ties break on
	// element id.
	wantOrder := []int{1, 2, 3}
	for i, el := range wantOrder {
		if report.Players[i].Element != el {
			t.Errorf("position %d holds element %d, want %d", i, report.Players[i].Element, el)
		}
	}
	approx(t, report.Players[0].Efficiency, 0.5, "Salah efficiency")
	approx(t, report.Players[2].Efficiency, 0.2, "Dud efficiency")
	approx(t, report.TeamAverage, 0.4, "team average")

	// Only Dud falls below 80% of the squad average.
	if len(report.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %v", report.Recommendations)
	}
	if !strings.Contains(report.Recommendations[0], "Dud") {
		t.Errorf("recommendation names the wrong player: %s", report.Recommendations[0])
	}
}

func TestComputeValueEfficiencyZeroPrice(t *testing.T) {
	elements := map[int]models.ElementInfo{
		1: {ID: 1, WebName: "Free", NowCost: 0, EPNext: 3.0},
	}
	report := ComputeValueEfficiency(42, 7, []int{1}, elements)
	approx(t, report.Players[0].Efficiency, 0, "zero-price efficiency")
}

func TestComputePerformance(t *testing.T) {
	report := ComputePerformance(42, 7, []int{1, 2, 3}, metricElements())

	if len(report.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(report.Players))
	}

	wantStatus := []models.PerformanceStatus{
		models.PerformanceOver,   // Salah: 5.0 - 2.0 = +3.0
		models.PerformanceUnder,  // Cheap: 1.0 - 3.0 = -2.0
		models.PerformanceNormal, // Dud: 3.0 - 2.5 = +0.5
	}
	for i, want := range wantStatus {
		if report.Players[i].Status != want {
			t.Errorf("player %d status = %s, want %s", report.Players[i].Element, report.Players[i].Status, want)
		}
	}
	approx(t, report.Players[0].Delta, 3.0, "Salah delta")

	if report.OverPerformers != 1 || report.UnderPerformers != 1 {
		t.Errorf("summary counts = over %d under %d, want 1 and 1", report.OverPerformers, report.UnderPerformers)
	}
}

func metricFixtures() []models.Fixture {
	return []models.Fixture{
		{Event: 2, TeamHome: 10, TeamAway: 20, HomeDifficulty: 2, AwayDifficulty: 4},
		{Event: 3, TeamHome: 20, TeamAway: 10, HomeDifficulty: 5, AwayDifficulty: 2},
	}
}

func TestComputeFixtureRun(t *testing.T) {
	report := ComputeFixtureRun(42, 2, []int{1, 2, 3}, metricElements(), metricFixtures())

	if len(report.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(report.Players))
	}

	easy := report.Players[0]
	if easy.AverageDifficulty == nil || *easy.AverageDifficulty != 2.0 {
		t.Errorf("team 10 average difficulty = %v, want 2.0", easy.AverageDifficulty)
	}
	if easy.Status != models.FixtureFavourable {
		t.Errorf("team 10 status = %s, want favourable", easy.Status)
	}

	hard := report.Players[1]
	if hard.AverageDifficulty == nil || *hard.AverageDifficulty != 4.5 {
		t.Errorf("team 20 average difficulty = %v, want 4.5", hard.AverageDifficulty)
	}
	if hard.Status != models.FixtureTough {
		t.Errorf("team 20 status = %s, want tough", hard.Status)
	}

	// Team 30 has no scheduled fixture: null average, neutral status.
	blank := report.Players[2]
	if blank.AverageDifficulty != nil {
		t.Errorf("team 30 average difficulty = %v, want null", *blank.AverageDifficulty)
	}
	if blank.Status != models.FixtureNeutral {
		t.Errorf("team 30 status = %s, want neutral", blank.Status)
	}
	if len(blank.NextDifficulties) != 0 {
		t.Errorf("team 30 difficulties = %v, want empty", blank.NextDifficulties)
	}

	if report.FavourableCount != 1 || report.ToughCount != 1 {
		t.Errorf("counts = favourable %d tough %d, want 1 and 1", report.FavourableCount, report.ToughCount)
	}
	if report.TeamAverage == nil {
		t.Fatal("team average should be defined")
	}
	approx(t, *report.TeamAverage, 3.25, "team average difficulty")
}

func TestComputeFixtureRunHorizonCap(t *testing.T) {
	report := ComputeFixtureRun(42, 1, []int{1}, metricElements(), metricFixtures())
	// Horizon 1 keeps only the first fixture per team.
	if got := report.Players[0].NextDifficulties; len(got) != 1 || got[0] != 2 {
		t.Errorf("difficulties = %v, want [2]", got)
	}
}

func TestComputeExpectedPoints(t *testing.T) {
	report := ComputeExpectedPoints(42, 2, []int{1, 2, 3}, metricElements(), metricFixtures())

	if len(report.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(report.Players))
	}

	// Team 10 opens at home with an easy run, Salah is in form: every
	// multiplier lifts the basic expectation. maxFDR across the squad is
	// team 20's 4.5.
	wantSalah := 6.5 * 1.10 * 1.05 * ((4.5 + 1 - 2.0) / 4.5)
	approx(t, report.Players[0].Basic, 6.5, "Salah basic")
	approx(t, report.Players[0].Adjusted, wantSalah, "Salah adjusted")

	// Team 20 opens away with a tough run, Cheap is cold: every multiplier
	// cuts it.
	wantCheap := 2.0 * 0.90 * 0.95 * ((4.5 + 1 - 4.5) / 4.5)
	approx(t, report.Players[1].Adjusted, wantCheap, "Cheap adjusted")

	// Team 30 has no fixtures and middling form: projection stays basic.
	approx(t, report.Players[2].Adjusted, 2.0, "Dud adjusted")

	approx(t, report.TeamExpectedPoints, wantSalah+wantCheap+2.0, "team total")
}
