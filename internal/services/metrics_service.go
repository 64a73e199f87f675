package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/yourusername/fpl-insights-backend/internal/fpl"
	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// Performance deltas beyond this many points per game count as over or
// under performing.
const performanceThreshold = 1.5

// Fixture difficulty cutoffs for classifying an upcoming run.
const (
	favourableFDR = 2.5
	toughFDR      = 4.0
)

// Venue and form multipliers for the adjusted points projection.
const (
	homeMultiplier     = 1.10
	awayMultiplier     = 0.90
	hotFormMultiplier  = 1.05
	coldFormMultiplier = 0.95
	hotFormFloor       = 3.0
	coldFormCeiling    = 1.0
)

// MetricsService computes forward and backward looking squad metrics for a
// single manager. The squad is always the current gameweek's picks; the
// per-player expectation figures come from the bootstrap feed.
type MetricsService struct {
	fplClient *fpl.Client
}

func NewMetricsService(fc *fpl.Client) *MetricsService {
	return &MetricsService{fplClient: fc}
}

// squad resolves the current gameweek, the manager's picks for it and the
// bootstrap element table.
func (s *MetricsService) squad(ctx context.Context, entryID int) (int, []int, map[int]models.ElementInfo, error) {
	gameweek, err := s.fplClient.CurrentEvent(ctx)
	if err != nil {
		return 0, nil, nil, err
	}

	picks, err := s.fplClient.EntryPicks(ctx, entryID, gameweek)
	if err != nil {
		return 0, nil, nil, err
	}
	squad := make([]int, 0, len(picks.Picks))
	for _, p := range picks.Picks {
		squad = append(squad, p.Element)
	}

	elements, err := s.fplClient.BootstrapElements(ctx)
	if err != nil {
		return 0, nil, nil, err
	}
	return gameweek, squad, elements, nil
}

// upcomingFixtures fetches the fixtures for the horizon gameweeks after the
// current one.
func (s *MetricsService) upcomingFixtures(ctx context.Context, gameweek, horizon int) ([]models.Fixture, error) {
	var fixtures []models.Fixture
	for event := gameweek + 1; event <= gameweek+horizon && event <= 38; event++ {
		fx, err := s.fplClient.Fixtures(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("fetching fixtures for GW %d: %w", event, err)
		}
		fixtures = append(fixtures, fx...)
	}
	return fixtures, nil
}

// ValueEfficiency ranks the current squad by expected points per million.
func (s *MetricsService) ValueEfficiency(ctx context.Context, entryID int) (*models.ValueEfficiencyReport, error) {
	gameweek, squad, elements, err := s.squad(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return ComputeValueEfficiency(entryID, gameweek, squad, elements), nil
}

// Performance compares each squad member's points per game against the
// upstream expectation for this gameweek.
func (s *MetricsService) Performance(ctx context.Context, entryID int) (*models.PerformanceReport, error) {
	gameweek, squad, elements, err := s.squad(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return ComputePerformance(entryID, gameweek, squad, elements), nil
}

// FixtureRun summarizes the squad's fixture difficulty over the next horizon
// gameweeks.
func (s *MetricsService) FixtureRun(ctx context.Context, entryID, horizon int) (*models.FixtureRunReport, error) {
	gameweek, squad, elements, err := s.squad(ctx, entryID)
	if err != nil {
		return nil, err
	}
	fixtures, err := s.upcomingFixtures(ctx, gameweek, horizon)
	if err != nil {
		return nil, err
	}
	return ComputeFixtureRun(entryID, horizon, squad, elements, fixtures), nil
}

// ExpectedPoints projects the squad's points over the next horizon
// gameweeks, adjusting the upstream expectation for form, venue and fixture
// difficulty.
func (s *MetricsService) ExpectedPoints(ctx context.Context, entryID, horizon int) (*models.ExpectedPointsReport, error) {
	gameweek, squad, elements, err := s.squad(ctx, entryID)
	if err != nil {
		return nil, err
	}
	fixtures, err := s.upcomingFixtures(ctx, gameweek, horizon)
	if err != nil {
		return nil, err
	}
	return ComputeExpectedPoints(entryID, horizon, squad, elements, fixtures), nil
}

// ComputeValueEfficiency is the pure half of ValueEfficiency: expected
// points per million for each squad member, ranked best first, with
// transfer-out suggestions for anyone well below the squad average.
func ComputeValueEfficiency(entryID, gameweek int, squad []int, elements map[int]models.ElementInfo) *models.ValueEfficiencyReport {
	players := make([]models.PlayerValueEfficiency, 0, len(squad))
	sum := 0.0
	for _, el := range squad {
		info, ok := elements[el]
		if !ok {
			continue
		}
		price := float64(info.NowCost) / 10.0
		eff := 0.0
		if price > 0 {
			eff = info.EPNext / price
		}
		players = append(players, models.PlayerValueEfficiency{
			Element:        el,
			PlayerName:     info.WebName,
			Price:          price,
			ExpectedPoints: info.EPNext,
			Efficiency:     eff,
		})
		sum += eff
	}

	avg := 0.0
	if len(players) > 0 {
		avg = sum / float64(len(players))
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Efficiency != players[j].Efficiency {
			return players[i].Efficiency > players[j].Efficiency
		}
		return players[i].Element < players[j].Element
	})

	recommendations := []string{}
	threshold := avg * 0.8
	for _, p := range players {
		if p.Efficiency < threshold {
			recommendations = append(recommendations,
				fmt.Sprintf("Consider transferring out %s (value efficiency %.2f).", p.PlayerName, p.Efficiency))
		}
	}

	return &models.ValueEfficiencyReport{
		EntryID:         entryID,
		Gameweek:        gameweek,
		TeamAverage:     avg,
		Players:         players,
		Recommendations: recommendations,
	}
}

// ComputePerformance is the pure half of Performance.
func ComputePerformance(entryID, gameweek int, squad []int, elements map[int]models.ElementInfo) *models.PerformanceReport {
	players := make([]models.PlayerPerformance, 0, len(squad))
	under, over := 0, 0
	for _, el := range squad {
		info, ok := elements[el]
		if !ok {
			continue
		}
		delta := info.PointsPerGame - info.EPThis
		status := models.PerformanceNormal
		switch {
		case delta < -performanceThreshold:
			status = models.PerformanceUnder
			under++
		case delta > performanceThreshold:
			status = models.PerformanceOver
			over++
		}
		players = append(players, models.PlayerPerformance{
			Element:       el,
			PlayerName:    info.WebName,
			PointsPerGame: info.PointsPerGame,
			Expected:      info.EPThis,
			Delta:         delta,
			Status:        status,
		})
	}

	return &models.PerformanceReport{
		EntryID:         entryID,
		Gameweek:        gameweek,
		Players:         players,
		UnderPerformers: under,
		OverPerformers:  over,
	}
}

// teamDifficulties maps each team to the difficulty ratings it faces in the
// given fixtures, in schedule order, capped at horizon entries.
func teamDifficulties(fixtures []models.Fixture, horizon int) map[int][]int {
	sorted := make([]models.Fixture, len(fixtures))
	copy(sorted, fixtures)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Event < sorted[j].Event })

	byTeam := make(map[int][]int)
	for _, f := range sorted {
		if len(byTeam[f.TeamHome]) < horizon {
			byTeam[f.TeamHome] = append(byTeam[f.TeamHome], f.HomeDifficulty)
		}
		if len(byTeam[f.TeamAway]) < horizon {
			byTeam[f.TeamAway] = append(byTeam[f.TeamAway], f.AwayDifficulty)
		}
	}
	return byTeam
}

func meanInt(vals []int) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	mean := float64(sum) / float64(len(vals))
	return &mean
}

// ComputeFixtureRun is the pure half of FixtureRun.
func ComputeFixtureRun(entryID, horizon int, squad []int, elements map[int]models.ElementInfo, fixtures []models.Fixture) *models.FixtureRunReport {
	byTeam := teamDifficulties(fixtures, horizon)

	players := make([]models.PlayerFixtureOutlook, 0, len(squad))
	favourable, tough := 0, 0
	teamSum, teamN := 0.0, 0
	for _, el := range squad {
		info, ok := elements[el]
		if !ok {
			continue
		}
		difficulties := byTeam[info.Team]
		avg := meanInt(difficulties)

		status := models.FixtureNeutral
		if avg != nil {
			switch {
			case *avg <= favourableFDR:
				status = models.FixtureFavourable
				favourable++
			case *avg >= toughFDR:
				status = models.FixtureTough
				tough++
			}
			teamSum += *avg
			teamN++
		}
		if difficulties == nil {
			difficulties = []int{}
		}
		players = append(players, models.PlayerFixtureOutlook{
			Element:           el,
			PlayerName:        info.WebName,
			Price:             float64(info.NowCost) / 10.0,
			NextDifficulties:  difficulties,
			AverageDifficulty: avg,
			Status:            status,
		})
	}

	report := &models.FixtureRunReport{
		EntryID:         entryID,
		Horizon:         horizon,
		Players:         players,
		FavourableCount: favourable,
		ToughCount:      tough,
	}
	if teamN > 0 {
		teamAvg := teamSum / float64(teamN)
		report.TeamAverage = &teamAvg
	}
	return report
}

// ComputeExpectedPoints is the pure half of ExpectedPoints. The basic figure
// is the upstream per-player expectation; the adjusted one multiplies in the
// next fixture's venue, the player's form and the squad-relative fixture
// difficulty.
func ComputeExpectedPoints(entryID, horizon int, squad []int, elements map[int]models.ElementInfo, fixtures []models.Fixture) *models.ExpectedPointsReport {
	byTeam := teamDifficulties(fixtures, horizon)

	nextHome := make(map[int]bool)
	seen := make(map[int]bool)
	sorted := make([]models.Fixture, len(fixtures))
	copy(sorted, fixtures)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Event < sorted[j].Event })
	for _, f := range sorted {
		if !seen[f.TeamHome] {
			seen[f.TeamHome] = true
			nextHome[f.TeamHome] = true
		}
		if !seen[f.TeamAway] {
			seen[f.TeamAway] = true
			nextHome[f.TeamAway] = false
		}
	}

	// The difficulty multiplier is relative to the hardest average run in
	// the squad.
	maxFDR := 0.0
	for _, el := range squad {
		info, ok := elements[el]
		if !ok {
			continue
		}
		if avg := meanInt(byTeam[info.Team]); avg != nil && *avg > maxFDR {
			maxFDR = *avg
		}
	}
	if maxFDR == 0 {
		maxFDR = 5.0
	}

	players := make([]models.PlayerExpectedPoints, 0, len(squad))
	total := 0.0
	for _, el := range squad {
		info, ok := elements[el]
		if !ok {
			continue
		}

		venue := 1.0
		if home, played := nextHome[info.Team]; played {
			venue = awayMultiplier
			if home {
				venue = homeMultiplier
			}
		}

		form := 1.0
		switch {
		case info.Form >= hotFormFloor:
			form = hotFormMultiplier
		case info.Form < coldFormCeiling:
			form = coldFormMultiplier
		}

		difficulty := 1.0
		if avg := meanInt(byTeam[info.Team]); avg != nil {
			difficulty = (maxFDR + 1 - *avg) / maxFDR
		}

		adjusted := info.EPNext * venue * form * difficulty
		players = append(players, models.PlayerExpectedPoints{
			Element:    el,
			PlayerName: info.WebName,
			Basic:      info.EPNext,
			Adjusted:   adjusted,
		})
		total += adjusted
	}

	return &models.ExpectedPointsReport{
		EntryID:            entryID,
		Horizon:            horizon,
		TeamExpectedPoints: total,
		Players:            players,
	}
}
