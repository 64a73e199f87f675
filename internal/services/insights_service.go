package services

import (
	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// EmptyTimelineError indicates the caller violated the engine's precondition
// of providing at least one gameweek.
type EmptyTimelineError struct{}

func (e *EmptyTimelineError) Error() string {
	return "timeline has no gameweeks"
}

// rollingWindow is how many preceding gameweeks feed the chip-timing mean.
const rollingWindow = 4

// ComputeInsights derives the full insights set from a normalized timeline.
// It is a pure function: no I/O, no hidden state, deterministic for a given
// timeline. Data sparsity never fails it; every metric has an explicit null
// representation instead.
func ComputeInsights(tl *models.SeasonTimeline) (*models.InsightsResult, error) {
	if tl == nil || len(tl.Gameweeks) == 0 {
		return nil, &EmptyTimelineError{}
	}

	return &models.InsightsResult{
		EntryID:           tl.EntryID,
		Gameweeks:         len(tl.Gameweeks),
		BenchPointsWasted: benchPointsWasted(tl.Gameweeks),
		TransferCosts:     transferCosts(tl.Transfers),
		Captaincy:         captaincyEfficiency(tl.Gameweeks),
		ChipTimings:       chipTimings(tl.Gameweeks),
		RankTrajectory:    rankTrajectory(tl.Gameweeks),
		TeamValueGrowth:   teamValueGrowth(tl.Gameweeks),
	}, nil
}

// benchPointsWasted sums bench points across gameweeks without an active
// bench boost; boosted bench points were actually scored, not wasted.
func benchPointsWasted(gameweeks []models.GameweekRecord) int {
	wasted := 0
	for _, gw := range gameweeks {
		if gw.Chip == models.ChipBenchBoost {
			continue
		}
		wasted += gw.BenchPoints
	}
	return wasted
}

func transferCosts(transfers []models.TransferEvent) models.TransferCostSummary {
	total := 0
	gameweeksWithTransfer := make(map[int]bool)
	for _, t := range transfers {
		total += t.PointsCost
		gameweeksWithTransfer[t.Gameweek] = true
	}

	perGameweek := 0.0
	if n := len(gameweeksWithTransfer); n > 0 {
		perGameweek = float64(total) / float64(n)
	}
	return models.TransferCostSummary{Total: total, PerGameweek: perGameweek}
}

// captaincyEfficiency compares the captain's doubled points against the best
// doubled haul available in the squad that gameweek. The ratio is undefined
// (null) when squad player points are absent or the gameweek is degenerate
// (nobody, captain included, scored).
func captaincyEfficiency(gameweeks []models.GameweekRecord) models.CaptaincySummary {
	perGW := make([]models.CaptaincyRatio, 0, len(gameweeks))
	sum := 0.0
	defined := 0

	for _, gw := range gameweeks {
		entry := models.CaptaincyRatio{Gameweek: gw.Gameweek}
		if ratio, ok := captaincyRatio(gw); ok {
			r := ratio
			entry.Ratio = &r
			sum += r
			defined++
		}
		perGW = append(perGW, entry)
	}

	summary := models.CaptaincySummary{PerGameweek: perGW}
	if defined > 0 {
		mean := sum / float64(defined)
		summary.Aggregate = &mean
	}
	return summary
}

func captaincyRatio(gw models.GameweekRecord) (float64, bool) {
	if len(gw.Squad) == 0 {
		return 0, false
	}
	best := 0
	for _, p := range gw.Squad {
		if p.Points > best {
			best = p.Points
		}
	}
	// The doubling cancels out, but both sides must be positive for the
	// ratio to land in (0, 1].
	if best <= 0 || gw.CaptainPoints <= 0 {
		return 0, false
	}
	ratio := float64(2*gw.CaptainPoints) / float64(2*best)
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

// chipTimings emits one entry per chip actually played. The gameweek's
// points are judged against the rolling mean of the preceding gameweeks; a
// chip played in the very first recorded gameweek has no baseline and is
// well-timed only if it scored at all.
func chipTimings(gameweeks []models.GameweekRecord) []models.ChipTiming {
	timings := []models.ChipTiming{}
	for i, gw := range gameweeks {
		if gw.Chip == models.ChipNone {
			continue
		}

		timing := models.ChipTiming{
			Chip:     gw.Chip,
			Gameweek: gw.Gameweek,
			Points:   gw.Points,
		}

		start := i - rollingWindow
		if start < 0 {
			start = 0
		}
		if i > start {
			sum := 0
			for _, prior := range gameweeks[start:i] {
				sum += prior.Points
			}
			mean := float64(sum) / float64(i-start)
			timing.RollingMean = &mean
			if float64(gw.Points) > mean {
				timing.Verdict = models.ChipWellTimed
			} else {
				timing.Verdict = models.ChipPoorlyTimed
			}
		} else {
			if gw.Points > 0 {
				timing.Verdict = models.ChipWellTimed
			} else {
				timing.Verdict = models.ChipPoorlyTimed
			}
		}
		timings = append(timings, timing)
	}
	return timings
}

// rankTrajectory keeps every gameweek of the input, null rank markers
// included. Deltas compare against the previous *recorded* rank, so unranked
// gameweeks are skipped for delta purposes without being removed.
func rankTrajectory(gameweeks []models.GameweekRecord) models.RankTrajectory {
	points := make([]models.RankPoint, 0, len(gameweeks))
	var firstRank, lastRank *int
	var prevRank *int

	for _, gw := range gameweeks {
		point := models.RankPoint{Gameweek: gw.Gameweek, Rank: gw.OverallRank}
		if gw.OverallRank != nil {
			rank := *gw.OverallRank
			if prevRank != nil {
				delta := *prevRank - rank
				point.Delta = &delta
			}
			prevRank = &rank
			if firstRank == nil {
				firstRank = &rank
			}
			lastRank = &rank
		}
		points = append(points, point)
	}

	trajectory := models.RankTrajectory{Points: points}
	if firstRank != nil && lastRank != nil {
		seasonDelta := *firstRank - *lastRank
		trajectory.SeasonDelta = &seasonDelta
	}
	return trajectory
}

// teamValueGrowth is last recorded minus first recorded team value, in
// tenths. Null when no gameweek ever recorded a value.
func teamValueGrowth(gameweeks []models.GameweekRecord) *int {
	var first, last *int
	for _, gw := range gameweeks {
		if gw.TeamValue <= 0 {
			continue
		}
		v := gw.TeamValue
		if first == nil {
			first = &v
		}
		last = &v
	}
	if first == nil || last == nil {
		return nil
	}
	growth := *last - *first
	return &growth
}
