package services

import (
	"fmt"
	"sort"

	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// MalformedInputError indicates the raw payload could not be parsed into the
// minimal required shape: gameweek records were present but none carried a
// gameweek number.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed entry data: %s", e.Reason)
}

// Normalize converts the raw upstream records into a SeasonTimeline. It is
// deliberately permissive: individually broken gameweeks are repaired or
// dropped, and only a payload with no parseable gameweek at all fails.
func Normalize(raw *models.EntryRawData) (*models.SeasonTimeline, error) {
	// Last write wins on duplicate gameweek numbers.
	byGameweek := make(map[int]models.GameweekRecord)
	for _, rg := range raw.Gameweeks {
		if rg.Gameweek == nil || *rg.Gameweek < 1 {
			// Missing the gameweek number entirely: drop the record, keep the request.
			continue
		}
		byGameweek[*rg.Gameweek] = normalizeGameweek(rg)
	}

	if len(raw.Gameweeks) > 0 && len(byGameweek) == 0 {
		return nil, &MalformedInputError{Reason: "no gameweek record carries a gameweek number"}
	}

	gameweeks := make([]models.GameweekRecord, 0, len(byGameweek))
	for _, rec := range byGameweek {
		gameweeks = append(gameweeks, rec)
	}
	sort.Slice(gameweeks, func(i, j int) bool {
		return gameweeks[i].Gameweek < gameweeks[j].Gameweek
	})

	transfers := make([]models.TransferEvent, 0, len(raw.Transfers))
	for _, rt := range raw.Transfers {
		if rt.Gameweek < 1 {
			continue
		}
		transfers = append(transfers, models.TransferEvent{
			Gameweek:   rt.Gameweek,
			ElementIn:  rt.ElementIn,
			ElementOut: rt.ElementOut,
			CostDelta:  rt.ElementInCost - rt.ElementOutCost,
			PointsCost: clampNonNegative(rt.PointsCost),
		})
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].Gameweek < transfers[j].Gameweek
	})

	flagTransferCostMismatches(gameweeks, transfers)

	return &models.SeasonTimeline{
		EntryID:   raw.EntryID,
		Gameweeks: gameweeks,
		Transfers: transfers,
	}, nil
}

func normalizeGameweek(rg models.RawGameweek) models.GameweekRecord {
	rec := models.GameweekRecord{
		Gameweek:      *rg.Gameweek,
		Points:        rg.Points,
		TransferCost:  rg.TransferCost,
		OverallRank:   rg.OverallRank,
		TeamValue:     rg.TeamValue,
		Bank:          rg.Bank,
		BenchPoints:   rg.BenchPoints,
		Transfers:     rg.Transfers,
		Captain:       rg.Captain,
		CaptainPoints: rg.CaptainPoints,
		Squad:         rg.Squad,
	}

	chip, known := models.ParseChip(rg.Chip)
	rec.Chip = chip
	if !known {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("unknown chip %q treated as none", rg.Chip))
	}

	if rec.Points < 0 {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("negative points %d clamped to 0", rec.Points))
		rec.Points = 0
	}
	if rec.BenchPoints < 0 {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("negative bench points %d clamped to 0", rec.BenchPoints))
		rec.BenchPoints = 0
	}
	if rec.CaptainPoints < 0 {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("negative captain points %d clamped to 0", rec.CaptainPoints))
		rec.CaptainPoints = 0
	}
	if rec.TransferCost < 0 {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("negative transfer cost %d clamped to 0", rec.TransferCost))
		rec.TransferCost = 0
	}
	if rec.OverallRank != nil && *rec.OverallRank < 1 {
		rec.Anomalies = append(rec.Anomalies, fmt.Sprintf("non-positive rank %d treated as unranked", *rec.OverallRank))
		rec.OverallRank = nil
	}

	return rec
}

// flagTransferCostMismatches cross-checks the per-gameweek reported transfer
// cost against the sum of per-event costs. The per-event costs stay
// authoritative downstream; a disagreement is recorded, not repaired.
func flagTransferCostMismatches(gameweeks []models.GameweekRecord, transfers []models.TransferEvent) {
	eventCost := make(map[int]int)
	for _, t := range transfers {
		eventCost[t.Gameweek] += t.PointsCost
	}
	for i := range gameweeks {
		if sum := eventCost[gameweeks[i].Gameweek]; sum != gameweeks[i].TransferCost {
			gameweeks[i].Anomalies = append(gameweeks[i].Anomalies,
				fmt.Sprintf("transfer cost mismatch: events sum to %d, gameweek reports %d", sum, gameweeks[i].TransferCost))
		}
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
