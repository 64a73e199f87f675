package services

import (
	"context"

	"github.com/yourusername/fpl-insights-backend/internal/fpl"
	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// EntryService wires the fetch, normalize and compute steps for a single
// manager. The engine itself stays pure; this is the only place the insights
// path touches the network.
type EntryService struct {
	fplClient *fpl.Client
}

func NewEntryService(fc *fpl.Client) *EntryService {
	return &EntryService{fplClient: fc}
}

// Timeline fetches and normalizes a manager's season without squad detail.
func (s *EntryService) Timeline(ctx context.Context, entryID int) (*models.SeasonTimeline, error) {
	raw, err := s.fplClient.EntryData(ctx, entryID, false)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// Insights fetches, normalizes, optionally clips to a gameweek range and
// computes the derived metrics for one manager. withSquad additionally
// resolves per-gameweek squad player points so captaincy efficiency can be
// computed; without it those ratios are null.
func (s *EntryService) Insights(ctx context.Context, entryID, from, to int, withSquad bool) (*models.InsightsResult, error) {
	raw, err := s.fplClient.EntryData(ctx, entryID, withSquad)
	if err != nil {
		return nil, err
	}

	timeline, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	timeline = ClipTimeline(timeline, from, to)

	return ComputeInsights(timeline)
}

// ClipTimeline restricts a timeline to the inclusive gameweek range
// [from, to]. Zero on either side leaves that side open.
func ClipTimeline(tl *models.SeasonTimeline, from, to int) *models.SeasonTimeline {
	if from <= 0 && to <= 0 {
		return tl
	}

	inRange := func(gw int) bool {
		if from > 0 && gw < from {
			return false
		}
		if to > 0 && gw > to {
			return false
		}
		return true
	}

	clipped := &models.SeasonTimeline{EntryID: tl.EntryID}
	for _, gw := range tl.Gameweeks {
		if inRange(gw.Gameweek) {
			clipped.Gameweeks = append(clipped.Gameweeks, gw)
		}
	}
	for _, t := range tl.Transfers {
		if inRange(t.Gameweek) {
			clipped.Transfers = append(clipped.Transfers, t)
		}
	}
	return clipped
}
