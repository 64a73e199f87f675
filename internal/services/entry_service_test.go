package services

import (
	"errors"
	"testing"

	"github.com/yourusername/fpl-insights-backend/internal/models"
)

func TestClipTimeline(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID: 5,
		Gameweeks: []models.GameweekRecord{
			{Gameweek: 1}, {Gameweek: 2}, {Gameweek: 3}, {Gameweek: 4},
		},
		Transfers: []models.TransferEvent{
			{Gameweek: 2}, {Gameweek: 4},
		},
	}

	tests := []struct {
		name          string
		from, to      int
		wantGameweeks []int
		wantTransfers int
	}{
		{name: "no range returns everything", wantGameweeks: []int{1, 2, 3, 4}, wantTransfers: 2},
		{name: "closed range", from: 2, to: 3, wantGameweeks: []int{2, 3}, wantTransfers: 1},
		{name: "open upper bound", from: 3, wantGameweeks: []int{3, 4}, wantTransfers: 1},
		{name: "open lower bound", to: 2, wantGameweeks: []int{1, 2}, wantTransfers: 1},
		{name: "range past the season", from: 10, to: 20, wantGameweeks: []int{}, wantTransfers: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clipped := ClipTimeline(tl, tt.from, tt.to)
			if clipped.EntryID != 5 {
				t.Errorf("entry id lost in clipping")
			}
			if len(clipped.Gameweeks) != len(tt.wantGameweeks) {
				t.Fatalf("got %d gameweeks, want %d", len(clipped.Gameweeks), len(tt.wantGameweeks))
			}
			for i, want := range tt.wantGameweeks {
				if clipped.Gameweeks[i].Gameweek != want {
					t.Errorf("position %d holds GW%d, want GW%d", i, clipped.Gameweeks[i].Gameweek, want)
				}
			}
			if len(clipped.Transfers) != tt.wantTransfers {
				t.Errorf("got %d transfers, want %d", len(clipped.Transfers), tt.wantTransfers)
			}
		})
	}
}

func TestClipTimelineEmptiedRangeFailsDownstream(t *testing.T) {
	tl := &models.SeasonTimeline{
		EntryID:   5,
		Gameweeks: []models.GameweekRecord{{Gameweek: 1, Points: 50}},
	}
	clipped := ClipTimeline(tl, 30, 38)

	var emptyErr *EmptyTimelineError
	if _, err := ComputeInsights(clipped); !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyTimelineError for an emptied range, got %v", err)
	}
}
