package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/fpl-insights-backend/internal/fpl"
	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// maxConcurrentFetches bounds the per-manager fan-out against the FPL API.
const maxConcurrentFetches = 4

// LeagueService computes league-wide aggregations over every manager's
// season history. Each manager's data is independent, so histories are
// fetched in parallel and combined by pure helpers.
type LeagueService struct {
	fplClient *fpl.Client
}

func NewLeagueService(fc *fpl.Client) *LeagueService {
	return &LeagueService{fplClient: fc}
}

// collectTimelines fetches and normalizes every league member's history.
// A single manager failing to resolve is logged and skipped rather than
// failing the league view.
func (s *LeagueService) collectTimelines(ctx context.Context, managers []models.LeagueManager) (map[int]*models.SeasonTimeline, error) {
	var mu sync.Mutex
	timelines := make(map[int]*models.SeasonTimeline, len(managers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, m := range managers {
		manager := m
		g.Go(func() error {
			gameweeks, err := s.fplClient.EntryHistory(gctx, manager.EntryID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Warning: skipping manager %d in league view: %v", manager.EntryID, err)
				return nil
			}
			tl, err := Normalize(&models.EntryRawData{EntryID: manager.EntryID, Gameweeks: gameweeks})
			if err != nil {
				log.Printf("Warning: skipping manager %d in league view: %v", manager.EntryID, err)
				return nil
			}
			mu.Lock()
			timelines[manager.EntryID] = tl
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(timelines) == 0 {
		return nil, fmt.Errorf("no manager history could be fetched for this league")
	}
	return timelines, nil
}

func (s *LeagueService) standingsAndTimelines(ctx context.Context, leagueID int) ([]models.LeagueManager, map[int]*models.SeasonTimeline, error) {
	managers, err := s.fplClient.LeagueStandings(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}
	if len(managers) == 0 {
		return nil, nil, fmt.Errorf("league %d has no standings yet", leagueID)
	}
	timelines, err := s.collectTimelines(ctx, managers)
	if err != nil {
		return nil, nil, err
	}
	return managers, timelines, nil
}

// Standings returns the first page of a classic league's table.
func (s *LeagueService) Standings(ctx context.Context, leagueID int) ([]models.LeagueManager, error) {
	managers, err := s.fplClient.LeagueStandings(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(managers) == 0 {
		return nil, fmt.Errorf("league %d has no standings yet", leagueID)
	}
	return managers, nil
}

// TopBottom reports the best and worst scoring managers of every gameweek.
func (s *LeagueService) TopBottom(ctx context.Context, leagueID int) ([]models.GameweekExtremes, error) {
	_, timelines, err := s.standingsAndTimelines(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return ComputeExtremes(timelines), nil
}

// Streaks reports which managers topped (and bottomed) the league per
// gameweek, and their longest consecutive runs.
func (s *LeagueService) Streaks(ctx context.Context, leagueID int) (*models.LeagueStreakReport, error) {
	managers, timelines, err := s.standingsAndTimelines(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	extremes := ComputeExtremes(timelines)
	report := ComputeStreaks(extremes, managerNames(managers))
	report.LeagueID = leagueID
	return report, nil
}

// BenchPoints ranks the league's managers by total points left on the bench.
func (s *LeagueService) BenchPoints(ctx context.Context, leagueID int) ([]models.ManagerBenchTotal, error) {
	managers, timelines, err := s.standingsAndTimelines(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return ComputeBenchTotals(timelines, managerNames(managers)), nil
}

// SquadValues ranks the league's managers by average squad value.
func (s *LeagueService) SquadValues(ctx context.Context, leagueID int) ([]models.ManagerSquadValue, error) {
	managers, timelines, err := s.standingsAndTimelines(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return ComputeSquadValues(timelines, managerNames(managers)), nil
}

// Transfers ranks the league's managers by transfer volume.
func (s *LeagueService) Transfers(ctx context.Context, leagueID int) ([]models.ManagerTransferTotal, error) {
	managers, timelines, err := s.standingsAndTimelines(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return ComputeTransferTotals(timelines, managerNames(managers)), nil
}

func managerNames(managers []models.LeagueManager) map[int]string {
	names := make(map[int]string, len(managers))
	for _, m := range managers {
		names[m.EntryID] = m.PlayerName
	}
	return names
}

func managerName(names map[int]string, id int) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("Manager %d", id)
}

// ComputeExtremes finds the best and worst score of every gameweek across
// the league. Ties share the slot. Output is ordered by gameweek.
func ComputeExtremes(timelines map[int]*models.SeasonTimeline) []models.GameweekExtremes {
	type score struct {
		managerID int
		points    int
	}
	byGameweek := make(map[int][]score)
	for id, tl := range timelines {
		for _, gw := range tl.Gameweeks {
			byGameweek[gw.Gameweek] = append(byGameweek[gw.Gameweek], score{managerID: id, points: gw.Points})
		}
	}

	extremes := make([]models.GameweekExtremes, 0, len(byGameweek))
	for gw, scores := range byGameweek {
		max, min := scores[0].points, scores[0].points
		for _, sc := range scores[1:] {
			if sc.points > max {
				max = sc.points
			}
			if sc.points < min {
				min = sc.points
			}
		}
		e := models.GameweekExtremes{Gameweek: gw, MaxPoints: max, MinPoints: min}
		for _, sc := range scores {
			if sc.points == max {
				e.TopManagerIDs = append(e.TopManagerIDs, sc.managerID)
			}
			if sc.points == min {
				e.BottomManagerIDs = append(e.BottomManagerIDs, sc.managerID)
			}
		}
		sort.Ints(e.TopManagerIDs)
		sort.Ints(e.BottomManagerIDs)
		extremes = append(extremes, e)
	}
	sort.Slice(extremes, func(i, j int) bool { return extremes[i].Gameweek < extremes[j].Gameweek })
	return extremes
}

// ComputeStreaks turns per-gameweek extremes into total weeks and best
// consecutive runs at the top and bottom of the league.
func ComputeStreaks(extremes []models.GameweekExtremes, names map[int]string) *models.LeagueStreakReport {
	top := tallyStreaks(extremes, func(e models.GameweekExtremes) []int { return e.TopManagerIDs })
	bottom := tallyStreaks(extremes, func(e models.GameweekExtremes) []int { return e.BottomManagerIDs })
	return &models.LeagueStreakReport{
		Top:    streakList(top, names),
		Bottom: streakList(bottom, names),
	}
}

type streakTally struct {
	weeks   int
	best    int
	current int
}

func tallyStreaks(extremes []models.GameweekExtremes, pick func(models.GameweekExtremes) []int) map[int]*streakTally {
	tallies := make(map[int]*streakTally)
	prev := make(map[int]bool)

	for _, e := range extremes {
		now := make(map[int]bool)
		for _, id := range pick(e) {
			now[id] = true
			t := tallies[id]
			if t == nil {
				t = &streakTally{}
				tallies[id] = t
			}
			t.weeks++
			if prev[id] {
				t.current++
			} else {
				t.current = 1
			}
			if t.current > t.best {
				t.best = t.current
			}
		}
		for id, t := range tallies {
			if !now[id] {
				t.current = 0
			}
		}
		prev = now
	}
	return tallies
}

func streakList(tallies map[int]*streakTally, names map[int]string) []models.ManagerStreak {
	out := make([]models.ManagerStreak, 0, len(tallies))
	for id, t := range tallies {
		out = append(out, models.ManagerStreak{
			ManagerID:   id,
			ManagerName: managerName(names, id),
			Weeks:       t.weeks,
			BestStreak:  t.best,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weeks != out[j].Weeks {
			return out[i].Weeks > out[j].Weeks
		}
		return out[i].ManagerID < out[j].ManagerID
	})
	return out
}

// ComputeBenchTotals sums bench points per manager, highest first.
func ComputeBenchTotals(timelines map[int]*models.SeasonTimeline, names map[int]string) []models.ManagerBenchTotal {
	out := make([]models.ManagerBenchTotal, 0, len(timelines))
	for id, tl := range timelines {
		total := 0
		for _, gw := range tl.Gameweeks {
			total += gw.BenchPoints
		}
		out = append(out, models.ManagerBenchTotal{
			ManagerID:   id,
			ManagerName: managerName(names, id),
			BenchPoints: total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BenchPoints != out[j].BenchPoints {
			return out[i].BenchPoints > out[j].BenchPoints
		}
		return out[i].ManagerID < out[j].ManagerID
	})
	return out
}

// ComputeSquadValues reports each manager's average and peak squad value
// (team value plus bank), converted from tenths to millions.
func ComputeSquadValues(timelines map[int]*models.SeasonTimeline, names map[int]string) []models.ManagerSquadValue {
	out := make([]models.ManagerSquadValue, 0, len(timelines))
	for id, tl := range timelines {
		sum, peak, n := 0, 0, 0
		for _, gw := range tl.Gameweeks {
			total := gw.TeamValue + gw.Bank
			if total <= 0 {
				continue
			}
			sum += total
			n++
			if total > peak {
				peak = total
			}
		}
		sv := models.ManagerSquadValue{ManagerID: id, ManagerName: managerName(names, id)}
		if n > 0 {
			sv.Average = float64(sum) / float64(n) / 10.0
			sv.Peak = float64(peak) / 10.0
		}
		out = append(out, sv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].ManagerID < out[j].ManagerID
	})
	return out
}

// ComputeTransferTotals sums transfer counts per manager, highest first.
func ComputeTransferTotals(timelines map[int]*models.SeasonTimeline, names map[int]string) []models.ManagerTransferTotal {
	out := make([]models.ManagerTransferTotal, 0, len(timelines))
	for id, tl := range timelines {
		total := 0
		for _, gw := range tl.Gameweeks {
			total += gw.Transfers
		}
		out = append(out, models.ManagerTransferTotal{
			ManagerID:   id,
			ManagerName: managerName(names, id),
			Transfers:   total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Transfers != out[j].Transfers {
			return out[i].Transfers > out[j].Transfers
		}
		return out[i].ManagerID < out[j].ManagerID
	})
	return out
}
