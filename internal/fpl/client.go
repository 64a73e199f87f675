package fpl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourusername/fpl-insights-backend/internal/models"
)

// EntryNotFoundError indicates the manager id has no data upstream.
type EntryNotFoundError struct {
	EntryID int
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry %d not found", e.EntryID)
}

// LeagueNotFoundError indicates the classic league id has no data upstream.
type LeagueNotFoundError struct {
	LeagueID int
}

func (e *LeagueNotFoundError) Error() string {
	return fmt.Sprintf("league %d not found", e.LeagueID)
}

// UpstreamError indicates the FPL API answered with an unexpected status.
type UpstreamError struct {
	Path       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("FPL API GET %s failed with status %d", e.Path, e.StatusCode)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient builds a client for the public FPL web API. Requests are paced
// with a shared limiter so league-wide fans of per-manager calls stay polite.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		userAgent:  "fpl-insights-backend/1.0",
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		maxRetries: 3,
	}
}

// getJSON fetches baseURL+path and decodes the body into dest, retrying
// transient failures with exponential backoff. A 404 is not retried.
func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 700 * time.Millisecond):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, dest); err != nil {
				return fmt.Errorf("failed to decode FPL response for %s: %w", path, err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return &UpstreamError{Path: path, StatusCode: http.StatusNotFound}
		case resp.StatusCode >= 500:
			lastErr = &UpstreamError{Path: path, StatusCode: resp.StatusCode}
			continue
		default:
			return &UpstreamError{Path: path, StatusCode: resp.StatusCode}
		}
	}
	return fmt.Errorf("FPL API GET %s failed after %d attempts: %w", path, c.maxRetries, lastErr)
}

func isNotFound(err error) bool {
	ue, ok := err.(*UpstreamError)
	return ok && ue.StatusCode == http.StatusNotFound
}

// HealthCheck returns true if the FPL API is reachable.
func (c *Client) HealthCheck(ctx context.Context) bool {
	var resp struct {
		Events []json.RawMessage `json:"events"`
	}
	err := c.getJSON(ctx, "/bootstrap-static/", &resp)
	return err == nil && len(resp.Events) > 0
}

// CurrentEvent resolves the current gameweek number from bootstrap data,
// falling back to the next or last finished event.
func (c *Client) CurrentEvent(ctx context.Context) (int, error) {
	var resp struct {
		Events []struct {
			ID        int  `json:"id"`
			IsCurrent bool `json:"is_current"`
			IsNext    bool `json:"is_next"`
			Finished  bool `json:"finished"`
		} `json:"events"`
	}
	if err := c.getJSON(ctx, "/bootstrap-static/", &resp); err != nil {
		return 0, err
	}

	lastFinished := 0
	next := 0
	for _, e := range resp.Events {
		if e.IsCurrent {
			return e.ID, nil
		}
		if e.IsNext && next == 0 {
			next = e.ID
		}
		if e.Finished {
			lastFinished = e.ID
		}
	}
	if next != 0 {
		return next, nil
	}
	if lastFinished != 0 {
		return lastFinished, nil
	}
	return 0, fmt.Errorf("bootstrap data has no usable event")
}

// BootstrapElements fetches per-player metadata from the bootstrap feed,
// keyed by element id. The expectation and form figures arrive as strings
// and unparseable values default to zero.
func (c *Client) BootstrapElements(ctx context.Context) (map[int]models.ElementInfo, error) {
	var resp struct {
		Elements []struct {
			ID            int    `json:"id"`
			WebName       string `json:"web_name"`
			Team          int    `json:"team"`
			NowCost       int    `json:"now_cost"`
			EPNext        string `json:"ep_next"`
			EPThis        string `json:"ep_this"`
			Form          string `json:"form"`
			PointsPerGame string `json:"points_per_game"`
		} `json:"elements"`
	}
	if err := c.getJSON(ctx, "/bootstrap-static/", &resp); err != nil {
		return nil, err
	}

	elements := make(map[int]models.ElementInfo, len(resp.Elements))
	for _, el := range resp.Elements {
		elements[el.ID] = models.ElementInfo{
			ID:            el.ID,
			WebName:       el.WebName,
			Team:          el.Team,
			NowCost:       el.NowCost,
			EPNext:        parseFloat(el.EPNext),
			EPThis:        parseFloat(el.EPThis),
			Form:          parseFloat(el.Form),
			PointsPerGame: parseFloat(el.PointsPerGame),
		}
	}
	return elements, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Fixtures fetches the scheduled matches for one gameweek.
func (c *Client) Fixtures(ctx context.Context, event int) ([]models.Fixture, error) {
	var resp []struct {
		Event           *int `json:"event"`
		TeamH           int  `json:"team_h"`
		TeamA           int  `json:"team_a"`
		TeamHDifficulty int  `json:"team_h_difficulty"`
		TeamADifficulty int  `json:"team_a_difficulty"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/fixtures/?event=%d", event), &resp); err != nil {
		return nil, err
	}

	fixtures := make([]models.Fixture, 0, len(resp))
	for _, f := range resp {
		if f.Event == nil {
			// Unscheduled fixtures have no event yet.
			continue
		}
		fixtures = append(fixtures, models.Fixture{
			Event:          *f.Event,
			TeamHome:       f.TeamH,
			TeamAway:       f.TeamA,
			HomeDifficulty: f.TeamHDifficulty,
			AwayDifficulty: f.TeamADifficulty,
		})
	}
	return fixtures, nil
}

type historyResponse struct {
	Current []models.RawGameweek `json:"current"`
	Chips   []struct {
		Name  string `json:"name"`
		Event int    `json:"event"`
	} `json:"chips"`
}

// EntryHistory fetches the per-gameweek history for a manager with chip
// plays merged into the matching gameweek records.
func (c *Client) EntryHistory(ctx context.Context, entryID int) ([]models.RawGameweek, error) {
	var resp historyResponse
	err := c.getJSON(ctx, fmt.Sprintf("/entry/%d/history/", entryID), &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, &EntryNotFoundError{EntryID: entryID}
		}
		return nil, err
	}

	chipByEvent := make(map[int]string, len(resp.Chips))
	for _, chip := range resp.Chips {
		chipByEvent[chip.Event] = chip.Name
	}
	for i := range resp.Current {
		if resp.Current[i].Gameweek == nil {
			continue
		}
		if name, ok := chipByEvent[*resp.Current[i].Gameweek]; ok {
			resp.Current[i].Chip = name
		}
	}
	return resp.Current, nil
}

// EntryTransfers fetches a manager's transfer log. Upstream returns the
// newest transfer first; order is preserved here.
func (c *Client) EntryTransfers(ctx context.Context, entryID int) ([]models.RawTransfer, error) {
	var transfers []models.RawTransfer
	err := c.getJSON(ctx, fmt.Sprintf("/entry/%d/transfers/", entryID), &transfers)
	if err != nil {
		if isNotFound(err) {
			return nil, &EntryNotFoundError{EntryID: entryID}
		}
		return nil, err
	}
	return transfers, nil
}

type PicksResponse struct {
	Picks []struct {
		Element    int  `json:"element"`
		Position   int  `json:"position"`
		Multiplier int  `json:"multiplier"`
		IsCaptain  bool `json:"is_captain"`
	} `json:"picks"`
}

// EntryPicks fetches a manager's squad selection for one gameweek.
func (c *Client) EntryPicks(ctx context.Context, entryID, gameweek int) (*PicksResponse, error) {
	var resp PicksResponse
	err := c.getJSON(ctx, fmt.Sprintf("/entry/%d/event/%d/picks/", entryID, gameweek), &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, &EntryNotFoundError{EntryID: entryID}
		}
		return nil, err
	}
	return &resp, nil
}

// EventLive fetches per-player points for one gameweek, keyed by element id.
func (c *Client) EventLive(ctx context.Context, gameweek int) (map[int]int, error) {
	var resp struct {
		Elements []struct {
			ID    int `json:"id"`
			Stats struct {
				TotalPoints int `json:"total_points"`
			} `json:"stats"`
		} `json:"elements"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/event/%d/live/", gameweek), &resp); err != nil {
		return nil, err
	}
	points := make(map[int]int, len(resp.Elements))
	for _, el := range resp.Elements {
		points[el.ID] = el.Stats.TotalPoints
	}
	return points, nil
}

// LeagueStandings fetches the first page of a classic league's standings.
func (c *Client) LeagueStandings(ctx context.Context, leagueID int) ([]models.LeagueManager, error) {
	var resp struct {
		Standings struct {
			Results []struct {
				Entry      int    `json:"entry"`
				PlayerName string `json:"player_name"`
				EntryName  string `json:"entry_name"`
				Rank       int    `json:"rank"`
				Total      int    `json:"total"`
			} `json:"results"`
		} `json:"standings"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("/leagues-classic/%d/standings/", leagueID), &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, &LeagueNotFoundError{LeagueID: leagueID}
		}
		return nil, err
	}

	managers := make([]models.LeagueManager, 0, len(resp.Standings.Results))
	for _, r := range resp.Standings.Results {
		managers = append(managers, models.LeagueManager{
			EntryID:    r.Entry,
			PlayerName: r.PlayerName,
			TeamName:   r.EntryName,
			Rank:       r.Rank,
			Total:      r.Total,
		})
	}
	return managers, nil
}

// EntryData assembles the full raw dataset for one manager: history with
// chips merged, the transfer log with per-event points costs distributed,
// and (optionally) per-gameweek squad player points.
func (c *Client) EntryData(ctx context.Context, entryID int, withSquad bool) (*models.EntryRawData, error) {
	gameweeks, err := c.EntryHistory(ctx, entryID)
	if err != nil {
		return nil, err
	}

	transfers, err := c.EntryTransfers(ctx, entryID)
	if err != nil {
		return nil, err
	}
	distributeTransferCosts(gameweeks, transfers)

	if withSquad {
		if err := c.attachSquads(ctx, entryID, gameweeks); err != nil {
			return nil, err
		}
	}

	return &models.EntryRawData{
		EntryID:   entryID,
		Gameweeks: gameweeks,
		Transfers: transfers,
	}, nil
}

// attachSquads fills Squad, Captain and CaptainPoints on each gameweek from
// the picks and live-points endpoints. A single gameweek failing to resolve
// leaves that record without squad data instead of failing the whole fetch.
func (c *Client) attachSquads(ctx context.Context, entryID int, gameweeks []models.RawGameweek) error {
	for i := range gameweeks {
		if gameweeks[i].Gameweek == nil {
			continue
		}
		gw := *gameweeks[i].Gameweek

		picks, err := c.EntryPicks(ctx, entryID, gw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Warning: no picks for entry %d GW %d: %v", entryID, gw, err)
			continue
		}
		live, err := c.EventLive(ctx, gw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Warning: no live points for GW %d: %v", gw, err)
			continue
		}

		squad := make([]models.PlayerScore, 0, len(picks.Picks))
		for _, p := range picks.Picks {
			squad = append(squad, models.PlayerScore{
				Element:    p.Element,
				Points:     live[p.Element],
				Multiplier: p.Multiplier,
				OnBench:    p.Position > 11,
			})
			if p.IsCaptain {
				gameweeks[i].Captain = p.Element
				gameweeks[i].CaptainPoints = live[p.Element]
			}
		}
		gameweeks[i].Squad = squad
	}
	return nil
}

// distributeTransferCosts spreads each gameweek's charged transfer cost over
// that gameweek's transfer events in units of 4, newest event first. The
// per-gameweek aggregate stays the source of truth; the per-event costs are
// derived so downstream consumers can sum them back.
func distributeTransferCosts(gameweeks []models.RawGameweek, transfers []models.RawTransfer) {
	costByGW := make(map[int]int, len(gameweeks))
	for _, gw := range gameweeks {
		if gw.Gameweek != nil {
			costByGW[*gw.Gameweek] = gw.TransferCost
		}
	}
	// Upstream lists transfers newest first.
	for i := range transfers {
		remaining := costByGW[transfers[i].Gameweek]
		if remaining >= 4 {
			transfers[i].PointsCost = 4
			costByGW[transfers[i].Gameweek] = remaining - 4
		}
	}
}
