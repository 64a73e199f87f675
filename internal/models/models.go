package models

import (
	"encoding/json"
	"time"
)

// Chip is the closed set of one-time-use special rules a manager may play.
// Upstream aliases ("bboost", "3xc", "freehit") are mapped by ParseChip.
type Chip string

const (
	ChipNone          Chip = "none"
	ChipWildcard      Chip = "wildcard"
	ChipFreeHit       Chip = "free-hit"
	ChipBenchBoost    Chip = "bench-boost"
	ChipTripleCaptain Chip = "triple-captain"
)

// ParseChip maps an upstream chip name to the closed Chip set.
// The second return is false for names outside the known set.
func ParseChip(name string) (Chip, bool) {
	switch name {
	case "", "none":
		return ChipNone, true
	case "wildcard":
		return ChipWildcard, true
	case "freehit", "free-hit":
		return ChipFreeHit, true
	case "bboost", "bench-boost":
		return ChipBenchBoost, true
	case "3xc", "triple-captain":
		return ChipTripleCaptain, true
	default:
		return ChipNone, false
	}
}

// PlayerScore is one squad member's points contribution in a gameweek.
type PlayerScore struct {
	Element    int  `json:"element"`
	Points     int  `json:"points"`
	Multiplier int  `json:"multiplier"`
	OnBench    bool `json:"onBench"`
}

// GameweekRecord is one manager-gameweek observation after normalization.
// Rank is nil when the manager was not yet ranked. Squad is nil when
// player-level data was not fetched for that gameweek.
type GameweekRecord struct {
	Gameweek      int           `json:"gameweek"`
	Points        int           `json:"points"`
	TransferCost  int           `json:"transferCost"`
	OverallRank   *int          `json:"overallRank"`
	TeamValue     int           `json:"teamValue"` // tenths of a million
	Bank          int           `json:"bank"`      // tenths of a million
	BenchPoints   int           `json:"benchPoints"`
	Transfers     int           `json:"transfers"`
	Captain       int           `json:"captain"`
	CaptainPoints int           `json:"captainPoints"`
	Chip          Chip          `json:"chip"`
	Squad         []PlayerScore `json:"squad,omitempty"`
	Anomalies     []string      `json:"anomalies,omitempty"`
}

// TransferEvent is one transfer action.
type TransferEvent struct {
	Gameweek   int `json:"gameweek"`
	ElementIn  int `json:"elementIn"`
	ElementOut int `json:"elementOut"`
	CostDelta  int `json:"costDelta"`  // purchase price minus sale price, tenths
	PointsCost int `json:"pointsCost"` // 0 or 4 per charged transfer
}

// SeasonTimeline is the normalized, immutable input to the insights engine.
// Gameweeks are sorted ascending and unique; Transfers are sorted by gameweek.
type SeasonTimeline struct {
	EntryID   int              `json:"entryId"`
	Gameweeks []GameweekRecord `json:"gameweeks"`
	Transfers []TransferEvent  `json:"transfers"`
}

// RawGameweek is one per-gameweek record as assembled from the upstream
// history and picks payloads. Gameweek is a pointer so the normalizer can
// detect records missing the number entirely.
type RawGameweek struct {
	Gameweek      *int          `json:"event"`
	Points        int           `json:"points"`
	TransferCost  int           `json:"event_transfers_cost"`
	OverallRank   *int          `json:"overall_rank"`
	TeamValue     int           `json:"value"`
	Bank          int           `json:"bank"`
	BenchPoints   int           `json:"points_on_bench"`
	Transfers     int           `json:"event_transfers"`
	Captain       int           `json:"captain"`
	CaptainPoints int           `json:"captain_points"`
	Chip          string        `json:"chip"`
	Squad         []PlayerScore `json:"squad,omitempty"`
}

// RawTransfer is one transfer as returned by /entry/{id}/transfers/, with the
// per-event points cost distributed by the fetch layer.
type RawTransfer struct {
	Gameweek       int `json:"event"`
	ElementIn      int `json:"element_in"`
	ElementInCost  int `json:"element_in_cost"`
	ElementOut     int `json:"element_out"`
	ElementOutCost int `json:"element_out_cost"`
	PointsCost     int `json:"points_cost"`
}

// EntryRawData bundles everything fetched for one entry before normalization.
type EntryRawData struct {
	EntryID   int
	Gameweeks []RawGameweek
	Transfers []RawTransfer
}

// TransferCostSummary reports points spent on transfers.
type TransferCostSummary struct {
	Total       int     `json:"total"`
	PerGameweek float64 `json:"perGameweek"` // total / gameweeks with >=1 transfer
}

// CaptaincyRatio is one gameweek's captaincy efficiency. Ratio is nil when
// squad player points were not available or the gameweek is degenerate.
type CaptaincyRatio struct {
	Gameweek int      `json:"gameweek"`
	Ratio    *float64 `json:"ratio"`
}

// CaptaincySummary aggregates per-gameweek captaincy efficiency.
type CaptaincySummary struct {
	PerGameweek []CaptaincyRatio `json:"perGameweek"`
	Aggregate   *float64         `json:"aggregate"`
}

type ChipVerdict string

const (
	ChipWellTimed   ChipVerdict = "well-timed"
	ChipPoorlyTimed ChipVerdict = "poorly-timed"
)

// ChipTiming is the points context around one chip play. RollingMean is the
// mean points over the preceding up-to-4 gameweeks; nil when the chip was
// played with no prior gameweeks on record.
type ChipTiming struct {
	Chip        Chip        `json:"chip"`
	Gameweek    int         `json:"gameweek"`
	Points      int         `json:"points"`
	RollingMean *float64    `json:"rollingMean"`
	Verdict     ChipVerdict `json:"verdict"`
}

// RankPoint is one step of the rank trajectory. Rank is nil for gameweeks
// without a recorded rank; Delta is previous recorded rank minus this rank
// (positive = improved) and nil where either side is missing.
type RankPoint struct {
	Gameweek int  `json:"gameweek"`
	Rank     *int `json:"rank"`
	Delta    *int `json:"delta"`
}

// RankTrajectory preserves the gameweek ordering of the timeline.
type RankTrajectory struct {
	Points      []RankPoint `json:"points"`
	SeasonDelta *int        `json:"seasonDelta"` // first recorded rank - last recorded rank
}

// InsightsResult is the engine's sole output. Every metric key is always
// present; insufficient data is an explicit null, never a missing key.
type InsightsResult struct {
	EntryID           int                 `json:"entryId"`
	Gameweeks         int                 `json:"gameweeks"`
	BenchPointsWasted int                 `json:"benchPointsWasted"`
	TransferCosts     TransferCostSummary `json:"transferCosts"`
	Captaincy         CaptaincySummary    `json:"captaincy"`
	ChipTimings       []ChipTiming        `json:"chipTimings"`
	RankTrajectory    RankTrajectory      `json:"rankTrajectory"`
	TeamValueGrowth   *int                `json:"teamValueGrowth"`
}

// LeagueManager is one entry in a classic league's standings.
type LeagueManager struct {
	EntryID    int    `json:"entryId"`
	PlayerName string `json:"playerName"`
	TeamName   string `json:"teamName"`
	Rank       int    `json:"rank"`
	Total      int    `json:"total"`
}

// GameweekExtremes names the managers with the best and worst score of one
// gameweek across a league.
type GameweekExtremes struct {
	Gameweek         int   `json:"gameweek"`
	TopManagerIDs    []int `json:"topManagerIds"`
	BottomManagerIDs []int `json:"bottomManagerIds"`
	MaxPoints        int   `json:"maxPoints"`
	MinPoints        int   `json:"minPoints"`
}

// ManagerStreak is how often, and for how long consecutively, a manager
// finished a gameweek as the league's top (or bottom) scorer.
type ManagerStreak struct {
	ManagerID   int    `json:"managerId"`
	ManagerName string `json:"managerName"`
	Weeks       int    `json:"weeks"`
	BestStreak  int    `json:"bestStreak"`
}

// LeagueStreakReport holds top/bottom scorer streaks for a league.
type LeagueStreakReport struct {
	LeagueID int             `json:"leagueId"`
	Top      []ManagerStreak `json:"top"`
	Bottom   []ManagerStreak `json:"bottom"`
}

// ManagerBenchTotal is a manager's summed bench points across the season.
type ManagerBenchTotal struct {
	ManagerID   int    `json:"managerId"`
	ManagerName string `json:"managerName"`
	BenchPoints int    `json:"benchPoints"`
}

// ManagerSquadValue is a manager's squad value (team value + bank) profile,
// in millions.
type ManagerSquadValue struct {
	ManagerID   int     `json:"managerId"`
	ManagerName string  `json:"managerName"`
	Average     float64 `json:"averageValue"`
	Peak        float64 `json:"peakValue"`
}

// ManagerTransferTotal is a manager's transfer count across the season.
type ManagerTransferTotal struct {
	ManagerID   int    `json:"managerId"`
	ManagerName string `json:"managerName"`
	Transfers   int    `json:"transfers"`
}

// ElementInfo is the per-player metadata from the bootstrap feed that the
// squad metrics need. Price is in tenths of a million; the float fields
// arrive upstream as strings and are parsed by the client.
type ElementInfo struct {
	ID            int     `json:"id"`
	WebName       string  `json:"webName"`
	Team          int     `json:"team"`
	NowCost       int     `json:"nowCost"`
	EPNext        float64 `json:"epNext"`
	EPThis        float64 `json:"epThis"`
	Form          float64 `json:"form"`
	PointsPerGame float64 `json:"pointsPerGame"`
}

// Fixture is one scheduled match with the difficulty rating each side faces.
type Fixture struct {
	Event          int `json:"event"`
	TeamHome       int `json:"teamHome"`
	TeamAway       int `json:"teamAway"`
	HomeDifficulty int `json:"homeDifficulty"`
	AwayDifficulty int `json:"awayDifficulty"`
}

// PlayerValueEfficiency is one squad member's expected points per million.
type PlayerValueEfficiency struct {
	Element        int     `json:"element"`
	PlayerName     string  `json:"playerName"`
	Price          float64 `json:"price"`
	ExpectedPoints float64 `json:"expectedPoints"`
	Efficiency     float64 `json:"efficiency"`
}

// ValueEfficiencyReport ranks a squad by expected points per million spent.
type ValueEfficiencyReport struct {
	EntryID         int                     `json:"entryId"`
	Gameweek        int                     `json:"gameweek"`
	TeamAverage     float64                 `json:"teamAverage"`
	Players         []PlayerValueEfficiency `json:"players"`
	Recommendations []string                `json:"recommendations"`
}

// PerformanceStatus classifies a player's returns against expectation.
type PerformanceStatus string

const (
	PerformanceUnder  PerformanceStatus = "under-performing"
	PerformanceOver   PerformanceStatus = "over-performing"
	PerformanceNormal PerformanceStatus = "normal"
)

// PlayerPerformance compares a squad member's points per game with the
// upstream expectation for the current gameweek.
type PlayerPerformance struct {
	Element       int               `json:"element"`
	PlayerName    string            `json:"playerName"`
	PointsPerGame float64           `json:"pointsPerGame"`
	Expected      float64           `json:"expected"`
	Delta         float64           `json:"delta"`
	Status        PerformanceStatus `json:"status"`
}

// PerformanceReport summarizes which squad members are over or under
// delivering on their expected returns.
type PerformanceReport struct {
	EntryID         int                 `json:"entryId"`
	Gameweek        int                 `json:"gameweek"`
	Players         []PlayerPerformance `json:"players"`
	UnderPerformers int                 `json:"underPerformers"`
	OverPerformers  int                 `json:"overPerformers"`
}

// FixtureStatus classifies an upcoming run of fixtures by difficulty.
type FixtureStatus string

const (
	FixtureFavourable FixtureStatus = "favourable"
	FixtureTough      FixtureStatus = "tough"
	FixtureNeutral    FixtureStatus = "neutral"
)

// PlayerFixtureOutlook is one squad member's upcoming fixture difficulty.
// AverageDifficulty is null when no fixture falls inside the horizon.
type PlayerFixtureOutlook struct {
	Element           int           `json:"element"`
	PlayerName        string        `json:"playerName"`
	Price             float64       `json:"price"`
	NextDifficulties  []int         `json:"nextDifficulties"`
	AverageDifficulty *float64      `json:"averageDifficulty"`
	Status            FixtureStatus `json:"status"`
}

// FixtureRunReport summarizes a squad's fixture difficulty over the next
// horizon gameweeks.
type FixtureRunReport struct {
	EntryID         int                    `json:"entryId"`
	Horizon         int                    `json:"horizon"`
	TeamAverage     *float64               `json:"teamAverage"`
	Players         []PlayerFixtureOutlook `json:"players"`
	FavourableCount int                    `json:"favourableCount"`
	ToughCount      int                    `json:"toughCount"`
}

// PlayerExpectedPoints is one squad member's projected return. Basic is the
// upstream expectation; Adjusted folds in form, venue and fixture difficulty.
type PlayerExpectedPoints struct {
	Element    int     `json:"element"`
	PlayerName string  `json:"playerName"`
	Basic      float64 `json:"basic"`
	Adjusted   float64 `json:"adjusted"`
}

// ExpectedPointsReport projects a squad's points over the next horizon
// gameweeks.
type ExpectedPointsReport struct {
	EntryID            int                    `json:"entryId"`
	Horizon            int                    `json:"horizon"`
	TeamExpectedPoints float64                `json:"teamExpectedPoints"`
	Players            []PlayerExpectedPoints `json:"players"`
}

// ReportRecord is one archived insights computation.
type ReportRecord struct {
	ID          string          `json:"id"`
	EntryID     int             `json:"entryId"`
	GameweekMin int             `json:"gameweekMin"`
	GameweekMax int             `json:"gameweekMax"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Payload     json.RawMessage `json:"payload"`
}
