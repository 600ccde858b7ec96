package domain

import (
	"math"
	"sort"
)

// Trend classifies the short-term movement of a party's share.
type Trend int

const (
	// TrendUnspecified represents an invalid trend value.
	TrendUnspecified Trend = iota
	// TrendStable indicates the share moved less than the threshold.
	TrendStable
	// TrendRising indicates the share grew beyond the threshold.
	TrendRising
	// TrendFalling indicates the share dropped beyond the threshold.
	TrendFalling
)

// TrendLabel returns a stable label for a trend.
func TrendLabel(trend Trend) string {
	switch trend {
	case TrendRising:
		return "RISING"
	case TrendFalling:
		return "FALLING"
	case TrendStable:
		return "STABLE"
	default:
		return "UNSPECIFIED"
	}
}

// PartyProjection is the blended final-total estimate for one party.
type PartyProjection struct {
	PartyCode      int
	Name           string
	ProjectedVotes int64
	// ProjectedPercentage is the party's estimated share of total votes,
	// in percent points.
	ProjectedPercentage float64
	Trend               Trend
}

// CandidateStanding is a leading candidate with its estimated win chance.
type CandidateStanding struct {
	Number         int
	Name           string
	PartyCode      int
	ProjectedVotes int64
	// WinProbability in [0, 100].
	WinProbability int
}

// ProjectionSnapshot is the full projection derived from one tick's tally.
type ProjectionSnapshot struct {
	// CoveragePct is the counted share the projection was computed at,
	// in percent points.
	CoveragePct float64
	// Confidence in [0, 100], saturating once coverage reaches the
	// engine's confidence target.
	Confidence int
	Parties    []PartyProjection
	Leading    []CandidateStanding
}

// TrendTracker keeps a sliding window of per-party percentages so the engine
// can classify movement against the observation N ticks earlier. Owned by one
// session, observed once per tick.
type TrendTracker struct {
	window  int
	history []map[int]float64
}

// NewTrendTracker creates a tracker comparing against the value window ticks
// earlier.
func NewTrendTracker(window int) *TrendTracker {
	if window < 1 {
		window = 1
	}
	return &TrendTracker{window: window}
}

// Observe records the current ranked percentages. Call exactly once per tick,
// after aggregation.
func (t *TrendTracker) Observe(results []PartyResult) {
	point := make(map[int]float64, len(results))
	for _, result := range results {
		point[result.PartyCode] = result.Percentage
	}
	t.history = append(t.history, point)
	if len(t.history) > t.window+1 {
		t.history = t.history[len(t.history)-t.window-1:]
	}
}

// TrendFor classifies a party's movement. Threshold is in percent points.
// Parties observed for fewer than window+1 ticks read as stable.
func (t *TrendTracker) TrendFor(partyCode int, threshold float64) Trend {
	if len(t.history) < t.window+1 {
		return TrendStable
	}
	current, ok := t.history[len(t.history)-1][partyCode]
	if !ok {
		return TrendStable
	}
	past, ok := t.history[len(t.history)-1-t.window][partyCode]
	if !ok {
		return TrendStable
	}
	delta := current - past
	switch {
	case delta > threshold:
		return TrendRising
	case delta < -threshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Engine derives projections from partial tallies. Early partial counts are
// biased toward the regions counted first, so the raw linear extrapolation is
// blended with the party's historical share, weighting live data more heavily
// as coverage grows. All knobs are tunable, not contracts.
type Engine struct {
	// Epsilon floors the coverage fraction in the raw extrapolation.
	Epsilon float64
	// ConfidenceTarget is the coverage fraction at which confidence
	// saturates at 100.
	ConfidenceTarget float64
	// TrendWindow is how many ticks back the trend comparison reaches.
	TrendWindow int
	// TrendThreshold is the movement, in percent points, that separates
	// stable from rising or falling.
	TrendThreshold float64
	// MinCoverage is the counted fraction below which no projection is
	// emitted.
	MinCoverage float64
	// LeadingCount caps how many candidates the snapshot carries.
	LeadingCount int
}

// NewEngine returns an engine with the default tuning.
func NewEngine() Engine {
	return Engine{
		Epsilon:          0.01,
		ConfidenceTarget: 0.6,
		TrendWindow:      5,
		TrendThreshold:   0.5,
		MinCoverage:      0.05,
		LeadingCount:     3,
	}
}

// Project computes a projection snapshot. The second return is false while
// coverage is below MinCoverage, in which case the snapshot must not be
// published. historicalShares maps party code to that party's share (0-1) in
// the reference election; parties without a share use the raw extrapolation
// alone.
func (e Engine) Project(parties []PartyTally, candidates []CandidateTally, coverage CoverageState, historicalShares map[int]float64, trends *TrendTracker) (ProjectionSnapshot, bool) {
	votePct := coverage.VotePct()
	if votePct < e.MinCoverage {
		return ProjectionSnapshot{}, false
	}

	snapshot := ProjectionSnapshot{
		CoveragePct: 100 * votePct,
		Confidence:  confidence(votePct, e.ConfidenceTarget),
		Parties:     make([]PartyProjection, 0, len(parties)),
	}

	flooredPct := math.Max(votePct, e.Epsilon)
	for _, tally := range parties {
		raw := float64(tally.Votes) / flooredPct
		projected := raw
		if share, ok := historicalShares[tally.PartyCode]; ok {
			projected = votePct*raw + (1-votePct)*share*float64(coverage.TotalVotes)
		}
		projection := PartyProjection{
			PartyCode:      tally.PartyCode,
			Name:           tally.Name,
			ProjectedVotes: int64(math.Round(projected)),
			Trend:          TrendStable,
		}
		if coverage.TotalVotes > 0 {
			projection.ProjectedPercentage = 100 * projected / float64(coverage.TotalVotes)
		}
		if trends != nil {
			projection.Trend = trends.TrendFor(tally.PartyCode, e.TrendThreshold)
		}
		snapshot.Parties = append(snapshot.Parties, projection)
	}
	sort.Slice(snapshot.Parties, func(i, j int) bool {
		if snapshot.Parties[i].ProjectedVotes != snapshot.Parties[j].ProjectedVotes {
			return snapshot.Parties[i].ProjectedVotes > snapshot.Parties[j].ProjectedVotes
		}
		return snapshot.Parties[i].PartyCode < snapshot.Parties[j].PartyCode
	})

	snapshot.Leading = e.leadingCandidates(candidates, coverage, flooredPct)
	return snapshot, true
}

// leadingCandidates projects candidates by raw extrapolation and assigns win
// probabilities from the gap between the top two relative to the votes still
// uncounted. A gap no amount of remaining votes could close reads as 100.
func (e Engine) leadingCandidates(candidates []CandidateTally, coverage CoverageState, flooredPct float64) []CandidateStanding {
	if len(candidates) == 0 {
		return nil
	}

	standings := make([]CandidateStanding, 0, len(candidates))
	for _, tally := range candidates {
		standings = append(standings, CandidateStanding{
			Number:         tally.Number,
			Name:           tally.Name,
			PartyCode:      tally.PartyCode,
			ProjectedVotes: int64(math.Round(float64(tally.Votes) / flooredPct)),
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].ProjectedVotes != standings[j].ProjectedVotes {
			return standings[i].ProjectedVotes > standings[j].ProjectedVotes
		}
		return standings[i].Number < standings[j].Number
	})

	limit := e.LeadingCount
	if limit < 1 {
		limit = 1
	}
	if len(standings) > limit {
		standings = standings[:limit]
	}

	if len(standings) == 1 {
		standings[0].WinProbability = 100
		return standings
	}

	gap := float64(standings[0].ProjectedVotes - standings[1].ProjectedVotes)
	remaining := float64(coverage.Remaining())
	leaderProbability := 100
	if remaining > 0 && gap < remaining {
		leaderProbability = clampProbability(int(math.Round(50 + 50*gap/remaining)))
	}
	standings[0].WinProbability = leaderProbability
	standings[1].WinProbability = 100 - leaderProbability
	for i := 2; i < len(standings); i++ {
		standings[i].WinProbability = 0
	}
	return standings
}

func confidence(votePct, target float64) int {
	if target <= 0 {
		return 100
	}
	return int(math.Round(100 * math.Min(1, votePct/target)))
}

func clampProbability(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
