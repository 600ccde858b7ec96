package domain

import "sort"

// PartyResult is one ranked party entry derived from a tally snapshot.
type PartyResult struct {
	PartyCode int
	Name      string
	Votes     int64
	// Percentage of counted votes, in percent points (0-100).
	Percentage float64
	// QuotientShare is votes divided by the electoral quotient
	// (counted votes / seats). Zero when the election carries no seat count.
	// Display primitive only.
	QuotientShare float64
	Rank          int
}

// CandidateResult is one ranked candidate entry derived from a tally snapshot.
type CandidateResult struct {
	Number     int
	Name       string
	PartyCode  int
	Votes      int64
	Percentage float64
	Rank       int
}

// RankParties orders party tallies into display results. Ordering is fully
// deterministic: more votes first, then lower numeric code, then first-seen
// order.
func RankParties(tallies []PartyTally, coverage CoverageState, seats int) []PartyResult {
	counted := coverage.VotesCounted
	if counted < 1 {
		counted = 1
	}
	var quotient float64
	if seats > 0 && coverage.VotesCounted > 0 {
		quotient = float64(coverage.VotesCounted) / float64(seats)
	}

	results := make([]PartyResult, 0, len(tallies))
	for _, tally := range tallies {
		result := PartyResult{
			PartyCode:  tally.PartyCode,
			Name:       tally.Name,
			Votes:      tally.Votes,
			Percentage: 100 * float64(tally.Votes) / float64(counted),
		}
		if quotient > 0 {
			result.QuotientShare = float64(tally.Votes) / quotient
		}
		results = append(results, result)
	}

	order := make(map[int]int, len(tallies))
	for _, tally := range tallies {
		order[tally.PartyCode] = tally.FirstSeenRank
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		if results[i].PartyCode != results[j].PartyCode {
			return results[i].PartyCode < results[j].PartyCode
		}
		return order[results[i].PartyCode] < order[results[j].PartyCode]
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// RankCandidates orders candidate tallies into display results using the same
// deterministic ordering as RankParties.
func RankCandidates(tallies []CandidateTally, coverage CoverageState) []CandidateResult {
	counted := coverage.VotesCounted
	if counted < 1 {
		counted = 1
	}

	results := make([]CandidateResult, 0, len(tallies))
	for _, tally := range tallies {
		results = append(results, CandidateResult{
			Number:     tally.Number,
			Name:       tally.Name,
			PartyCode:  tally.PartyCode,
			Votes:      tally.Votes,
			Percentage: 100 * float64(tally.Votes) / float64(counted),
		})
	}

	order := make(map[int]int, len(tallies))
	for _, tally := range tallies {
		order[tally.Number] = tally.FirstSeenRank
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		if results[i].Number != results[j].Number {
			return results[i].Number < results[j].Number
		}
		return order[results[i].Number] < order[results[j].Number]
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
