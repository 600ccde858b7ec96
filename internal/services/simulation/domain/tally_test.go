package domain

import "testing"

func testElection() Election {
	return Election{
		Year:         2022,
		Name:         "General Election 2022",
		TotalRegions: 3,
		TotalVotes:   100,
		Seats:        10,
	}
}

func testParties() []Party {
	return []Party{
		{Code: 10, Name: "Union Party"},
		{Code: 20, Name: "Labor Front"},
		{Code: 30, Name: "Green Alliance"},
	}
}

func testCandidates() []Candidate {
	return []Candidate{
		{Number: 1001, Name: "Alves", PartyCode: 10},
		{Number: 1002, Name: "Braga", PartyCode: 10},
		{Number: 2001, Name: "Costa", PartyCode: 20},
		{Number: 3001, Name: "Dias", PartyCode: 30},
	}
}

func TestAggregatorApplyNominalAndPartyList(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 2, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 3, RegionID: "r2", PartyCode: 10, Kind: VoteKindPartyList},
		{Seq: 4, RegionID: "r2", PartyCode: 20, CandidateNumber: 2001, Kind: VoteKindNominal},
	})

	parties := agg.PartyTallies()
	if len(parties) != 2 {
		t.Fatalf("expected 2 party tallies, got %d", len(parties))
	}
	if parties[0].PartyCode != 10 || parties[0].Votes != 3 {
		t.Fatalf("expected party 10 with 3 votes, got %d with %d", parties[0].PartyCode, parties[0].Votes)
	}
	if parties[1].PartyCode != 20 || parties[1].Votes != 1 {
		t.Fatalf("expected party 20 with 1 vote, got %d with %d", parties[1].PartyCode, parties[1].Votes)
	}

	candidates := agg.CandidateTallies()
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidate tallies, got %d", len(candidates))
	}
	if candidates[0].Number != 1001 || candidates[0].Votes != 2 {
		t.Fatalf("expected candidate 1001 with 2 votes, got %d with %d", candidates[0].Number, candidates[0].Votes)
	}

	coverage := agg.Coverage()
	if coverage.VotesCounted != 4 {
		t.Fatalf("expected 4 votes counted, got %d", coverage.VotesCounted)
	}
	if coverage.RegionsCounted != 2 {
		t.Fatalf("expected 2 regions counted, got %d", coverage.RegionsCounted)
	}
	if agg.Skipped() != 0 {
		t.Fatalf("expected 0 skipped, got %d", agg.Skipped())
	}
}

func TestAggregatorSkipsMalformedRecords(t *testing.T) {
	tests := []struct {
		name   string
		record VoteRecord
	}{
		{name: "unknown party", record: VoteRecord{Seq: 1, RegionID: "r1", PartyCode: 99, CandidateNumber: 9901, Kind: VoteKindNominal}},
		{name: "unregistered candidate", record: VoteRecord{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 9999, Kind: VoteKindNominal}},
		{name: "candidate of another party", record: VoteRecord{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 2001, Kind: VoteKindNominal}},
		{name: "unspecified kind", record: VoteRecord{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(testElection(), testParties(), testCandidates())
			agg.Apply([]VoteRecord{tt.record})

			if agg.Skipped() != 1 {
				t.Fatalf("expected 1 skipped, got %d", agg.Skipped())
			}
			if got := agg.Coverage().VotesCounted; got != 1 {
				t.Fatalf("expected coverage to advance to 1, got %d", got)
			}
			for _, tally := range agg.PartyTallies() {
				if tally.Votes != 0 {
					t.Fatalf("expected no tallied votes, got %d for party %d", tally.Votes, tally.PartyCode)
				}
			}
		})
	}
}

func TestAggregatorVoteConservation(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 2, RegionID: "r1", PartyCode: 20, Kind: VoteKindPartyList},
		{Seq: 3, RegionID: "r1", PartyCode: 99, CandidateNumber: 9901, Kind: VoteKindNominal},
		{Seq: 4, RegionID: "r2", PartyCode: 30, CandidateNumber: 3001, Kind: VoteKindNominal},
		{Seq: 5, RegionID: "r2", PartyCode: 10, CandidateNumber: 2001, Kind: VoteKindNominal},
	})

	var partyVotes int64
	for _, tally := range agg.PartyTallies() {
		partyVotes += tally.Votes
	}

	coverage := agg.Coverage()
	if partyVotes+agg.Skipped() != coverage.VotesCounted {
		t.Fatalf("conservation violated: %d tallied + %d skipped != %d counted",
			partyVotes, agg.Skipped(), coverage.VotesCounted)
	}
	if agg.Skipped() != 2 {
		t.Fatalf("expected 2 skipped, got %d", agg.Skipped())
	}
}

func TestAggregatorCoverageMonotonic(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	var prev CoverageState
	for seq := int64(1); seq <= 10; seq++ {
		agg.Apply([]VoteRecord{{Seq: seq, RegionID: "r1", PartyCode: 10, Kind: VoteKindPartyList}})
		coverage := agg.Coverage()
		if coverage.VotesCounted < prev.VotesCounted {
			t.Fatalf("votes counted decreased: %d -> %d", prev.VotesCounted, coverage.VotesCounted)
		}
		if coverage.RegionsCounted < prev.RegionsCounted {
			t.Fatalf("regions counted decreased: %d -> %d", prev.RegionsCounted, coverage.RegionsCounted)
		}
		prev = coverage
	}
	if prev.VotesCounted != 10 {
		t.Fatalf("expected 10 votes counted, got %d", prev.VotesCounted)
	}
}

func TestAggregatorRegionsDeduplicated(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 10, Kind: VoteKindPartyList},
		{Seq: 2, RegionID: "r1", PartyCode: 10, Kind: VoteKindPartyList},
		{Seq: 3, RegionID: "r2", PartyCode: 99, Kind: VoteKindPartyList},
		{Seq: 4, PartyCode: 10, Kind: VoteKindPartyList},
	})

	coverage := agg.Coverage()
	if coverage.RegionsCounted != 2 {
		t.Fatalf("expected 2 regions counted, got %d", coverage.RegionsCounted)
	}
}

func TestAggregatorFirstSeenOrder(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 30, CandidateNumber: 3001, Kind: VoteKindNominal},
		{Seq: 2, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 3, RegionID: "r1", PartyCode: 20, Kind: VoteKindPartyList},
	})

	parties := agg.PartyTallies()
	wantOrder := []int{30, 10, 20}
	for i, want := range wantOrder {
		if parties[i].PartyCode != want {
			t.Fatalf("expected party %d at position %d, got %d", want, i, parties[i].PartyCode)
		}
		if parties[i].FirstSeenRank != i {
			t.Fatalf("expected first seen rank %d for party %d, got %d", i, want, parties[i].FirstSeenRank)
		}
	}
}

func TestAggregatorCandidatesSeen(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())

	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 2, RegionID: "r1", PartyCode: 10, CandidateNumber: 1002, Kind: VoteKindNominal},
		{Seq: 3, RegionID: "r1", PartyCode: 10, CandidateNumber: 1001, Kind: VoteKindNominal},
		{Seq: 4, RegionID: "r1", PartyCode: 10, Kind: VoteKindPartyList},
	})

	parties := agg.PartyTallies()
	if len(parties) != 1 {
		t.Fatalf("expected 1 party tally, got %d", len(parties))
	}
	if parties[0].CandidatesSeen != 2 {
		t.Fatalf("expected 2 candidates seen, got %d", parties[0].CandidatesSeen)
	}
	if parties[0].Votes != 4 {
		t.Fatalf("expected 4 party votes, got %d", parties[0].Votes)
	}
}

func TestAggregatorTalliesAreCopies(t *testing.T) {
	agg := NewAggregator(testElection(), testParties(), testCandidates())
	agg.Apply([]VoteRecord{
		{Seq: 1, RegionID: "r1", PartyCode: 10, Kind: VoteKindPartyList},
	})

	first := agg.PartyTallies()
	first[0].Votes = 999

	second := agg.PartyTallies()
	if second[0].Votes != 1 {
		t.Fatalf("expected internal tally unchanged, got %d", second[0].Votes)
	}
}

func TestAggregatorFullCountScenario(t *testing.T) {
	election := Election{
		Year:         2022,
		Name:         "General Election 2022",
		TotalRegions: 10,
		TotalVotes:   1_000_000,
	}
	parties := []Party{
		{Code: 10, Name: "Union Party"},
		{Code: 20, Name: "Labor Front"},
		{Code: 30, Name: "Green Alliance"},
	}
	agg := NewAggregator(election, parties, nil)

	regions := []string{"R001", "R002", "R003", "R004", "R005", "R006", "R007", "R008", "R009", "R010"}

	// Every block of ten votes splits 6/3/1 across the parties, so the full
	// count lands at exactly 60/30/10 percent.
	const chunkSize = 10_000
	var seq int64
	var lastCounted int64
	for seq < election.TotalVotes {
		chunk := make([]VoteRecord, 0, chunkSize)
		for len(chunk) < chunkSize && seq < election.TotalVotes {
			pos := seq % 10
			party := 10
			switch {
			case pos >= 9:
				party = 30
			case pos >= 6:
				party = 20
			}
			chunk = append(chunk, VoteRecord{
				Seq:       seq + 1,
				RegionID:  regions[pos],
				PartyCode: party,
				Kind:      VoteKindPartyList,
			})
			seq++
		}
		agg.Apply(chunk)

		counted := agg.Coverage().VotesCounted
		if counted <= lastCounted {
			t.Fatalf("coverage did not advance: %d after %d", counted, lastCounted)
		}
		lastCounted = counted
	}

	coverage := agg.Coverage()
	if coverage.VotesCounted != election.TotalVotes {
		t.Fatalf("expected %d votes counted, got %d", election.TotalVotes, coverage.VotesCounted)
	}
	if coverage.RegionsCounted != 10 {
		t.Fatalf("expected 10 regions counted, got %d", coverage.RegionsCounted)
	}
	if agg.Skipped() != 0 {
		t.Fatalf("expected 0 skipped, got %d", agg.Skipped())
	}

	results := RankParties(agg.PartyTallies(), coverage, 0)
	want := []struct {
		code       int
		votes      int64
		percentage float64
	}{
		{code: 10, votes: 600_000, percentage: 60},
		{code: 20, votes: 300_000, percentage: 30},
		{code: 30, votes: 100_000, percentage: 10},
	}
	if len(results) != len(want) {
		t.Fatalf("expected %d ranked parties, got %d", len(want), len(results))
	}
	for i, w := range want {
		got := results[i]
		if got.PartyCode != w.code || got.Votes != w.votes || got.Rank != i+1 {
			t.Fatalf("rank %d: got party %d with %d votes, want party %d with %d votes",
				i+1, got.PartyCode, got.Votes, w.code, w.votes)
		}
		if got.Percentage != w.percentage {
			t.Fatalf("party %d: got %v%%, want %v%%", w.code, got.Percentage, w.percentage)
		}
	}
}

func TestCoverageStateVotePct(t *testing.T) {
	tests := []struct {
		name     string
		coverage CoverageState
		want     float64
	}{
		{name: "empty", coverage: CoverageState{TotalVotes: 100}, want: 0},
		{name: "half", coverage: CoverageState{VotesCounted: 50, TotalVotes: 100}, want: 0.5},
		{name: "complete", coverage: CoverageState{VotesCounted: 100, TotalVotes: 100}, want: 1},
		{name: "zero total", coverage: CoverageState{VotesCounted: 5}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coverage.VotePct(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoverageStateRemaining(t *testing.T) {
	coverage := CoverageState{VotesCounted: 30, TotalVotes: 100}
	if got := coverage.Remaining(); got != 70 {
		t.Fatalf("expected 70 remaining, got %d", got)
	}

	over := CoverageState{VotesCounted: 120, TotalVotes: 100}
	if got := over.Remaining(); got != 0 {
		t.Fatalf("expected 0 remaining when over-counted, got %d", got)
	}
}
