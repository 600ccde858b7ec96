package domain

// PartyTally is the running count for one party within a session.
type PartyTally struct {
	PartyCode int
	Name      string
	Votes     int64
	// CandidatesSeen is the number of distinct candidates of this party
	// with at least one counted vote.
	CandidatesSeen int
	// FirstSeenRank is the order in which the party first appeared in the
	// stream, used as the final ranking tie-breaker.
	FirstSeenRank int
}

// CandidateTally is the running count for one candidate within a session.
type CandidateTally struct {
	Number        int
	Name          string
	PartyCode     int
	Votes         int64
	FirstSeenRank int
}

// CoverageState tracks how much of the dataset a session has consumed.
// VotesCounted never decreases and never exceeds TotalVotes.
type CoverageState struct {
	RegionsCounted int
	TotalRegions   int
	VotesCounted   int64
	TotalVotes     int64
}

// VotePct returns the counted fraction of total votes in [0, 1].
func (c CoverageState) VotePct() float64 {
	if c.TotalVotes <= 0 {
		return 0
	}
	return float64(c.VotesCounted) / float64(c.TotalVotes)
}

// Remaining returns the number of votes not yet counted.
func (c CoverageState) Remaining() int64 {
	remaining := c.TotalVotes - c.VotesCounted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Aggregator accumulates vote records into per-party and per-candidate
// running totals. It is owned by exactly one session and is not safe for
// concurrent use; the session's tick loop is its sole caller.
type Aggregator struct {
	registeredParties    map[int]Party
	registeredCandidates map[int]Candidate

	parties        map[int]*PartyTally
	partyOrder     []int
	candidates     map[int]*CandidateTally
	candidateOrder []int
	regions        map[string]struct{}

	coverage CoverageState
	skipped  int64
}

// NewAggregator builds an empty aggregator for one election. The party and
// candidate registries are used to detect malformed records.
func NewAggregator(election Election, parties []Party, candidates []Candidate) *Aggregator {
	registeredParties := make(map[int]Party, len(parties))
	for _, party := range parties {
		registeredParties[party.Code] = party
	}
	registeredCandidates := make(map[int]Candidate, len(candidates))
	for _, candidate := range candidates {
		registeredCandidates[candidate.Number] = candidate
	}
	return &Aggregator{
		registeredParties:    registeredParties,
		registeredCandidates: registeredCandidates,
		parties:              make(map[int]*PartyTally),
		candidates:           make(map[int]*CandidateTally),
		regions:              make(map[string]struct{}),
		coverage: CoverageState{
			TotalRegions: election.TotalRegions,
			TotalVotes:   election.TotalVotes,
		},
	}
}

// Apply consumes one batch of records. Every record advances coverage;
// malformed records (unknown party, candidate not registered to the record's
// party, missing kind) are counted as skipped instead of tallied.
func (a *Aggregator) Apply(batch []VoteRecord) {
	for _, record := range batch {
		a.coverage.VotesCounted++
		if record.RegionID != "" {
			a.regions[record.RegionID] = struct{}{}
		}
		if !a.applyRecord(record) {
			a.skipped++
		}
	}
	a.coverage.RegionsCounted = len(a.regions)
}

func (a *Aggregator) applyRecord(record VoteRecord) bool {
	party, ok := a.registeredParties[record.PartyCode]
	if !ok {
		return false
	}
	switch record.Kind {
	case VoteKindNominal:
		candidate, ok := a.registeredCandidates[record.CandidateNumber]
		if !ok || candidate.PartyCode != record.PartyCode {
			return false
		}
		partyTally := a.partyTally(party)
		partyTally.Votes++
		a.candidateTally(candidate, partyTally).Votes++
	case VoteKindPartyList:
		a.partyTally(party).Votes++
	default:
		return false
	}
	return true
}

func (a *Aggregator) partyTally(party Party) *PartyTally {
	if tally, ok := a.parties[party.Code]; ok {
		return tally
	}
	tally := &PartyTally{
		PartyCode:     party.Code,
		Name:          party.Name,
		FirstSeenRank: len(a.partyOrder),
	}
	a.parties[party.Code] = tally
	a.partyOrder = append(a.partyOrder, party.Code)
	return tally
}

func (a *Aggregator) candidateTally(candidate Candidate, owner *PartyTally) *CandidateTally {
	if tally, ok := a.candidates[candidate.Number]; ok {
		return tally
	}
	tally := &CandidateTally{
		Number:        candidate.Number,
		Name:          candidate.Name,
		PartyCode:     candidate.PartyCode,
		FirstSeenRank: len(a.candidateOrder),
	}
	a.candidates[candidate.Number] = tally
	a.candidateOrder = append(a.candidateOrder, candidate.Number)
	owner.CandidatesSeen++
	return tally
}

// PartyTallies returns a copy of the party tallies in first-seen order.
func (a *Aggregator) PartyTallies() []PartyTally {
	out := make([]PartyTally, 0, len(a.partyOrder))
	for _, code := range a.partyOrder {
		out = append(out, *a.parties[code])
	}
	return out
}

// CandidateTallies returns a copy of the candidate tallies in first-seen order.
func (a *Aggregator) CandidateTallies() []CandidateTally {
	out := make([]CandidateTally, 0, len(a.candidateOrder))
	for _, number := range a.candidateOrder {
		out = append(out, *a.candidates[number])
	}
	return out
}

// Coverage returns the current coverage counters.
func (a *Aggregator) Coverage() CoverageState {
	return a.coverage
}

// Skipped returns the number of malformed records dropped so far.
func (a *Aggregator) Skipped() int64 {
	return a.skipped
}
