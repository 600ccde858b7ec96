package domain

// Election is the dataset header a replay session runs against.
type Election struct {
	Year int
	Name string
	// TotalRegions is the number of reporting regions in the dataset.
	TotalRegions int
	// TotalVotes is the number of vote records the dataset holds.
	TotalVotes int64
	// Seats is the number of seats in dispute, 0 when the dataset does not
	// carry one. Used only for the quotient-style display share.
	Seats int
}

// Party is one registered party in an election's dataset.
type Party struct {
	Code int
	Name string
}

// Candidate is one registered candidate in an election's dataset.
type Candidate struct {
	Number    int
	Name      string
	PartyCode int
}
