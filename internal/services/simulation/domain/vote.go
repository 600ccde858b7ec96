// Package domain holds the pure counting, ranking, and projection logic for
// election replay sessions. Nothing in this package performs I/O; the engine
// feeds it vote batches and publishes the snapshots it derives.
package domain

import (
	"fmt"
	"strings"
)

// VoteKind describes how a single vote is attributed.
type VoteKind int

const (
	// VoteKindUnspecified represents an invalid vote kind value.
	VoteKindUnspecified VoteKind = iota
	// VoteKindNominal is a vote cast for a specific candidate.
	VoteKindNominal
	// VoteKindPartyList is a vote cast for a party's list with no candidate.
	VoteKindPartyList
)

// VoteRecord is one counted vote as loaded from the dataset. Records are
// immutable and each counts exactly one vote.
type VoteRecord struct {
	// Seq is the record's position in the replay order, unique per year.
	Seq int64
	// RegionID identifies the reporting region the vote was counted in.
	RegionID string
	// PartyCode is the numeric party identifier on the ballot.
	PartyCode int
	// CandidateNumber is the ballot number of the candidate, 0 for
	// party-list votes.
	CandidateNumber int
	Kind            VoteKind
}

// VoteKindLabel returns a stable label for a vote kind.
func VoteKindLabel(kind VoteKind) string {
	switch kind {
	case VoteKindNominal:
		return "NOMINAL"
	case VoteKindPartyList:
		return "PARTY_LIST"
	default:
		return "UNSPECIFIED"
	}
}

// VoteKindFromLabel parses a string label into a VoteKind. It trims
// whitespace and matches case-insensitively.
func VoteKindFromLabel(value string) (VoteKind, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return VoteKindUnspecified, fmt.Errorf("vote kind is required")
	}
	switch strings.ToUpper(trimmed) {
	case "NOMINAL", "VOTE_KIND_NOMINAL":
		return VoteKindNominal, nil
	case "PARTY_LIST", "VOTE_KIND_PARTY_LIST":
		return VoteKindPartyList, nil
	default:
		return VoteKindUnspecified, fmt.Errorf("unknown vote kind: %s", trimmed)
	}
}
