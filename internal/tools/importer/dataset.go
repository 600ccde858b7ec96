package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/services/simulation/domain"
	"github.com/urnalabs/apura/internal/services/simulation/storage"
)

// datasetDocument is the JSON document the importer loads. Votes may be
// listed individually or compressed into blocks; both forms expand into
// sequential vote records in document order, individual votes first.
type datasetDocument struct {
	Election         electionDocument          `json:"election"`
	Parties          []partyDocument           `json:"parties"`
	Candidates       []candidateDocument       `json:"candidates"`
	HistoricalShares []historicalShareDocument `json:"historical_shares"`
	Votes            []voteDocument            `json:"votes"`
	VoteBlocks       []voteBlockDocument       `json:"vote_blocks"`
}

type electionDocument struct {
	Year         int    `json:"year"`
	Name         string `json:"name"`
	TotalRegions int    `json:"total_regions"`
	TotalVotes   int64  `json:"total_votes"`
	Seats        int    `json:"seats"`
}

type partyDocument struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type candidateDocument struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	PartyCode int    `json:"party_code"`
}

type historicalShareDocument struct {
	PartyCode int     `json:"party_code"`
	Share     float64 `json:"share"`
}

type voteDocument struct {
	RegionID        string `json:"region_id"`
	PartyCode       int    `json:"party_code"`
	CandidateNumber int    `json:"candidate_number"`
	Kind            string `json:"kind"`
}

// voteBlockDocument compresses a run of identical votes.
type voteBlockDocument struct {
	RegionID        string `json:"region_id"`
	PartyCode       int    `json:"party_code"`
	CandidateNumber int    `json:"candidate_number"`
	Kind            string `json:"kind"`
	Count           int64  `json:"count"`
}

// dataset is a validated, expanded document ready to write.
type dataset struct {
	Election   storage.ElectionRecord
	Parties    []domain.Party
	Candidates []domain.Candidate
	Shares     []storage.HistoricalShareRecord
	Records    []domain.VoteRecord
}

func readDatasetFile(path string) (datasetDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return datasetDocument{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var doc datasetDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return datasetDocument{}, fmt.Errorf("decode dataset: %w", err)
	}
	return doc, nil
}

func invalidRecord(reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeElectionInvalidRecord,
		"invalid dataset record: "+reason,
		map[string]string{"Reason": reason},
	)
}

// buildDataset validates the document and expands vote blocks into
// sequentially numbered records. Totals left at zero in the header are
// derived from the vote list; explicit totals must match it.
func buildDataset(doc datasetDocument) (dataset, error) {
	if doc.Election.Year <= 0 {
		return dataset{}, invalidRecord(fmt.Sprintf("election year %d is not positive", doc.Election.Year))
	}
	if doc.Election.Name == "" {
		return dataset{}, invalidRecord("election name is required")
	}
	if doc.Election.Seats < 0 {
		return dataset{}, invalidRecord("election seats cannot be negative")
	}
	if len(doc.Parties) == 0 {
		return dataset{}, invalidRecord("dataset has no parties")
	}

	parties := make([]domain.Party, 0, len(doc.Parties))
	partySet := make(map[int]struct{}, len(doc.Parties))
	for _, party := range doc.Parties {
		if party.Code <= 0 {
			return dataset{}, invalidRecord(fmt.Sprintf("party code %d is not positive", party.Code))
		}
		if party.Name == "" {
			return dataset{}, invalidRecord(fmt.Sprintf("party %d has no name", party.Code))
		}
		if _, dup := partySet[party.Code]; dup {
			return dataset{}, invalidRecord(fmt.Sprintf("duplicate party code %d", party.Code))
		}
		partySet[party.Code] = struct{}{}
		parties = append(parties, domain.Party{Code: party.Code, Name: party.Name})
	}

	candidates := make([]domain.Candidate, 0, len(doc.Candidates))
	candidateParty := make(map[int]int, len(doc.Candidates))
	for _, candidate := range doc.Candidates {
		if candidate.Number <= 0 {
			return dataset{}, invalidRecord(fmt.Sprintf("candidate number %d is not positive", candidate.Number))
		}
		if candidate.Name == "" {
			return dataset{}, invalidRecord(fmt.Sprintf("candidate %d has no name", candidate.Number))
		}
		if _, ok := partySet[candidate.PartyCode]; !ok {
			return dataset{}, invalidRecord(fmt.Sprintf("candidate %d references unknown party %d", candidate.Number, candidate.PartyCode))
		}
		if _, dup := candidateParty[candidate.Number]; dup {
			return dataset{}, invalidRecord(fmt.Sprintf("duplicate candidate number %d", candidate.Number))
		}
		candidateParty[candidate.Number] = candidate.PartyCode
		candidates = append(candidates, domain.Candidate{
			Number:    candidate.Number,
			Name:      candidate.Name,
			PartyCode: candidate.PartyCode,
		})
	}

	shares := make([]storage.HistoricalShareRecord, 0, len(doc.HistoricalShares))
	shareSet := make(map[int]struct{}, len(doc.HistoricalShares))
	var shareSum float64
	for _, share := range doc.HistoricalShares {
		if _, ok := partySet[share.PartyCode]; !ok {
			return dataset{}, invalidRecord(fmt.Sprintf("historical share references unknown party %d", share.PartyCode))
		}
		if share.Share < 0 || share.Share > 1 {
			return dataset{}, invalidRecord(fmt.Sprintf("historical share %v for party %d is outside [0, 1]", share.Share, share.PartyCode))
		}
		if _, dup := shareSet[share.PartyCode]; dup {
			return dataset{}, invalidRecord(fmt.Sprintf("duplicate historical share for party %d", share.PartyCode))
		}
		shareSet[share.PartyCode] = struct{}{}
		shareSum += share.Share
		shares = append(shares, storage.HistoricalShareRecord{
			PartyCode: share.PartyCode,
			Share:     share.Share,
		})
	}
	if shareSum > 1.000001 {
		return dataset{}, invalidRecord(fmt.Sprintf("historical shares sum to %v, above 1", shareSum))
	}

	records := make([]domain.VoteRecord, 0, len(doc.Votes))
	regions := make(map[string]struct{})
	seq := int64(0)
	appendRecord := func(regionID string, partyCode, candidateNumber int, kindLabel string) error {
		if _, ok := partySet[partyCode]; !ok {
			return invalidRecord(fmt.Sprintf("vote %d references unknown party %d", seq+1, partyCode))
		}
		if candidateNumber != 0 {
			owner, ok := candidateParty[candidateNumber]
			if !ok {
				return invalidRecord(fmt.Sprintf("vote %d references unknown candidate %d", seq+1, candidateNumber))
			}
			if owner != partyCode {
				return invalidRecord(fmt.Sprintf("vote %d assigns candidate %d to party %d", seq+1, candidateNumber, partyCode))
			}
		}
		kind, err := voteKind(kindLabel, candidateNumber)
		if err != nil {
			return err
		}
		if regionID != "" {
			regions[regionID] = struct{}{}
		}
		seq++
		records = append(records, domain.VoteRecord{
			Seq:             seq,
			RegionID:        regionID,
			PartyCode:       partyCode,
			CandidateNumber: candidateNumber,
			Kind:            kind,
		})
		return nil
	}

	for _, vote := range doc.Votes {
		if err := appendRecord(vote.RegionID, vote.PartyCode, vote.CandidateNumber, vote.Kind); err != nil {
			return dataset{}, err
		}
	}
	for i, block := range doc.VoteBlocks {
		if block.Count <= 0 {
			return dataset{}, invalidRecord(fmt.Sprintf("vote block %d has count %d", i+1, block.Count))
		}
		for n := int64(0); n < block.Count; n++ {
			if err := appendRecord(block.RegionID, block.PartyCode, block.CandidateNumber, block.Kind); err != nil {
				return dataset{}, err
			}
		}
	}

	totalVotes := doc.Election.TotalVotes
	if totalVotes == 0 {
		totalVotes = int64(len(records))
	} else if totalVotes != int64(len(records)) {
		return dataset{}, invalidRecord(fmt.Sprintf("election header claims %d votes, dataset has %d", totalVotes, len(records)))
	}
	totalRegions := doc.Election.TotalRegions
	if totalRegions == 0 {
		totalRegions = len(regions)
	} else if len(regions) > totalRegions {
		return dataset{}, invalidRecord(fmt.Sprintf("election header claims %d regions, dataset references %d", totalRegions, len(regions)))
	}

	return dataset{
		Election: storage.ElectionRecord{
			Year:         doc.Election.Year,
			Name:         doc.Election.Name,
			TotalRegions: totalRegions,
			TotalVotes:   totalVotes,
			Seats:        doc.Election.Seats,
		},
		Parties:    parties,
		Candidates: candidates,
		Shares:     shares,
		Records:    records,
	}, nil
}

// voteKind resolves a document kind label. An empty label defaults by shape:
// votes naming a candidate are nominal, party-only votes are party list.
func voteKind(label string, candidateNumber int) (domain.VoteKind, error) {
	if label == "" {
		if candidateNumber > 0 {
			return domain.VoteKindNominal, nil
		}
		return domain.VoteKindPartyList, nil
	}
	kind, err := domain.VoteKindFromLabel(label)
	if err != nil {
		return domain.VoteKindUnspecified, invalidRecord("unknown vote kind " + strconv.Quote(label))
	}
	return kind, nil
}
