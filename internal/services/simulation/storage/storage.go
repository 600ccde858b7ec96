package storage

import (
	"context"
	"time"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/services/simulation/domain"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrNoDataForYear indicates no imported dataset exists for the requested
// election year. Callers surface this to distinguish a bad year from a
// storage failure.
var ErrNoDataForYear = apperrors.New(apperrors.CodeElectionNoData, "no election data for year")

// ElectionRecord is the dataset header row for one election year.
type ElectionRecord struct {
	Year         int
	Name         string
	TotalRegions int
	TotalVotes   int64
	Seats        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HistoricalShareRecord is one party's vote share in the reference election
// used to temper early projections. Shares are fractions in [0, 1].
type HistoricalShareRecord struct {
	PartyCode int
	Share     float64
}

// ElectionStore owns dataset headers and the party and candidate registries
// the importer loads and replay sessions read.
type ElectionStore interface {
	PutElection(ctx context.Context, record ElectionRecord) error
	// GetElection returns ErrNoDataForYear when the year has no dataset.
	GetElection(ctx context.Context, year int) (ElectionRecord, error)
	// ListElections returns all dataset headers, most recent year first.
	ListElections(ctx context.Context) ([]ElectionRecord, error)

	// PutParties replaces the party registry for a year.
	PutParties(ctx context.Context, year int, parties []domain.Party) error
	ListParties(ctx context.Context, year int) ([]domain.Party, error)

	// PutCandidates replaces the candidate registry for a year.
	PutCandidates(ctx context.Context, year int, candidates []domain.Candidate) error
	ListCandidates(ctx context.Context, year int) ([]domain.Candidate, error)

	// PutHistoricalShares replaces the reference shares for a year.
	PutHistoricalShares(ctx context.Context, year int, shares []HistoricalShareRecord) error
	ListHistoricalShares(ctx context.Context, year int) ([]HistoricalShareRecord, error)
}

// VoteSource streams a year's vote records in replay order.
type VoteSource interface {
	// AppendVotes persists a batch of records. Sequence numbers must be
	// unique within the year.
	AppendVotes(ctx context.Context, year int, records []domain.VoteRecord) error
	CountVotes(ctx context.Context, year int) (int64, error)
	// Votes opens an iterator over the year's records in ascending
	// sequence order.
	Votes(ctx context.Context, year int) (VoteIterator, error)
}

// VoteIterator walks vote records in replay order. Implementations page
// internally; a short or empty batch means the stream is exhausted.
type VoteIterator interface {
	Next(ctx context.Context, limit int) ([]domain.VoteRecord, error)
	Close() error
}
