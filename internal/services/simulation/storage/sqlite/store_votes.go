package sqlite

import (
	"context"
	"fmt"

	"github.com/urnalabs/apura/internal/services/simulation/domain"
	"github.com/urnalabs/apura/internal/services/simulation/storage"
)

// AppendVotes persists a batch of vote records in one transaction.
func (s *Store) AppendVotes(ctx context.Context, year int, records []domain.VoteRecord) error {
	if year <= 0 {
		return fmt.Errorf("election year is required")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append votes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO votes (year, seq, region_id, party_code, candidate_number, kind)
VALUES (?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert vote: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx,
			year,
			record.Seq,
			record.RegionID,
			record.PartyCode,
			record.CandidateNumber,
			domain.VoteKindLabel(record.Kind),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert vote %d: %w", record.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append votes: %w", err)
	}
	return nil
}

// DeleteVotes removes a year's stored records so a re-import replaces them.
func (s *Store) DeleteVotes(ctx context.Context, year int) error {
	if year <= 0 {
		return fmt.Errorf("election year is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM votes WHERE year = ?`, year); err != nil {
		return fmt.Errorf("delete votes: %w", err)
	}
	return nil
}

// CountVotes returns the number of stored records for a year.
func (s *Store) CountVotes(ctx context.Context, year int) (int64, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE year = ?`, year)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

// Votes opens an iterator over a year's records in ascending sequence order.
func (s *Store) Votes(ctx context.Context, year int) (storage.VoteIterator, error) {
	if _, err := s.GetElection(ctx, year); err != nil {
		return nil, err
	}
	return &voteIterator{store: s, year: year}, nil
}

// voteIterator pages through the votes table with a keyset cursor so no read
// transaction stays open between ticks.
type voteIterator struct {
	store   *Store
	year    int
	lastSeq int64
}

// Next returns up to limit records after the cursor. An empty batch means the
// stream is exhausted.
func (it *voteIterator) Next(ctx context.Context, limit int) ([]domain.VoteRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := it.store.sqlDB.QueryContext(ctx, `
SELECT seq, region_id, party_code, candidate_number, kind
FROM votes
WHERE year = ? AND seq > ?
ORDER BY seq
LIMIT ?
`, it.year, it.lastSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	records := make([]domain.VoteRecord, 0, limit)
	for rows.Next() {
		var record domain.VoteRecord
		var kind string
		if err := rows.Scan(&record.Seq, &record.RegionID, &record.PartyCode, &record.CandidateNumber, &kind); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		// Unknown labels map to the unspecified kind, which the
		// aggregator counts as skipped.
		record.Kind, _ = domain.VoteKindFromLabel(kind)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}

	if len(records) > 0 {
		it.lastSeq = records[len(records)-1].Seq
	}
	return records, nil
}

// Close releases the iterator. The keyset cursor holds no database resources.
func (it *voteIterator) Close() error {
	return nil
}
