package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urnalabs/apura/internal/services/simulation/domain"
	"github.com/urnalabs/apura/internal/services/simulation/storage"
)

// PutElection upserts a dataset header row.
func (s *Store) PutElection(ctx context.Context, record storage.ElectionRecord) error {
	if record.Year <= 0 {
		return fmt.Errorf("election year is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO elections (year, name, total_regions, total_votes, seats, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(year) DO UPDATE SET
	name = excluded.name,
	total_regions = excluded.total_regions,
	total_votes = excluded.total_votes,
	seats = excluded.seats,
	updated_at = excluded.updated_at
`,
		record.Year,
		record.Name,
		record.TotalRegions,
		record.TotalVotes,
		record.Seats,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put election: %w", err)
	}
	return nil
}

// GetElection loads a dataset header by year.
func (s *Store) GetElection(ctx context.Context, year int) (storage.ElectionRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT year, name, total_regions, total_votes, seats, created_at, updated_at
FROM elections
WHERE year = ?
`, year)

	var record storage.ElectionRecord
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.Year,
		&record.Name,
		&record.TotalRegions,
		&record.TotalVotes,
		&record.Seats,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ElectionRecord{}, storage.ErrNoDataForYear
	}
	if err != nil {
		return storage.ElectionRecord{}, fmt.Errorf("get election: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// ListElections returns all dataset headers, most recent year first.
func (s *Store) ListElections(ctx context.Context) ([]storage.ElectionRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT year, name, total_regions, total_votes, seats, created_at, updated_at
FROM elections
ORDER BY year DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var records []storage.ElectionRecord
	for rows.Next() {
		var record storage.ElectionRecord
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&record.Year,
			&record.Name,
			&record.TotalRegions,
			&record.TotalVotes,
			&record.Seats,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		record.UpdatedAt = fromMillis(updatedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	return records, nil
}

// PutParties replaces the party registry for a year.
func (s *Store) PutParties(ctx context.Context, year int, parties []domain.Party) error {
	if year <= 0 {
		return fmt.Errorf("election year is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put parties: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM parties WHERE year = ?`, year); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear parties: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO parties (year, code, name) VALUES (?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert party: %w", err)
	}
	defer stmt.Close()

	for _, party := range parties {
		if _, err := stmt.ExecContext(ctx, year, party.Code, party.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert party %d: %w", party.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put parties: %w", err)
	}
	return nil
}

// ListParties returns a year's party registry ordered by code.
func (s *Store) ListParties(ctx context.Context, year int) ([]domain.Party, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT code, name FROM parties WHERE year = ? ORDER BY code
`, year)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var parties []domain.Party
	for rows.Next() {
		var party domain.Party
		if err := rows.Scan(&party.Code, &party.Name); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return parties, nil
}

// PutCandidates replaces the candidate registry for a year.
func (s *Store) PutCandidates(ctx context.Context, year int, candidates []domain.Candidate) error {
	if year <= 0 {
		return fmt.Errorf("election year is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put candidates: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE year = ?`, year); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear candidates: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candidates (year, number, name, party_code) VALUES (?, ?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert candidate: %w", err)
	}
	defer stmt.Close()

	for _, candidate := range candidates {
		if _, err := stmt.ExecContext(ctx, year, candidate.Number, candidate.Name, candidate.PartyCode); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert candidate %d: %w", candidate.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put candidates: %w", err)
	}
	return nil
}

// ListCandidates returns a year's candidate registry ordered by ballot number.
func (s *Store) ListCandidates(ctx context.Context, year int) ([]domain.Candidate, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT number, name, party_code FROM candidates WHERE year = ? ORDER BY number
`, year)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var candidate domain.Candidate
		if err := rows.Scan(&candidate.Number, &candidate.Name, &candidate.PartyCode); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return candidates, nil
}

// PutHistoricalShares replaces the reference shares for a year.
func (s *Store) PutHistoricalShares(ctx context.Context, year int, shares []storage.HistoricalShareRecord) error {
	if year <= 0 {
		return fmt.Errorf("election year is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put historical shares: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_shares WHERE year = ?`, year); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear historical shares: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO historical_shares (year, party_code, share) VALUES (?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert historical share: %w", err)
	}
	defer stmt.Close()

	for _, share := range shares {
		if _, err := stmt.ExecContext(ctx, year, share.PartyCode, share.Share); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert historical share %d: %w", share.PartyCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put historical shares: %w", err)
	}
	return nil
}

// ListHistoricalShares returns a year's reference shares ordered by party code.
func (s *Store) ListHistoricalShares(ctx context.Context, year int) ([]storage.HistoricalShareRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT party_code, share FROM historical_shares WHERE year = ? ORDER BY party_code
`, year)
	if err != nil {
		return nil, fmt.Errorf("list historical shares: %w", err)
	}
	defer rows.Close()

	var shares []storage.HistoricalShareRecord
	for rows.Next() {
		var share storage.HistoricalShareRecord
		if err := rows.Scan(&share.PartyCode, &share.Share); err != nil {
			return nil, fmt.Errorf("scan historical share: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list historical shares: %w", err)
	}
	return shares, nil
}
