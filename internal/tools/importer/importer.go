// Package importer loads election datasets into the simulation store,
// either from a JSON file or synthesized from a seed.
package importer

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/urnalabs/apura/internal/services/simulation/storage/sqlite"
)

const voteBatchSize = 1000

// Config holds configuration for the dataset importer.
type Config struct {
	FilePath string
	DBPath   string
	DryRun   bool
	Generate bool

	// Generation shape, used only with Generate.
	Year    int
	Votes   int64
	Regions int
	Parties int
	Seats   int
	Seed    int64
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		DBPath:  "apura.db",
		Votes:   100000,
		Regions: 20,
		Parties: 6,
		Seats:   12,
	}

	fs.StringVar(&cfg.FilePath, "file", "", "dataset JSON file to import")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "simulation database path")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	fs.BoolVar(&cfg.Generate, "generate", false, "synthesize a dataset instead of reading a file")
	fs.IntVar(&cfg.Year, "year", 0, "election year of the generated dataset")
	fs.Int64Var(&cfg.Votes, "votes", cfg.Votes, "total votes in the generated dataset")
	fs.IntVar(&cfg.Regions, "regions", cfg.Regions, "regions in the generated dataset")
	fs.IntVar(&cfg.Parties, "parties", cfg.Parties, "parties in the generated dataset")
	fs.IntVar(&cfg.Seats, "seats", cfg.Seats, "seats apportioned by the generated dataset")
	fs.Int64Var(&cfg.Seed, "seed", 0, "generation seed, 0 picks one from the clock")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	hasFile := strings.TrimSpace(cfg.FilePath) != ""
	if !hasFile && !cfg.Generate {
		return Config{}, errors.New("one of file or generate is required")
	}
	if hasFile && cfg.Generate {
		return Config{}, errors.New("file and generate are mutually exclusive")
	}
	if cfg.Generate {
		if cfg.Year <= 0 {
			return Config{}, errors.New("year is required to generate")
		}
		if cfg.Votes <= 0 {
			return Config{}, errors.New("votes must be positive")
		}
		if cfg.Regions <= 0 {
			return Config{}, errors.New("regions must be positive")
		}
		if cfg.Parties <= 0 {
			return Config{}, errors.New("parties must be positive")
		}
		if cfg.Seats < 0 {
			return Config{}, errors.New("seats cannot be negative")
		}
	}

	return cfg, nil
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	var doc datasetDocument
	if cfg.Generate {
		doc = generateDataset(cfg, out)
	} else {
		path := strings.TrimSpace(cfg.FilePath)
		if path == "" {
			return errors.New("file is required")
		}
		var err error
		doc, err = readDatasetFile(path)
		if err != nil {
			return err
		}
	}

	data, err := buildDataset(doc)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		_, err = fmt.Fprintf(out, "validated dataset for year %d: %d votes, %d regions, %d parties, %d candidates\n",
			data.Election.Year, data.Election.TotalVotes, data.Election.TotalRegions, len(data.Parties), len(data.Candidates))
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := writeDataset(ctx, store, data); err != nil {
		return fmt.Errorf("import year %d: %w", data.Election.Year, err)
	}

	_, err = fmt.Fprintf(out, "imported year %d into %s: %d votes, %d parties, %d candidates\n",
		data.Election.Year, cfg.DBPath, data.Election.TotalVotes, len(data.Parties), len(data.Candidates))
	return err
}

// writeDataset replaces a year's stored dataset: header, registries, then
// the vote log in batches.
func writeDataset(ctx context.Context, store *sqlite.Store, data dataset) error {
	year := data.Election.Year
	if err := store.PutElection(ctx, data.Election); err != nil {
		return err
	}
	if err := store.PutParties(ctx, year, data.Parties); err != nil {
		return err
	}
	if err := store.PutCandidates(ctx, year, data.Candidates); err != nil {
		return err
	}
	if err := store.PutHistoricalShares(ctx, year, data.Shares); err != nil {
		return err
	}
	if err := store.DeleteVotes(ctx, year); err != nil {
		return err
	}
	for start := 0; start < len(data.Records); start += voteBatchSize {
		end := start + voteBatchSize
		if end > len(data.Records) {
			end = len(data.Records)
		}
		if err := store.AppendVotes(ctx, year, data.Records[start:end]); err != nil {
			return err
		}
	}
	return nil
}
