package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aluiziolira/go-harvest/models"
	"github.com/aluiziolira/go-harvest/store"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Merge records from a JSON array into the input collection",
		ArgsUsage: "<file.json|->",
		Action:    seedAction,
	}
}

func seedAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("seed requires exactly one file argument (use - for stdin)", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger := setupLogging(cfg)

	records, err := readSeedFile(c.Args().First(), c.App.Reader)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	gw, err := store.Open(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open %s backend: %v", cfg.Storage.Backend, err), 1)
	}
	defer gw.Close()

	if err := gw.SetInput(c.Context, records); err != nil {
		return cli.Exit(fmt.Sprintf("seed input: %v", err), 1)
	}
	logger.Info().Int("records", len(records)).Str("backend", string(cfg.Storage.Backend)).Msg("input seeded")
	return nil
}

// readSeedFile decodes a JSON array of records from path, or from stdin
// when path is "-".
func readSeedFile(path string, stdin io.Reader) ([]models.Record, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var records []models.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return records, nil
}
