package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/config"
	bleveEngine "github.com/kailas-cloud/casequery/internal/engine/bleve"
)

const (
	indexBatchSize = 500
	maxLineBytes   = 16 << 20
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index FILE.jsonl",
		Short: "Load judgments into the embedded bleve index (one JSON document per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Engine.Driver != config.EngineBleve {
				return fmt.Errorf("index needs engine.driver %q, got %q", config.EngineBleve, cfg.Engine.Driver)
			}
			if cfg.Engine.Bleve.Path == "" {
				return errors.New("index needs engine.bleve.path; an in-memory index would be lost on exit")
			}

			index, err := bleveEngine.Open(cfg.Engine.Bleve.Path)
			if err != nil {
				return fmt.Errorf("open bleve index: %w", err)
			}
			engine := bleveEngine.New(index, cfg.Engine.Bleve.Candidates, logger)
			defer func() {
				if err := engine.Close(); err != nil {
					logger.Warn("Failed to close bleve index", zap.Error(err))
				}
			}()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer func() { _ = f.Close() }()

			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

			var (
				batch []bleveEngine.Document
				line  int
				total int
			)
			flush := func() error {
				if len(batch) == 0 {
					return nil
				}
				if err := engine.Index(cmd.Context(), batch); err != nil {
					return fmt.Errorf("index batch ending at line %d: %w", line, err)
				}
				total += len(batch)
				batch = batch[:0]
				return nil
			}

			for scanner.Scan() {
				line++
				if len(scanner.Bytes()) == 0 {
					continue
				}
				var doc bleveEngine.Document
				if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				batch = append(batch, doc)
				if len(batch) >= indexBatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if err := flush(); err != nil {
				return err
			}

			count, err := engine.DocCount()
			if err != nil {
				return fmt.Errorf("count documents: %w", err)
			}
			logger.Info("Indexed judgments", zap.Int("added", total), zap.Uint64("documents", count))
			return nil
		},
	}
}
