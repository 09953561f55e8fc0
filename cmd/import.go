package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/tariff"
)

const (
	importBatchSize   = 500
	importConcurrency = 4
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the AHTN reference nomenclature from CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !cfg.Store.Configured() {
			return eris.New("a database is required for import (CUSTOMS_STORE_DATABASE_URL)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var codes []model.TariffCode
		switch strings.ToLower(filepath.Ext(importFilePath)) {
		case ".xlsx":
			codes, err = tariff.ReadXLSX(importFilePath)
		default:
			f, openErr := os.Open(importFilePath)
			if openErr != nil {
				return eris.Wrap(openErr, "open reference file")
			}
			defer f.Close()
			codes, err = tariff.ReadCSV(f)
		}
		if err != nil {
			return eris.Wrap(err, "read reference file")
		}
		if len(codes) == 0 {
			return eris.New("reference file contained no full 8-digit codes")
		}

		// Upsert in batches so one malformed chunk fails fast without
		// aborting a multi-thousand-row load held in a single statement.
		var inserted atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importConcurrency)
		for start := 0; start < len(codes); start += importBatchSize {
			start := start
			end := min(start+importBatchSize, len(codes))
			batch := codes[start:end]
			g.Go(func() error {
				n, err := st.UpsertTariffCodes(gctx, batch)
				if err != nil {
					return eris.Wrapf(err, "upsert batch at %d", start)
				}
				inserted.Add(n)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("parsed", len(codes)),
			zap.Int64("upserted", inserted.Load()),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX reference file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
