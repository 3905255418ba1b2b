package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/entityscan/internal/config"
	"github.com/dshills/entityscan/internal/format"
	"github.com/dshills/entityscan/internal/logging"
	"github.com/dshills/entityscan/internal/storage"
	"github.com/dshills/entityscan/pkg/types"
)

// exportSummary is one line of `exports` output
type exportSummary struct {
	ID            int64          `json:"id"`
	Path          string         `json:"path"`
	ContentHash   string         `json:"content_hash"`
	SizeBytes     int64          `json:"size_bytes"`
	ChunkSize     int            `json:"chunk_size"`
	Engine        string         `json:"engine"`
	Entities      int            `json:"entities"`
	Chunks        int            `json:"chunks"`
	SkippedChunks int            `json:"skipped_chunks"`
	DurationMS    int64          `json:"duration_ms"`
	CreatedAt     time.Time      `json:"created_at"`
	Labels        map[string]int `json:"labels"`
}

func (a *app) newExportsCmd() *cobra.Command {
	var (
		limit    int
		deleteID int64
	)

	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List or delete scans in an export database",
		Long: `Print one JSON line per exported scan, newest first, with entity counts per
label. With --delete, remove a scan and its entities instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{"export-db": config.KeyExportDB}); err != nil {
				return err
			}

			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			if cfg.Export.DB == "" {
				return fmt.Errorf("%w: --export-db is required", types.ErrConfiguration)
			}
			logger := logging.NewWithSink(cfg.LoggingConfig(), zapcore.AddSync(cmd.ErrOrStderr()))
			defer func() { _ = logger.Sync() }()

			store, err := storage.NewSQLiteStorage(cfg.Export.DB)
			if err != nil {
				return fmt.Errorf("open export db: %w", err)
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if deleteID > 0 {
				if err := store.DeleteScan(ctx, deleteID); err != nil {
					return fmt.Errorf("delete scan %d: %w", deleteID, err)
				}
				logger.Info("scan deleted", zap.Int64("scan_id", deleteID))
				return nil
			}

			scans, err := store.ListScans(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, scan := range scans {
				labels, err := store.CountEntitiesByLabel(ctx, scan.ID)
				if err != nil {
					return err
				}
				data, err := format.Marshal(exportSummary{
					ID:            scan.ID,
					Path:          scan.FilePath,
					ContentHash:   hex.EncodeToString(scan.ContentHash[:]),
					SizeBytes:     scan.SizeBytes,
					ChunkSize:     scan.ChunkSize,
					Engine:        scan.Engine,
					Entities:      scan.EntityCount,
					Chunks:        scan.ChunkCount,
					SkippedChunks: scan.SkippedChunks,
					DurationMS:    scan.Duration.Milliseconds(),
					CreatedAt:     scan.CreatedAt,
					Labels:        labels,
				})
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(out, string(data)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().String("export-db", "", "SQLite export database")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum scans to list, 0 for all")
	cmd.Flags().Int64Var(&deleteID, "delete", 0, "delete the scan with this id")
	return cmd
}
