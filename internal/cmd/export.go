package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/config"
	"github.com/quipkit/quipkit/internal/core/engine"
	apperrors "github.com/quipkit/quipkit/internal/errors"
	"github.com/quipkit/quipkit/internal/export"
	"github.com/quipkit/quipkit/internal/metrics"
	"github.com/quipkit/quipkit/internal/observability"
	"github.com/quipkit/quipkit/internal/output"
	"github.com/quipkit/quipkit/internal/server"
)

const statusShutdownTimeout = 5 * time.Second

var exportCmd = &cobra.Command{
	Use:   "export <folder-id>",
	Short: "Export a folder tree to HTML files",
	Long: `Export every document below a folder to <out>/<folder path>/<title>-<id>.html.

Progress is checkpointed after each folder so an interrupted export resumes
where it stopped. Rate limited calls are retried after a fixed cooldown.

With --listen, a status server reports /health, /ratelimit, /export and
Prometheus /metrics while the export runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("out", "", "output directory (required)")
	exportCmd.Flags().String("checkpoint", "", "checkpoint file (default <out>/.quipkit-checkpoint.json)")
	exportCmd.Flags().String("listen", "", "serve status endpoints on this address, e.g. 127.0.0.1:9090")
	exportCmd.Flags().Int("page-limit", 0, "sections requested per HTML page (0 uses the service default)")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}

// progressTracker holds the latest totals for the status server.
type progressTracker struct {
	mu      sync.Mutex
	summary export.Summary
}

func (p *progressTracker) set(summary export.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = summary
}

func (p *progressTracker) get() export.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

func runExport(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	checkpointPath, _ := cmd.Flags().GetString("checkpoint")
	listen, _ := cmd.Flags().GetString("listen")
	pageLimit, _ := cmd.Flags().GetInt("page-limit")

	outDir = strings.TrimSpace(outDir)
	if outDir == "" {
		return apperrors.NewInvalidInputError("--out is required")
	}
	if strings.TrimSpace(checkpointPath) == "" {
		checkpointPath = config.DefaultCheckpointPath(outDir)
	}

	client, cfg, err := newClient(cmd)
	if err != nil {
		return err
	}
	logger := observability.CLILogger

	checkpoint, err := export.LoadCheckpoint(appFs, checkpointPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	detach := m.Attach(client.Coordinator)
	defer detach()

	walker := export.NewWalker(client, appFs, export.Options{
		OutDir:         outDir,
		CheckpointPath: checkpointPath,
		RecheckAfter:   cfg.Export.RecheckAfter,
		RecentWindow:   cfg.Export.RecentWindow,
		PageLimit:      pageLimit,
	})
	walker.Checkpoint = checkpoint
	walker.Logger = logger
	walker.Retry = &engine.RetryDriver{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Cooldown:    cfg.Retry.Cooldown,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			m.RecordRetry()
			m.RecordError(err)
			logger.Warn("Rate limited; cooling down before retry",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	}

	progress := &progressTracker{}
	walker.Progress = func(summary export.Summary) {
		progress.set(summary)
		m.RecordExport(&summary)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listen = strings.TrimSpace(listen); listen != "" {
		observability.InitServerLogger(config.AppName, cfg.Logging.Level)
		srv := server.New(listen, server.Options{
			Coordinator: client.Coordinator,
			Metrics:     m,
			Progress:    progress.get,
			Version: server.VersionInfo{
				Name:      config.AppName,
				Version:   versionInfo.Version,
				Commit:    versionInfo.Commit,
				BuildDate: versionInfo.BuildDate,
			},
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("Status server failed", zap.String("addr", listen), zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting export",
		zap.String("folder_id", args[0]),
		zap.String("out", outDir),
		zap.String("checkpoint", checkpointPath))

	summary, walkErr := walker.Walk(ctx, args[0])
	if summary != nil {
		m.RecordExport(summary)
		if err := render(cmd, output.ExportDocument(summary)); err != nil {
			return err
		}
	}
	return walkErr
}
