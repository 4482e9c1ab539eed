package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"capaudit/internal/audit"
	"capaudit/internal/parserunner"
	"capaudit/internal/pipeline"
	"capaudit/internal/services/claude"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <documents.zip | file...>",
		Short: "Run a full audit over a document set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			// One audit at a time per workspace.
			lock := flock.New(filepath.Join(cfg.Paths.WorkDir, "capaudit.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire workspace lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another audit is already running in %s", cfg.Paths.WorkDir)
			}
			defer func() {
				_ = lock.Unlock()
			}()

			auditID := uuid.NewString()
			uploadDir := filepath.Join(cfg.Paths.UploadDir, auditID)
			if err := os.MkdirAll(uploadDir, 0o755); err != nil {
				return fmt.Errorf("create upload directory: %w", err)
			}

			paths, err := collectInputs(args, uploadDir)
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if _, err := st.CreateAudit(cmd.Context(), auditID); err != nil {
				return fmt.Errorf("create audit: %w", err)
			}

			runner, err := parserunner.New(cfg.Pipeline.ParseTimeoutSeconds, logger)
			if err != nil {
				return fmt.Errorf("initialize parser: %w", err)
			}
			completer := claude.NewClient(claude.Config{
				APIKey:         cfg.Claude.APIKey,
				BaseURL:        cfg.Claude.BaseURL,
				Model:          cfg.Claude.Model,
				TimeoutSeconds: cfg.Claude.TimeoutSeconds,
				MaxRetries:     cfg.Claude.MaxRetries,
			})

			orchestrator := pipeline.New(cfg, st, runner, completer, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Audit %s started (%d documents)\n", auditID, len(paths))

			if err := orchestrator.ProcessAudit(cmd.Context(), auditID, paths); err != nil {
				return fmt.Errorf("audit %s failed: %w", auditID, err)
			}

			record, err := st.GetAudit(cmd.Context(), auditID)
			if err != nil {
				return fmt.Errorf("load audit: %w", err)
			}
			printAuditSummary(out, record)
			if record != nil && record.State == audit.StateNeedsReview {
				fmt.Fprintln(out, "Manual review required. Run `capaudit status "+auditID+"` for details.")
			}
			return nil
		},
	}
	return cmd
}
