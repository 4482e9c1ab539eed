package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"capaudit/internal/audit"
	"capaudit/internal/tieout"
)

func newTieoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tieout <audit-id> <carta.xlsx>",
		Short: "Reconcile an audit's cap table against a Carta export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			auditID := args[0]
			record, err := st.GetAudit(cmd.Context(), auditID)
			if err != nil {
				return fmt.Errorf("load audit: %w", err)
			}
			if record == nil {
				return fmt.Errorf("audit %s not found", auditID)
			}
			if record.Results == nil || len(record.Results.CapTable) == 0 {
				return fmt.Errorf("audit %s has no generated cap table to reconcile", auditID)
			}

			out := cmd.OutOrStdout()
			table, err := tieout.ParseCarta(args[1])
			if err != nil || len(table.Shareholders) == 0 {
				appendErr := st.AppendIssues(cmd.Context(), auditID, []audit.Issue{{
					Severity:    audit.SeverityWarning,
					Category:    "Cap Table Tie-Out",
					Description: "Uploaded cap table could not be parsed. Ensure it is a standard Carta export (.xlsx).",
				}})
				if appendErr != nil {
					return fmt.Errorf("record tie-out failure: %w", appendErr)
				}
				fmt.Fprintln(out, "Cap table could not be parsed; a warning was recorded on the audit.")
				return nil
			}

			thresholds := tieout.Thresholds{
				NameMatchThreshold: cfg.TieOut.NameMatchThreshold,
				NameMatchMargin:    cfg.TieOut.NameMatchMargin,
				ShareTolerance:     cfg.TieOut.ShareTolerance,
			}
			discrepancies := tieout.Compare(table.Shareholders, record.Results.CapTable, thresholds)
			if len(discrepancies) == 0 {
				verified := []audit.Issue{{
					Severity: audit.SeverityInfo,
					Category: "Cap Table Tie-Out",
					Description: fmt.Sprintf("Carta matches source documents. All %d shareholders verified.",
						len(table.Shareholders)),
				}}
				if err := st.AppendIssues(cmd.Context(), auditID, verified); err != nil {
					return fmt.Errorf("record tie-out result: %w", err)
				}
				fmt.Fprintf(out, "Tie-out clean: all %d shareholders verified.\n", len(table.Shareholders))
				return nil
			}

			if err := st.AppendIssues(cmd.Context(), auditID, discrepancies); err != nil {
				return fmt.Errorf("record tie-out discrepancies: %w", err)
			}
			fmt.Fprintf(out, "Tie-out found %d discrepancies:\n", len(discrepancies))
			for _, issue := range discrepancies {
				fmt.Fprintf(out, "  [%s] %s\n", issue.Severity, issue.Description)
			}
			return nil
		},
	}
}
