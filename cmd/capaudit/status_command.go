package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"capaudit/internal/audit"
	"capaudit/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [audit-id]",
		Short: "Show audit status and results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				audits, err := st.ListAudits(cmd.Context())
				if err != nil {
					return fmt.Errorf("list audits: %w", err)
				}
				printAuditList(out, audits)
				return nil
			}

			record, err := st.GetAudit(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load audit: %w", err)
			}
			if record == nil {
				return fmt.Errorf("audit %s not found", args[0])
			}
			printAuditDetail(out, record)
			return nil
		},
	}
}

func printAuditList(out io.Writer, audits []*audit.Audit) {
	if len(audits) == 0 {
		fmt.Fprintln(out, "No audits found")
		return
	}
	rows := make([][]string, 0, len(audits))
	for _, record := range audits {
		company := record.CompanyName
		if company == "" {
			company = "-"
		}
		rows = append(rows, []string{
			record.ID,
			company,
			string(record.State),
			record.Progress,
			record.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Company", "State", "Progress", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func printAuditSummary(out io.Writer, record *audit.Audit) {
	if record == nil {
		return
	}
	fmt.Fprintf(out, "Audit %s: %s\n", record.ID, record.State)
	if record.CompanyName != "" {
		fmt.Fprintf(out, "Company: %s\n", record.CompanyName)
	}
	if record.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", record.ErrorMessage)
	}
	if record.Results != nil {
		fmt.Fprintf(out, "Documents: %d (%d failed), timeline events: %d, issues: %d\n",
			len(record.Results.Documents),
			len(record.Results.FailedDocuments),
			len(record.Results.Timeline),
			len(record.Results.Issues))
	}
}

func printAuditDetail(out io.Writer, record *audit.Audit) {
	printAuditSummary(out, record)
	if record.Results == nil {
		return
	}

	if len(record.Results.CapTable) > 0 {
		fmt.Fprintln(out, "\nCap table:")
		rows := make([][]string, 0, len(record.Results.CapTable))
		for _, entry := range record.Results.CapTable {
			rows = append(rows, []string{
				entry.Shareholder,
				entry.ShareClass,
				fmt.Sprintf("%.0f", entry.Shares),
				fmt.Sprintf("%.2f%%", entry.OwnershipPct),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Shareholder", "Class", "Shares", "Ownership"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		))
	}

	if len(record.Issues) > 0 {
		fmt.Fprintln(out, "\nIssues:")
		rows := make([][]string, 0, len(record.Issues))
		for _, issue := range record.Issues {
			rows = append(rows, []string{
				issue.Severity,
				issue.Category,
				textutil.Truncate(issue.Description, 100),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Severity", "Category", "Description"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
	}

	if record.QualityReport != nil && len(record.QualityReport.BlockingReasons) > 0 {
		fmt.Fprintln(out, "\nBlocking reasons:")
		for _, reason := range record.QualityReport.BlockingReasons {
			fmt.Fprintf(out, "  - %s\n", reason)
		}
	}
}
