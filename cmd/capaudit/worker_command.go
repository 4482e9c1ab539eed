package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"capaudit/internal/parserunner"
)

// newParseWorkerCommand is the hidden subcommand the pipeline re-executes to
// parse one document in an isolated process.
func newParseWorkerCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:         parserunner.WorkerCommand,
		Hidden:      true,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			return parserunner.RunWorker(file, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Document to parse")
	return cmd
}
