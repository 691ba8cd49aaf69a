package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/config"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run journal",
		Long: `List past provisioning runs and their per-resource outcomes.

Every provision run is journaled locally with the action decided and the
outcome for each managed resource.`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List past runs",
		Example: `  # Most recent runs
  rocmdev runs list

  # More history, machine-readable
  rocmdev runs list --limit 50 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			journal, err := openJournal(ctx, cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("run journal unavailable: %w", err)
			}
			defer journal.Close()

			runs, err := journal.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Println("No runs journaled yet.")
				return nil
			}
			fmt.Println(renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show <run-id>",
		Short:   "Show the per-resource outcomes of one run",
		Args:    cobra.ExactArgs(1),
		Example: `  rocmdev runs show 6e9a1b2c-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			journal, err := openJournal(ctx, cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("run journal unavailable: %w", err)
			}
			defer journal.Close()

			run, err := journal.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			actions, err := journal.ListActionsByRun(ctx, run.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(struct {
					Run     any `json:"run"`
					Actions any `json:"actions"`
				}{run, actions})
			}

			fmt.Printf("Run %s: %s (ROCm %s, scope %s)\n\n", run.ID, run.Status, run.Version, run.Scope)
			for _, action := range actions {
				msg := ""
				if action.Message != nil {
					msg = *action.Message
				}
				fmt.Printf("  %-30s %-14s %-10s %s\n", action.Resource, action.Action, action.Status, msg)
			}
			return nil
		},
	}

	return cmd
}
