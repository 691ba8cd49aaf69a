package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what provision would do, without doing it",
		Long: `Probe the host, resolve the target ROCm version, and print the decided
action for every managed resource.

The plan is computed from fresh observations each time; nothing is cached
across runs and nothing on the host is changed.`,
		Example: `  # Plan for the default version
  rocmdev plan

  # Plan a pinned version, host resources only
  rocmdev plan --rocm-version 6.4.2 --scope host

  # See what force would re-apply
  rocmdev plan --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			facts, err := collectFacts(ctx)
			if err != nil {
				return err
			}

			resolved, err := resolveVersion(ctx, cfg)
			if err != nil {
				return err
			}
			if resolved.FallbackUsed {
				log.Warn().
					Str("version", resolved.Version.String()).
					Msg("Requested version could not be honored, planning against the default")
			}

			emitter := newEmitter(cfg, facts, resolved.Version, nil)
			plan := buildPlan(cfg, facts, resolved.Series, emitter)

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(plan)
			}

			fmt.Println(renderPlan(plan))
			return nil
		},
	}

	opts.bind(cmd)
	return cmd
}
