package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rocmdev/rocmdev/pkg/reconcile"
	"github.com/rocmdev/rocmdev/pkg/stores"
	"github.com/rocmdev/rocmdev/pkg/telemetry"
)

func newProvisionCommand() *cobra.Command {
	opts := &runOptions{}
	var yes bool
	var metricsPath string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Converge the host and generate the devcontainer",
		Long: `Probe the host, compute a reconciliation plan, and apply it.

Every action is idempotent: resources already in the desired state are
skipped, so re-running after an interruption resumes where the previous run
left off. Required resources (ROCm userland, Docker, artifacts) abort the
run when every install path fails; optional ones (driver, editor, groups)
degrade to a warning with the manual completion step.

Host mutation uses sudo when not running as root; sudo must be usable
non-interactively.`,
		Example: `  # Full provision with a confirmation prompt
  rocmdev provision

  # Non-interactive, pin the version
  rocmdev provision --yes --rocm-version 6.4.2

  # Host packages only, keep the current kernel driver
  rocmdev provision --scope host --skip-driver`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-file") {
				cfg.Metrics.TextfilePath = metricsPath
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
					Msg("Requested version could not be honored, provisioning the default")
			}

			prober := probe.NewProber(probe.NewExecRunner(), log.Logger)
			existing := lookupContainerUser(ctx, prober, cfg, facts, resolved.Version)
			emitter := newEmitter(cfg, facts, resolved.Version, existing)
			plan := buildPlan(cfg, facts, resolved.Series, emitter)

			fmt.Println(renderPlan(plan))

			if !yes && !confirm("Apply this plan?") {
				fmt.Println("Aborted.")
				return nil
			}

			metrics, err := telemetry.NewMetrics(cfg.Metrics)
			if err != nil {
				return err
			}

			applierCfg := reconcile.ApplierConfig{
				RunID:     uuid.New().String(),
				Runner:    probe.NewExecRunner(),
				Facts:     facts,
				Series:    resolved.Series,
				Artifacts: emitter,
				Metrics:   metrics,
				Logger:    log.Logger,
			}

			// The journal is an audit aid; losing it degrades, never blocks.
			journal, err := openJournal(ctx, cfg.JournalPath)
			if err != nil {
				log.Warn().Err(err).Msg("Run journal unavailable, continuing without it")
			} else {
				defer journal.Close()
				applierCfg.Journal = &journalRecorder{store: journal}
				beginRun(ctx, journal, applierCfg.RunID, cfg.Scope,
					resolved.Series, resolved.Version.String(), cfg.Force)
			}

			result, runErr := reconcile.NewApplier(applierCfg).Apply(ctx, plan)

			status := stores.RunStatusCompleted
			if runErr != nil {
				status = stores.RunStatusFailed
				if ctx.Err() != nil {
					status = stores.RunStatusCancelled
				}
			}
			if journal != nil {
				finishRun(ctx, journal, result.RunID, status, runErr)
			}

			metrics.RecordRunCompleted(string(status), result.Duration)
			if err := metrics.WriteTextfile(); err != nil {
				log.Warn().Err(err).Msg("Failed to export run metrics")
			}

			fmt.Println(renderResult(plan, result))
			return runErr
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without a confirmation prompt")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "export run metrics to this file in Prometheus text format")
	return cmd
}

// confirm prompts for a yes/no answer on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
