package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/devcontainer"
	"github.com/rocmdev/rocmdev/pkg/probe"
)

func newGenerateCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the devcontainer artifacts only",
		Long: `Render and write the artifact set (Dockerfile, devcontainer.json,
verify-gpu.py) without touching host packages.

Existing files are never overwritten unless --force is given; each file's
policy is evaluated independently, so a hand-edited Dockerfile does not
block regenerating the descriptor next to it.`,
		Example: `  # Generate into the default .devcontainer directory
  rocmdev generate

  # Regenerate everything, overwriting local edits
  rocmdev generate --force

  # Generate elsewhere for a specific version
  rocmdev generate --output-dir ./env --rocm-version 7.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Scope = "container"

			facts, err := collectFacts(ctx)
			if err != nil {
				return err
			}

			resolved, err := resolveVersion(ctx, cfg)
			if err != nil {
				return err
			}

			prober := probe.NewProber(probe.NewExecRunner(), log.Logger)
			existing := lookupContainerUser(ctx, prober, cfg, facts, resolved.Version)
			emitter := newEmitter(cfg, facts, resolved.Version, existing)
			results, err := emitter.EmitAll(ctx)
			if err != nil {
				return err
			}

			for _, result := range results {
				if result.Status == devcontainer.StatusWritten {
					fmt.Printf("  wrote   %s\n", result.Path)
				} else {
					fmt.Printf("  kept    %s (use --force to overwrite)\n", result.Path)
				}
			}

			log.Info().
				Str("version", resolved.Version.String()).
				Str("dir", cfg.Container.OutputDir).
				Msg("Artifact generation complete")
			return nil
		},
	}

	opts.bind(cmd)
	return cmd
}
