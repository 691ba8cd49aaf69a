package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/config"
	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rocmdev/rocmdev/pkg/stores"
)

const (
	factsNamespace = "host"
	factsKey       = "facts"
	factsTTL       = 5 * time.Minute
)

func newFactsCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Inspect the host without changing it",
		Long: `Probe the local host and print the observed state.

Observations cover:
  - Package manager family and distro identifiers
  - Invoking user identity and render/video group GIDs
  - GPU driver state (kernel module, /dev/kfd, render nodes)
  - Membership in the render, video and docker groups
  - Presence of rocminfo, docker and code on PATH

Observations are cached for a few minutes to keep repeated invocations
cheap; --refresh forces a fresh probe. Plan and provision always probe
fresh. The probe never mutates the host and never fails on a missing
capability; unsupported environments come back as observations.`,
		Example: `  # Human-readable summary
  rocmdev facts

  # Bypass the cache, machine-readable output
  rocmdev facts --refresh --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			facts, err := cachedFacts(ctx, cfg, refresh)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(facts)
			}

			fmt.Printf("Package family:  %s (%s/%s)\n",
				facts.Profile.PackageFamily, facts.Profile.DistroID, facts.Profile.OSCodename)
			fmt.Printf("User:            %s (uid=%d gid=%d)\n",
				facts.Identity.Username, facts.Identity.UID, facts.Identity.GID)
			fmt.Printf("Driver ready:    %v (module=%v kfd=%v render_node=%v)\n",
				facts.Driver.Ready(), facts.Driver.ModuleLoaded,
				facts.Driver.KFDPresent, facts.Driver.RenderNodePresent)
			fmt.Printf("Groups:          %s\n", formatBoolMap(facts.Groups))
			fmt.Printf("Commands:        %s\n", formatBoolMap(facts.Commands))

			log.Debug().Time("collected_at", facts.CollectedAt).Msg("Probe complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "probe fresh instead of using cached observations")
	return cmd
}

// cachedFacts returns recent cached observations, probing fresh on a miss or
// when refresh is set. The cache lives in the run journal; an unavailable
// journal degrades to an uncached probe.
func cachedFacts(ctx context.Context, cfg *config.Config, refresh bool) (*probe.Facts, error) {
	journal, err := openJournal(ctx, cfg.JournalPath)
	if err != nil {
		log.Debug().Err(err).Msg("Facts cache unavailable, probing fresh")
		return collectFacts(ctx)
	}
	defer journal.Close()

	if !refresh {
		if cached, err := journal.GetFact(ctx, factsNamespace, factsKey); err == nil {
			facts := &probe.Facts{}
			if err := json.Unmarshal([]byte(cached.Value), facts); err == nil {
				log.Debug().Time("collected_at", facts.CollectedAt).Msg("Using cached observations")
				return facts, nil
			}
		}
	}

	facts, err := collectFacts(ctx)
	if err != nil {
		return nil, err
	}
	storeFacts(ctx, journal, facts)
	return facts, nil
}

// storeFacts caches the observations. Cache failures are warnings only.
func storeFacts(ctx context.Context, journal *stores.SQLiteStore, facts *probe.Facts) {
	value, err := json.Marshal(facts)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode observations for caching")
		return
	}

	now := time.Now()
	expires := now.Add(factsTTL)
	err = journal.UpsertFact(ctx, &stores.Fact{
		ID:        uuid.New().String(),
		Namespace: factsNamespace,
		Key:       factsKey,
		Value:     string(value),
		TTL:       int(factsTTL.Seconds()),
		ExpiresAt: &expires,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cache observations")
		return
	}
	if _, err := journal.DeleteExpiredFacts(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to prune expired cached observations")
	}
}

// formatBoolMap renders a presence map as "a=yes b=no" in stable order.
func formatBoolMap(m map[string]bool) string {
	out := ""
	for _, key := range sortedKeys(m) {
		state := "no"
		if m[key] {
			state = "yes"
		}
		if out != "" {
			out += "  "
		}
		out += fmt.Sprintf("%s=%s", key, state)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
