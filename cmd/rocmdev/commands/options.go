package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rocmdev/rocmdev/pkg/config"
	"github.com/rocmdev/rocmdev/pkg/devcontainer"
	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rocmdev/rocmdev/pkg/reconcile"
	"github.com/rocmdev/rocmdev/pkg/rocmver"
)

// runOptions are the reconciliation flags shared by plan, provision and
// generate. Flags overlay the config file, which overlays the defaults.
type runOptions struct {
	scope       string
	rocmVersion string
	force       bool
	skipDriver  bool
	outputDir   string
	noEditor    bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.scope, "scope", "", "what to reconcile: host, container, or all")
	cmd.Flags().StringVar(&o.rocmVersion, "rocm-version", "", `target version: an explicit pin (e.g. "6.4.2"), "latest", or empty for the default`)
	cmd.Flags().BoolVar(&o.force, "force", false, "re-apply resources that already match the desired state")
	cmd.Flags().BoolVar(&o.skipDriver, "skip-driver", false, "leave the kernel driver untouched")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "", "directory for generated artifacts")
	cmd.Flags().BoolVar(&o.noEditor, "no-editor", false, "do not install the editor on the host")
}

// loadConfig loads the configuration and overlays the flags that were set.
func (o *runOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("scope") {
		cfg.Scope = o.scope
	}
	if flags.Changed("rocm-version") {
		cfg.Version.Requested = o.rocmVersion
	}
	if flags.Changed("force") {
		cfg.Force = o.force
	}
	if flags.Changed("skip-driver") {
		cfg.SkipDriver = o.skipDriver
	}
	if flags.Changed("output-dir") {
		cfg.Container.OutputDir = o.outputDir
	}
	if flags.Changed("no-editor") {
		cfg.Editor.Install = !o.noEditor
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveVersion resolves the configured version policy against the remote
// index.
func resolveVersion(ctx context.Context, cfg *config.Config) (rocmver.Resolved, error) {
	resolver := rocmver.NewResolver(rocmver.NewHTTPIndex(cfg.Version.IndexURL), log.Logger)
	return resolver.Resolve(ctx, cfg.VersionSpec())
}

// collectFacts probes the local host.
func collectFacts(ctx context.Context) (*probe.Facts, error) {
	prober := probe.NewProber(probe.NewExecRunner(), log.Logger)
	return prober.Probe(ctx)
}

// containerUserQuerier looks up a user inside a container image.
type containerUserQuerier interface {
	ContainerUserAt(ctx context.Context, image string, uid int) (*probe.ContainerUser, error)
}

// lookupContainerUser queries the base image for an existing user at the
// host UID so the generated recipe can reuse that identity. It runs the
// image, so only commands that write artifacts call it; plan stays
// read-only. Any failure degrades to creating a fresh identity.
func lookupContainerUser(ctx context.Context, querier containerUserQuerier, cfg *config.Config, facts *probe.Facts, version rocmver.Version) *probe.ContainerUser {
	if !facts.Commands["docker"] {
		return nil
	}

	image := fmt.Sprintf("%s:%s", cfg.Container.BaseImage, devcontainer.DeriveTag(version))
	existing, err := querier.ContainerUserAt(ctx, image, facts.Identity.UID)
	if err != nil {
		log.Debug().Err(err).Msg("No reusable user in base image, generating a fresh identity")
		return nil
	}
	return existing
}

// newEmitter builds the artifact emitter for the resolved version.
func newEmitter(cfg *config.Config, facts *probe.Facts, version rocmver.Version, existing *probe.ContainerUser) *devcontainer.Emitter {
	inputs := devcontainer.Inputs{
		Version:      version,
		BaseImage:    cfg.Container.BaseImage,
		Identity:     facts.Identity,
		ShmSize:      cfg.Container.ShmSize,
		Extensions:   cfg.Editor.Extensions,
		ExistingUser: existing,
	}

	return devcontainer.NewEmitter(cfg.Container.OutputDir, cfg.Force, inputs, log.Logger)
}

// buildPlan computes the reconciliation plan from the observed facts.
func buildPlan(cfg *config.Config, facts *probe.Facts, series string, emitter *devcontainer.Emitter) *reconcile.Plan {
	var artifacts []reconcile.ArtifactObservation
	for _, name := range emitter.Artifacts() {
		artifacts = append(artifacts, reconcile.ArtifactObservation{
			Name:   name,
			Exists: emitter.Exists(name),
		})
	}

	return reconcile.BuildPlan(reconcile.PlanInput{
		Facts:         facts,
		Series:        series,
		Scope:         reconcile.Scope(cfg.Scope),
		Force:         cfg.Force,
		SkipDriver:    cfg.SkipDriver,
		InstallEditor: cfg.Editor.Install,
		Artifacts:     artifacts,
	})
}
