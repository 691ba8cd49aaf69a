// Package config loads and validates the rocmdev configuration. Defaults
// cover the common case; a YAML file overlays them, and command-line flags
// overlay the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rocmdev/rocmdev/pkg/rocmver"
	"github.com/rocmdev/rocmdev/pkg/telemetry"
)

// Version policy constants. The minimum is the floor below which known
// incompatibilities exist; requests under it fall back to the default.
const (
	MinimumVersion   = "6.4"
	DefaultVersion   = "6.4.3"
	PreferredLatest  = "7.0"
	DefaultIndexURL  = "https://repo.radeon.com/rocm/apt/"
	DefaultBaseImage = "rocm/pytorch"
)

// VersionConfig holds the version resolution policy.
type VersionConfig struct {
	// Requested is an explicit pin ("6.4.2"), "latest", or empty for the
	// default.
	Requested string `yaml:"requested" validate:"omitempty"`

	// Minimum is the supported floor.
	Minimum string `yaml:"minimum" validate:"required"`

	// Default is used when nothing is requested or a request falls below
	// the floor.
	Default string `yaml:"default" validate:"required"`

	// PreferredLatest is the series tried first when "latest" is requested.
	PreferredLatest string `yaml:"preferred_latest" validate:"required"`

	// IndexURL is the package index scraped for available versions.
	IndexURL string `yaml:"index_url" validate:"required,url"`
}

// EditorConfig holds editor provisioning options.
type EditorConfig struct {
	// Install controls whether the editor is installed on the host.
	Install bool `yaml:"install"`

	// Extensions are recommended to the container editor.
	Extensions []string `yaml:"extensions"`
}

// ContainerConfig holds artifact generation options.
type ContainerConfig struct {
	// OutputDir is where the artifacts are written.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// BaseImage is the image repository for the generated recipe.
	BaseImage string `yaml:"base_image" validate:"required"`

	// ShmSize is the container shared-memory size.
	ShmSize string `yaml:"shm_size" validate:"required"`
}

// Config is the full rocmdev configuration.
type Config struct {
	// Scope selects what to reconcile: host, container, or all.
	Scope string `yaml:"scope" validate:"required,oneof=host container all"`

	// Force re-applies resources whose observed state already matches.
	Force bool `yaml:"force"`

	// SkipDriver leaves the kernel driver untouched.
	SkipDriver bool `yaml:"skip_driver"`

	// Version is the version resolution policy.
	Version VersionConfig `yaml:"version"`

	// Editor holds editor provisioning options.
	Editor EditorConfig `yaml:"editor"`

	// Container holds artifact generation options.
	Container ContainerConfig `yaml:"container"`

	// JournalPath is the SQLite run journal location.
	JournalPath string `yaml:"journal_path" validate:"required"`

	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `yaml:"logging"`

	// Metrics configures the metrics textfile export.
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scope: "all",
		Version: VersionConfig{
			Minimum:         MinimumVersion,
			Default:         DefaultVersion,
			PreferredLatest: PreferredLatest,
			IndexURL:        DefaultIndexURL,
		},
		Editor: EditorConfig{
			Install: true,
			Extensions: []string{
				"ms-python.python",
				"ms-toolsai.jupyter",
			},
		},
		Container: ContainerConfig{
			OutputDir: ".devcontainer",
			BaseImage: DefaultBaseImage,
			ShmSize:   "8g",
		},
		JournalPath: defaultJournalPath(),
		Logging: telemetry.LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:   true,
			Namespace: "rocmdev",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the version policy coherence.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	minimum, err := rocmver.Parse(c.Version.Minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", c.Version.Minimum, err)
	}
	def, err := rocmver.Parse(c.Version.Default)
	if err != nil {
		return fmt.Errorf("invalid default version %q: %w", c.Version.Default, err)
	}
	if _, err := rocmver.Parse(c.Version.PreferredLatest); err != nil {
		return fmt.Errorf("invalid preferred latest version %q: %w", c.Version.PreferredLatest, err)
	}

	// The fallback target must itself satisfy the floor, otherwise the
	// below-floor fallback could never terminate in a supported version.
	if !def.AtLeast(minimum) {
		return fmt.Errorf("default version %s is below the minimum %s", c.Version.Default, c.Version.Minimum)
	}

	if c.Version.Requested != "" && c.Version.Requested != "latest" {
		if _, err := rocmver.Parse(c.Version.Requested); err != nil {
			return fmt.Errorf("invalid requested version %q: %w", c.Version.Requested, err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}

	return nil
}

// VersionSpec builds the resolver input from the version policy.
func (c *Config) VersionSpec() rocmver.Spec {
	spec := rocmver.Spec{
		Minimum:         c.Version.Minimum,
		Default:         c.Version.Default,
		PreferredLatest: c.Version.PreferredLatest,
	}

	switch c.Version.Requested {
	case "":
		spec.Requested = rocmver.RequestDefault
	case "latest":
		spec.Requested = rocmver.RequestLatest
	default:
		spec.Requested = rocmver.RequestExplicit
		spec.Explicit = c.Version.Requested
	}

	return spec
}

// defaultJournalPath places the journal under the XDG state directory.
func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rocmdev.db"
	}
	return filepath.Join(home, ".local", "state", "rocmdev", "rocmdev.db")
}
