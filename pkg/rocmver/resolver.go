package rocmver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Request selects how the target version is chosen.
type Request string

const (
	// RequestExplicit pins an exact version. It dominates every other
	// resolution path unconditionally.
	RequestExplicit Request = "explicit"

	// RequestLatest asks for the newest release the remote index offers.
	RequestLatest Request = "latest"

	// RequestDefault uses the configured default version without touching
	// the network.
	RequestDefault Request = "default"
)

// Spec describes the requested version and the bounds resolution must honor.
type Spec struct {
	// Requested selects the resolution path.
	Requested Request `json:"requested"`

	// Explicit is the pinned version when Requested is RequestExplicit.
	Explicit string `json:"explicit,omitempty"`

	// Minimum is the lowest series the resolver may return.
	Minimum string `json:"minimum"`

	// Default is the fallback version. It must satisfy Minimum; config
	// validation enforces this so the exhaustion path is unreachable.
	Default string `json:"default"`

	// PreferredLatest is the series tried first when Requested is
	// RequestLatest, before the generic "latest" alias and the index scrape.
	PreferredLatest string `json:"preferred_latest,omitempty"`
}

// Resolved is the outcome of version resolution.
type Resolved struct {
	// Version is the concrete resolved version.
	Version Version `json:"version"`

	// Series is the major.minor identifier of Version.
	Series string `json:"series"`

	// FallbackUsed indicates the requested version could not be honored and
	// the configured default was substituted.
	FallbackUsed bool `json:"fallback_used"`
}

// ErrUnresolvable is returned only when every resolution path, including the
// configured default, fails to satisfy the minimum floor. Config validation
// makes this unreachable in practice; any occurrence is an implementation bug
// and is surfaced loudly rather than masked.
var ErrUnresolvable = errors.New("no resolvable version satisfies the minimum floor")

// IndexClient queries the remote version index. All methods are best-effort:
// a returned error means "this path is unavailable" and triggers the next
// fallback, never a hard failure.
type IndexClient interface {
	// SeriesExists reports whether the index publishes the given series.
	SeriesExists(ctx context.Context, series string) (bool, error)

	// LatestAlias resolves the index's "latest" alias to a concrete version.
	LatestAlias(ctx context.Context) (Version, error)

	// ListVersions returns every version the index publishes.
	ListVersions(ctx context.Context) ([]Version, error)
}

// Resolver resolves a Spec against a remote index.
type Resolver struct {
	index IndexClient
	log   zerolog.Logger
}

// NewResolver creates a resolver backed by the given index client.
func NewResolver(index IndexClient, logger zerolog.Logger) *Resolver {
	return &Resolver{
		index: index,
		log:   logger.With().Str("component", "rocmver").Logger(),
	}
}

// Resolve resolves the spec to a single concrete version.
//
// Resolution order: an explicit pin dominates unconditionally; "latest" tries
// the preferred series, then the index's latest alias, then an index scrape
// picking the highest version; otherwise the configured default is used.
// After any path, a result below the minimum floor is discarded in favor of
// the default with a warning rather than an error.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (Resolved, error) {
	minimum, err := Parse(spec.Minimum)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid minimum version %q: %w", spec.Minimum, err)
	}

	def, err := Parse(spec.Default)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid default version %q: %w", spec.Default, err)
	}

	candidate, fromFallback, err := r.candidate(ctx, spec, def)
	if err != nil {
		return Resolved{}, err
	}

	// Floor enforcement: compare on the major.minor series.
	if !candidate.SeriesVersion().AtLeast(minimum.SeriesVersion()) {
		r.log.Warn().
			Str("requested", candidate.String()).
			Str("minimum", spec.Minimum).
			Str("substituted", def.String()).
			Msg("Requested version is below the supported floor, substituting default")

		candidate = def
		fromFallback = true
	}

	if !candidate.SeriesVersion().AtLeast(minimum.SeriesVersion()) {
		// The default itself violates the floor. Config validation forbids
		// this, so reaching here means a bug, not an environment problem.
		return Resolved{}, fmt.Errorf("default %s is below minimum %s: %w",
			def, spec.Minimum, ErrUnresolvable)
	}

	resolved := Resolved{
		Version:      candidate,
		Series:       candidate.Series(),
		FallbackUsed: fromFallback,
	}

	r.log.Info().
		Str("version", resolved.Version.String()).
		Str("series", resolved.Series).
		Bool("fallback_used", resolved.FallbackUsed).
		Msg("Resolved target version")

	return resolved, nil
}

// candidate picks the pre-floor candidate version for the spec.
func (r *Resolver) candidate(ctx context.Context, spec Spec, def Version) (Version, bool, error) {
	switch spec.Requested {
	case RequestExplicit:
		v, err := Parse(spec.Explicit)
		if err != nil {
			return Version{}, false, fmt.Errorf("invalid explicit version %q: %w", spec.Explicit, err)
		}
		return v, false, nil

	case RequestLatest:
		if v, ok := r.resolveLatest(ctx, spec); ok {
			return v, false, nil
		}
		r.log.Warn().
			Str("default", def.String()).
			Msg("All latest-version probes failed, falling back to default")
		return def, true, nil

	default:
		return def, false, nil
	}
}

// resolveLatest walks the latest-resolution fallback chain. Every remote
// failure degrades to the next path.
func (r *Resolver) resolveLatest(ctx context.Context, spec Spec) (Version, bool) {
	if spec.PreferredLatest != "" {
		preferred, err := Parse(spec.PreferredLatest)
		if err == nil {
			exists, probeErr := r.index.SeriesExists(ctx, preferred.Series())
			if probeErr != nil {
				r.log.Warn().Err(probeErr).
					Str("series", preferred.Series()).
					Msg("Preferred series probe failed, trying latest alias")
			} else if exists {
				return preferred, true
			}
		} else {
			r.log.Warn().Err(err).
				Str("preferred", spec.PreferredLatest).
				Msg("Ignoring unparseable preferred series")
		}
	}

	if v, err := r.index.LatestAlias(ctx); err == nil {
		return v, true
	} else {
		r.log.Warn().Err(err).Msg("Latest alias probe failed, scraping index listing")
	}

	versions, err := r.index.ListVersions(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Index listing scrape failed")
		return Version{}, false
	}
	if len(versions) == 0 {
		return Version{}, false
	}

	highest := versions[0]
	for _, v := range versions[1:] {
		if v.Compare(highest) > 0 {
			highest = v
		}
	}
	return highest, true
}
