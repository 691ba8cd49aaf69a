package probe

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RequiredGroups are the system groups the invoking user needs for GPU and
// container access.
var RequiredGroups = []string{"render", "video", "docker"}

// driverModules are the kernel module names checked by substring match
// against /proc/modules.
var driverModules = []string{"amdgpu"}

// probedCommands are the binaries whose presence downstream reconciliation
// decisions depend on.
var probedCommands = []string{"rocminfo", "docker", "code"}

const (
	kfdDevicePath   = "/dev/kfd"
	renderNodeGlob  = "/dev/dri/renderD*"
	osReleasePath   = "/etc/os-release"
	procModulesPath = "/proc/modules"
)

// Prober inspects the local host. All system access goes through the runner
// and the file-system hooks so observations can be faked in tests.
type Prober struct {
	runner CommandRunner
	log    zerolog.Logger

	readFile    func(string) ([]byte, error)
	glob        func(string) ([]string, error)
	pathExists  func(string) bool
	currentUser func() (*user.User, error)
	lookupGroup func(string) (*user.Group, error)
}

// NewProber creates a prober for the local host.
func NewProber(runner CommandRunner, logger zerolog.Logger) *Prober {
	return &Prober{
		runner:      runner,
		log:         logger.With().Str("component", "probe").Logger(),
		readFile:    os.ReadFile,
		glob:        filepath.Glob,
		pathExists:  pathExists,
		currentUser: user.Current,
		lookupGroup: user.LookupGroup,
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Probe gathers the full observed host state. It never mutates the host and
// never fails on a missing capability: unsupported or partially installed
// environments come back as observations, not errors.
func (p *Prober) Probe(ctx context.Context) (*Facts, error) {
	profile := p.detectProfile()

	identity, err := p.detectIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to capture host identity: %w", err)
	}

	facts := &Facts{
		Profile:     profile,
		Identity:    identity,
		Driver:      p.observeDriver(),
		Groups:      p.observeGroups(ctx, identity.Username),
		Commands:    p.observeCommands(),
		CollectedAt: time.Now(),
	}

	p.log.Info().
		Str("package_family", string(profile.PackageFamily)).
		Str("distro", profile.DistroID).
		Str("codename", profile.OSCodename).
		Int("uid", identity.UID).
		Bool("driver_ready", facts.Driver.Ready()).
		Msg("Host probe complete")

	return facts, nil
}

// detectProfile detects the package manager family and OS identifiers.
// Detection order is apt, dnf, zypper; none disables host mutation downstream.
func (p *Prober) detectProfile() HostProfile {
	profile := HostProfile{PackageFamily: FamilyNone}

	for _, family := range []PackageFamily{FamilyApt, FamilyDnf, FamilyZypper} {
		if _, err := p.runner.LookPath(string(family)); err == nil {
			profile.PackageFamily = family
			break
		}
	}

	if profile.PackageFamily == FamilyNone {
		p.log.Warn().Msg("No supported package manager found; host install steps will be skipped")
	}

	data, err := p.readFile(osReleasePath)
	if err != nil {
		p.log.Warn().Err(err).Msg("Could not read os-release")
		return profile
	}

	profile.DistroID, profile.OSCodename = parseOSRelease(string(data))
	return profile
}

// parseOSRelease extracts the distro ID and version codename from os-release
// content. The Ubuntu codename field is used as a fallback for derivatives
// that omit VERSION_CODENAME.
func parseOSRelease(content string) (distroID, codename string) {
	var ubuntuCodename string

	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)

		switch key {
		case "ID":
			distroID = value
		case "VERSION_CODENAME":
			codename = value
		case "UBUNTU_CODENAME":
			ubuntuCodename = value
		}
	}

	if codename == "" {
		codename = ubuntuCodename
	}
	return distroID, codename
}

// detectIdentity captures the invoking user's numeric identity and the
// numeric GIDs of the render and video groups when they exist.
func (p *Prober) detectIdentity() (HostIdentity, error) {
	current, err := p.currentUser()
	if err != nil {
		return HostIdentity{}, err
	}

	uid, err := strconv.Atoi(current.Uid)
	if err != nil {
		return HostIdentity{}, fmt.Errorf("non-numeric uid %q", current.Uid)
	}
	gid, err := strconv.Atoi(current.Gid)
	if err != nil {
		return HostIdentity{}, fmt.Errorf("non-numeric gid %q", current.Gid)
	}

	identity := HostIdentity{
		UID:      uid,
		GID:      gid,
		Username: current.Username,
	}

	identity.RenderGID = p.numericGroupID("render")
	identity.VideoGID = p.numericGroupID("video")

	return identity, nil
}

// numericGroupID resolves a group name to its numeric GID, or nil when the
// group does not exist or cannot be parsed. Downstream consumers fall back to
// well-known names when detection failed.
func (p *Prober) numericGroupID(name string) *int {
	group, err := p.lookupGroup(name)
	if err != nil {
		p.log.Warn().Str("group", name).Msg("Group not present in group database")
		return nil
	}

	gid, err := strconv.Atoi(group.Gid)
	if err != nil {
		p.log.Warn().Str("group", name).Str("gid", group.Gid).Msg("Non-numeric GID in group database")
		return nil
	}
	return &gid
}

// observeDriver checks kernel module and device-node presence. The two are
// independent; each mismatch produces its own warning.
func (p *Prober) observeDriver() DriverObservation {
	obs := DriverObservation{
		KFDPresent: p.pathExists(kfdDevicePath),
	}

	if nodes, err := p.glob(renderNodeGlob); err == nil && len(nodes) > 0 {
		obs.RenderNodePresent = true
	}

	if data, err := p.readFile(procModulesPath); err == nil {
		content := string(data)
		for _, module := range driverModules {
			if strings.Contains(content, module) {
				obs.ModuleLoaded = true
				break
			}
		}
	} else {
		p.log.Warn().Err(err).Msg("Could not read kernel module list")
	}

	if obs.ModuleLoaded && !obs.KFDPresent {
		p.log.Warn().Msg("GPU kernel module is loaded but /dev/kfd is missing")
	}
	if !obs.ModuleLoaded && (obs.KFDPresent || obs.RenderNodePresent) {
		p.log.Warn().Msg("GPU device nodes exist but the kernel module is not loaded")
	}

	return obs
}

// observeGroups reports the invoking user's membership in each required
// group. A failed lookup is treated as not-a-member, which triggers an
// add-to-group action downstream, never an error.
func (p *Prober) observeGroups(ctx context.Context, username string) map[string]bool {
	membership := make(map[string]bool, len(RequiredGroups))
	for _, g := range RequiredGroups {
		membership[g] = false
	}

	out, err := p.runner.Run(ctx, "id", "-nG", username)
	if err != nil {
		p.log.Warn().Err(err).Msg("Could not list group memberships")
		return membership
	}

	for _, g := range strings.Fields(out) {
		if _, required := membership[g]; required {
			membership[g] = true
		}
	}
	return membership
}

// observeCommands checks PATH presence for the binaries reconciliation
// depends on.
func (p *Prober) observeCommands() map[string]bool {
	present := make(map[string]bool, len(probedCommands))
	for _, name := range probedCommands {
		_, err := p.runner.LookPath(name)
		present[name] = err == nil
	}
	return present
}
