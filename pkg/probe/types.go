// Package probe inspects the host to build the observed-state snapshot the
// reconciler plans against. Probing is side-effect-free: it reads
// /etc/os-release, /proc/modules and /dev, checks binaries on PATH, and
// queries the group database. Every observation is derived fresh each run;
// the live host is always the source of truth.
package probe

import "time"

// PackageFamily identifies the host's package manager family.
type PackageFamily string

const (
	// FamilyApt covers Debian and Ubuntu hosts.
	FamilyApt PackageFamily = "apt"

	// FamilyDnf covers Fedora and RHEL hosts.
	FamilyDnf PackageFamily = "dnf"

	// FamilyZypper covers openSUSE hosts.
	FamilyZypper PackageFamily = "zypper"

	// FamilyNone indicates no supported package manager was found. All
	// host-mutating stages downgrade to warnings; artifact generation still
	// runs.
	FamilyNone PackageFamily = "none"
)

// HostProfile describes the host OS. Created once per run, immutable
// afterward.
type HostProfile struct {
	// PackageFamily is the detected package manager family.
	PackageFamily PackageFamily `json:"package_family"`

	// DistroID is the os-release ID field (e.g. "ubuntu").
	DistroID string `json:"distro_id"`

	// OSCodename is the os-release version codename (e.g. "noble").
	OSCodename string `json:"os_codename"`
}

// HostIdentity captures the invoking user's numeric identity. The template
// emitter binds container user and group mappings to these values so
// bind-mounted files remain writable. Captured once at run start, read-only
// afterward.
type HostIdentity struct {
	// UID is the invoking user's numeric user ID.
	UID int `json:"uid"`

	// GID is the invoking user's primary group ID.
	GID int `json:"gid"`

	// Username is the invoking user's login name.
	Username string `json:"username"`

	// RenderGID is the numeric GID of the render group, when it exists.
	RenderGID *int `json:"render_gid,omitempty"`

	// VideoGID is the numeric GID of the video group, when it exists.
	VideoGID *int `json:"video_gid,omitempty"`
}

// DriverObservation reports GPU driver presence. Module and device-node
// checks are independent booleans: either one present without the other is a
// valid, non-fatal observation that produces its own warning.
type DriverObservation struct {
	// ModuleLoaded indicates the amdgpu kernel module is loaded.
	ModuleLoaded bool `json:"module_loaded"`

	// KFDPresent indicates the /dev/kfd compute node exists.
	KFDPresent bool `json:"kfd_present"`

	// RenderNodePresent indicates at least one /dev/dri/renderD* node exists.
	RenderNodePresent bool `json:"render_node_present"`
}

// Ready reports whether the full driver stack is observable.
func (d DriverObservation) Ready() bool {
	return d.ModuleLoaded && d.KFDPresent && d.RenderNodePresent
}

// ContainerUser describes a user already defined in a container base image.
type ContainerUser struct {
	// Name is the user's login name inside the image.
	Name string `json:"name"`

	// UID is the user's numeric ID inside the image.
	UID int `json:"uid"`

	// GID is the user's primary group ID inside the image.
	GID int `json:"gid"`
}

// Facts is the complete observed host state for one run.
type Facts struct {
	// Profile describes the host OS and package manager.
	Profile HostProfile `json:"profile"`

	// Identity is the invoking user's numeric identity.
	Identity HostIdentity `json:"identity"`

	// Driver reports GPU driver and device-node presence.
	Driver DriverObservation `json:"driver"`

	// Groups maps each required group name to the invoking user's
	// membership in it.
	Groups map[string]bool `json:"groups"`

	// Commands maps probed binaries (rocminfo, docker, code) to their
	// presence on PATH.
	Commands map[string]bool `json:"commands"`

	// CollectedAt is when the facts were gathered.
	CollectedAt time.Time `json:"collected_at"`
}
