package reconcile

import (
	"context"
	"fmt"

	"github.com/rocmdev/rocmdev/pkg/probe"
)

// getDockerURL is the upstream convenience installer, used as the secondary
// path when no distro package for the engine can be installed.
const getDockerURL = "https://get.docker.com"

// sudo prefixes a command with sudo when not running as root. Host mutation
// requires privileges either way; sudo keeps the tool usable from a normal
// login session.
func (a *Applier) sudo(name string, args ...string) (string, []string) {
	if a.facts.Identity.UID == 0 {
		return name, args
	}
	return "sudo", append([]string{"-n", name}, args...)
}

// run executes a privileged host command.
func (a *Applier) run(ctx context.Context, name string, args ...string) error {
	cmd, cmdArgs := a.sudo(name, args...)
	_, err := a.runner.Run(ctx, cmd, cmdArgs...)
	return err
}

// refreshPackageIndex updates the package cache once per run for families
// that separate refresh from install.
func (a *Applier) refreshPackageIndex(ctx context.Context) error {
	if a.facts.Profile.PackageFamily != probe.FamilyApt || a.aptRefreshed {
		return nil
	}
	if err := a.run(ctx, "apt-get", "update"); err != nil {
		return NewRecoverableError("package index refresh failed", err)
	}
	a.aptRefreshed = true
	return nil
}

// installPackages installs packages through the detected family's manager.
func (a *Applier) installPackages(ctx context.Context, pkgs ...string) error {
	if err := a.refreshPackageIndex(ctx); err != nil {
		// A stale index is recoverable; the install below may still succeed.
		a.log.Warn().Err(err).Msg("Continuing with a stale package index")
	}

	var name string
	var args []string

	switch a.facts.Profile.PackageFamily {
	case probe.FamilyApt:
		name, args = "apt-get", []string{"install", "-y"}
	case probe.FamilyDnf:
		name, args = "dnf", []string{"install", "-y"}
	case probe.FamilyZypper:
		name, args = "zypper", []string{"--non-interactive", "install"}
	default:
		return NewPermanentError("no supported package manager", nil).
			WithCode(ErrCodeUnsupported)
	}

	if err := a.run(ctx, name, append(args, pkgs...)...); err != nil {
		return NewRecoverableError(fmt.Sprintf("%s install failed", name), err).
			WithCode(ErrCodeCommandFailed)
	}
	return nil
}

// amdgpuInstall invokes the vendor installer script, the secondary path for
// both the kernel driver and the userland when the distro repository path
// fails.
func (a *Applier) amdgpuInstall(ctx context.Context, usecase string, extra ...string) error {
	if _, err := a.runner.LookPath("amdgpu-install"); err != nil {
		return NewRecoverableError("amdgpu-install is not available", err)
	}

	args := append([]string{"-y", "--usecase=" + usecase}, extra...)
	if err := a.run(ctx, "amdgpu-install", args...); err != nil {
		return NewRecoverableError("amdgpu-install failed", err).
			WithCode(ErrCodeCommandFailed)
	}
	return nil
}

// ensureKernelDriver installs the amdgpu DKMS driver: distro repository
// package first, vendor installer second. The resource is optional; the
// caller downgrades exhaustion to a warning with a manual step.
func (a *Applier) ensureKernelDriver(ctx context.Context) error {
	primaryErr := a.installPackages(ctx, "amdgpu-dkms")
	if primaryErr == nil {
		return nil
	}
	a.log.Warn().Err(primaryErr).Msg("Driver package install failed, trying vendor installer")

	if err := a.amdgpuInstall(ctx, "dkms"); err != nil {
		return NewRecoverableError("all driver installation paths failed", err)
	}
	return nil
}

// ensureROCmUserland installs the ROCm userland suite: distro repository
// meta-package first, vendor installer second. The suite is required;
// exhausting both paths is fatal for the run.
func (a *Applier) ensureROCmUserland(ctx context.Context) error {
	primaryErr := a.installPackages(ctx, "rocm")
	if primaryErr == nil {
		return nil
	}
	a.log.Warn().Err(primaryErr).Msg("ROCm package install failed, trying vendor installer")

	if err := a.amdgpuInstall(ctx, "rocm", "--no-dkms"); err != nil {
		return NewPermanentError("no installation path could provide the ROCm userland", err).
			WithResource(string(KindROCmUserland)).
			WithCode(ErrCodeExhausted)
	}
	return nil
}

// ensureDockerEngine installs the container engine: distro package first,
// upstream convenience script second. Required.
func (a *Applier) ensureDockerEngine(ctx context.Context) error {
	primaryErr := a.installPackages(ctx, dockerPackageName(a.facts.Profile.PackageFamily))
	if primaryErr == nil {
		return a.enableDockerService(ctx)
	}
	a.log.Warn().Err(primaryErr).Msg("Docker package install failed, trying upstream installer")

	script := fmt.Sprintf("curl -fsSL %s | sh", getDockerURL)
	if err := a.run(ctx, "sh", "-c", script); err != nil {
		return NewPermanentError("no installation path could provide the container engine", err).
			WithResource(string(KindDockerEngine)).
			WithCode(ErrCodeExhausted)
	}
	return a.enableDockerService(ctx)
}

// enableDockerService starts the engine now and on boot. Best-effort: some
// environments (containers, WSL) have no systemd.
func (a *Applier) enableDockerService(ctx context.Context) error {
	if err := a.run(ctx, "systemctl", "enable", "--now", "docker"); err != nil {
		a.log.Warn().Err(err).Msg("Could not enable the docker service; start it manually")
	}
	return nil
}

// ensureEditor installs the editor: distro/vendor repository package first,
// snap second. Optional.
func (a *Applier) ensureEditor(ctx context.Context) error {
	primaryErr := a.installPackages(ctx, "code")
	if primaryErr == nil {
		return nil
	}
	a.log.Warn().Err(primaryErr).Msg("Editor package install failed, trying snap")

	if _, err := a.runner.LookPath("snap"); err != nil {
		return NewRecoverableError("all editor installation paths failed", primaryErr)
	}
	if err := a.run(ctx, "snap", "install", "--classic", "code"); err != nil {
		return NewRecoverableError("all editor installation paths failed", err)
	}
	return nil
}

// dockerPackageName maps the family to its engine package.
func dockerPackageName(family probe.PackageFamily) string {
	switch family {
	case probe.FamilyDnf:
		return "moby-engine"
	case probe.FamilyZypper:
		return "docker"
	default:
		return "docker.io"
	}
}

// addToGroup appends the invoking user to a system group. Append semantics
// (-aG) are load-bearing: the user's existing groups are never replaced.
func (a *Applier) addToGroup(ctx context.Context, group string) error {
	if err := a.run(ctx, "usermod", "-aG", group, a.facts.Identity.Username); err != nil {
		return NewRecoverableError(fmt.Sprintf("could not add user to group %s", group), err).
			WithCode(ErrCodeCommandFailed)
	}
	return nil
}
