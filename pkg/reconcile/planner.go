package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rocmdev/rocmdev/pkg/probe"
)

// Scope selects which part of the target state a run manages.
type Scope string

const (
	// ScopeHost reconciles host packages, drivers and group memberships
	// only.
	ScopeHost Scope = "host"

	// ScopeContainer generates the devcontainer artifact set only.
	ScopeContainer Scope = "container"

	// ScopeAll covers both.
	ScopeAll Scope = "all"
)

// Validate checks the scope value.
func (s Scope) Validate() error {
	switch s {
	case ScopeHost, ScopeContainer, ScopeAll:
		return nil
	default:
		return fmt.Errorf("invalid scope: %s", s)
	}
}

// ArtifactObservation reports whether a generated artifact already exists on
// disk.
type ArtifactObservation struct {
	// Name is the artifact file name.
	Name string `json:"name"`

	// Exists indicates the file is already present.
	Exists bool `json:"exists"`
}

// PlanInput carries everything plan computation depends on. BuildPlan is a
// pure function of this input.
type PlanInput struct {
	// Facts is the observed host state.
	Facts *probe.Facts

	// Series is the resolved target version series.
	Series string

	// Scope selects host reconciliation, artifact generation, or both.
	Scope Scope

	// Force re-applies matching resources and overwrites existing
	// artifacts.
	Force bool

	// SkipDriver suppresses kernel driver installation.
	SkipDriver bool

	// InstallEditor enables the optional editor resource.
	InstallEditor bool

	// Artifacts are the artifact existence observations, in emit order.
	Artifacts []ArtifactObservation
}

// BuildPlan compares observed state to the declared target and produces the
// ordered plan. Resources whose preferred handling is unavailable are
// downgraded to warn-skips here, never errors: an unsupported package
// manager must not block artifact generation.
func BuildPlan(in PlanInput) *Plan {
	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Series:    in.Series,
	}

	if in.Scope != ScopeContainer {
		plan.Units = append(plan.Units, buildHostUnits(in)...)
	}
	if in.Scope != ScopeHost {
		plan.Units = append(plan.Units, buildArtifactUnits(in)...)
	}

	for _, u := range plan.Units {
		plan.Summary.Total++
		switch u.Action {
		case ActionInstall:
			plan.Summary.ToInstall++
		case ActionReinstall:
			plan.Summary.ToReinstall++
		case ActionAddToGroup:
			plan.Summary.ToGroupAdd++
		case ActionWriteFile:
			plan.Summary.ToWrite++
		case ActionSkip:
			plan.Summary.ToSkip++
		}
	}

	return plan
}

// buildHostUnits plans the host-mutating resources in dependency order:
// driver before userland, userland before docker, groups after the packages
// that create them, editor last.
func buildHostUnits(in PlanInput) []Unit {
	facts := in.Facts
	unsupported := facts.Profile.PackageFamily == probe.FamilyNone

	var units []Unit

	driver := Unit{
		Resource: string(KindKernelDriver),
		Kind:     KindKernelDriver,
		Required: false,
		Observed: observeDriverState(facts.Driver),
		Status:   UnitStatusPending,
	}
	driver.Action = Decide(driver.Kind, driver.Observed, in.Force)
	if in.SkipDriver && driver.Action != ActionSkip {
		driver.Action = ActionSkip
		driver.Reason = "driver installation disabled by flag"
	}
	units = append(units, driver)

	rocm := Unit{
		Resource: string(KindROCmUserland),
		Kind:     KindROCmUserland,
		Required: true,
		Observed: observeCommandState(facts.Commands["rocminfo"]),
		Status:   UnitStatusPending,
	}
	rocm.Action = Decide(rocm.Kind, rocm.Observed, in.Force)
	units = append(units, rocm)

	docker := Unit{
		Resource: string(KindDockerEngine),
		Kind:     KindDockerEngine,
		Required: true,
		Observed: observeCommandState(facts.Commands["docker"]),
		Status:   UnitStatusPending,
	}
	docker.Action = Decide(docker.Kind, docker.Observed, in.Force)
	units = append(units, docker)

	for _, group := range probe.RequiredGroups {
		unit := Unit{
			Resource: "group:" + group,
			Kind:     KindGroup,
			Target:   group,
			Required: false,
			Observed: observeMembershipState(facts.Groups[group]),
			Status:   UnitStatusPending,
		}
		unit.Action = Decide(unit.Kind, unit.Observed, in.Force)
		units = append(units, unit)
	}

	editor := Unit{
		Resource: string(KindEditor),
		Kind:     KindEditor,
		Required: false,
		Observed: observeCommandState(facts.Commands["code"]),
		Status:   UnitStatusPending,
	}
	editor.Action = Decide(editor.Kind, editor.Observed, in.Force)
	if !in.InstallEditor && editor.Action != ActionSkip {
		editor.Action = ActionSkip
		editor.Reason = "editor installation disabled"
	}
	units = append(units, editor)

	if unsupported {
		for i := range units {
			if units[i].Action != ActionSkip {
				units[i].Action = ActionSkip
				units[i].Reason = "no supported package manager on this host"
			}
		}
	}

	return units
}

// buildArtifactUnits plans the generated artifact set. Each artifact's
// overwrite policy is independent of the others.
func buildArtifactUnits(in PlanInput) []Unit {
	units := make([]Unit, 0, len(in.Artifacts))
	for _, a := range in.Artifacts {
		unit := Unit{
			Resource: "artifact:" + a.Name,
			Kind:     KindArtifact,
			Target:   a.Name,
			Required: true,
			Observed: observeArtifactState(a.Exists),
			Status:   UnitStatusPending,
		}
		unit.Action = Decide(unit.Kind, unit.Observed, in.Force)
		if unit.Action == ActionSkip {
			unit.Reason = "file exists; use force to overwrite"
		}
		units = append(units, unit)
	}
	return units
}

// observeDriverState maps the driver observation onto the tri-state model. A
// partially present stack (module without nodes, or nodes without module) is
// a mismatch, not an absence.
func observeDriverState(d probe.DriverObservation) State {
	switch {
	case d.Ready():
		return StatePresentMatching
	case d.ModuleLoaded || d.KFDPresent || d.RenderNodePresent:
		return StatePresentMismatched
	default:
		return StateAbsent
	}
}

func observeCommandState(present bool) State {
	if present {
		return StatePresentMatching
	}
	return StateAbsent
}

func observeMembershipState(member bool) State {
	if member {
		return StatePresentMatching
	}
	return StateAbsent
}

func observeArtifactState(exists bool) State {
	if exists {
		return StatePresentMatching
	}
	return StateAbsent
}
