package reconcile

import (
	"testing"

	"github.com/rocmdev/rocmdev/pkg/probe"
)

// freshHostFacts models a host with nothing installed.
func freshHostFacts() *probe.Facts {
	return &probe.Facts{
		Profile:  probe.HostProfile{PackageFamily: probe.FamilyApt, DistroID: "ubuntu", OSCodename: "noble"},
		Identity: probe.HostIdentity{UID: 1000, GID: 1000, Username: "dev"},
		Groups:   map[string]bool{"render": false, "video": false, "docker": false},
		Commands: map[string]bool{"rocminfo": false, "docker": false, "code": false},
	}
}

// convergedHostFacts models a host already in the desired state.
func convergedHostFacts() *probe.Facts {
	f := freshHostFacts()
	f.Driver = probe.DriverObservation{ModuleLoaded: true, KFDPresent: true, RenderNodePresent: true}
	f.Groups = map[string]bool{"render": true, "video": true, "docker": true}
	f.Commands = map[string]bool{"rocminfo": true, "docker": true, "code": true}
	return f
}

func defaultArtifacts(exists bool) []ArtifactObservation {
	return []ArtifactObservation{
		{Name: "Dockerfile", Exists: exists},
		{Name: "devcontainer.json", Exists: exists},
		{Name: "verify-gpu.py", Exists: exists},
	}
}

func unitByResource(t *testing.T, plan *Plan, resource string) *Unit {
	t.Helper()
	for i := range plan.Units {
		if plan.Units[i].Resource == resource {
			return &plan.Units[i]
		}
	}
	t.Fatalf("plan has no unit for %s", resource)
	return nil
}

func TestBuildPlanFreshHost(t *testing.T) {
	plan := BuildPlan(PlanInput{
		Facts:         freshHostFacts(),
		Series:        "6.4",
		Scope:         ScopeAll,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(false),
	})

	wantActions := map[string]Action{
		"kernel-driver":              ActionInstall,
		"rocm-userland":              ActionInstall,
		"docker-engine":              ActionInstall,
		"group:render":               ActionAddToGroup,
		"group:video":                ActionAddToGroup,
		"group:docker":               ActionAddToGroup,
		"editor":                     ActionInstall,
		"artifact:Dockerfile":        ActionWriteFile,
		"artifact:devcontainer.json": ActionWriteFile,
		"artifact:verify-gpu.py":     ActionWriteFile,
	}

	if len(plan.Units) != len(wantActions) {
		t.Fatalf("plan has %d units, want %d", len(plan.Units), len(wantActions))
	}
	for resource, want := range wantActions {
		if got := unitByResource(t, plan, resource).Action; got != want {
			t.Errorf("unit %s action = %s, want %s", resource, got, want)
		}
	}

	if plan.Summary.ToInstall != 4 || plan.Summary.ToGroupAdd != 3 || plan.Summary.ToWrite != 3 {
		t.Errorf("summary = %+v, want 4 installs, 3 group adds, 3 writes", plan.Summary)
	}
}

func TestBuildPlanConvergedHostIsAllSkips(t *testing.T) {
	// Idempotency: a second run against a converged host decides skip for
	// every resource.
	plan := BuildPlan(PlanInput{
		Facts:         convergedHostFacts(),
		Series:        "6.4",
		Scope:         ScopeAll,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(true),
	})

	for _, unit := range plan.Units {
		if unit.Action != ActionSkip {
			t.Errorf("unit %s action = %s, want skip", unit.Resource, unit.Action)
		}
	}
	if plan.Summary.ToSkip != plan.Summary.Total {
		t.Errorf("summary = %+v, want all %d units skipped", plan.Summary, plan.Summary.Total)
	}
}

func TestBuildPlanUnsupportedFamilySkipsHostActions(t *testing.T) {
	// Unsupported package manager downgrades every host action to a
	// warn-skip; artifact generation is unaffected.
	facts := freshHostFacts()
	facts.Profile.PackageFamily = probe.FamilyNone

	plan := BuildPlan(PlanInput{
		Facts:         facts,
		Series:        "6.4",
		Scope:         ScopeAll,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(false),
	})

	for _, unit := range plan.Units {
		if unit.Kind == KindArtifact {
			if unit.Action != ActionWriteFile {
				t.Errorf("artifact %s action = %s, want write-file", unit.Resource, unit.Action)
			}
			continue
		}
		if unit.Action != ActionSkip {
			t.Errorf("host unit %s action = %s, want skip", unit.Resource, unit.Action)
		}
		if unit.Reason == "" {
			t.Errorf("host unit %s has no skip reason", unit.Resource)
		}
	}
}

func TestBuildPlanScopes(t *testing.T) {
	tests := []struct {
		name          string
		scope         Scope
		wantHost      bool
		wantArtifacts bool
	}{
		{name: "host only", scope: ScopeHost, wantHost: true},
		{name: "container only", scope: ScopeContainer, wantArtifacts: true},
		{name: "both", scope: ScopeAll, wantHost: true, wantArtifacts: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPlan(PlanInput{
				Facts:         freshHostFacts(),
				Series:        "6.4",
				Scope:         tt.scope,
				InstallEditor: true,
				Artifacts:     defaultArtifacts(false),
			})

			var hasHost, hasArtifacts bool
			for _, unit := range plan.Units {
				if unit.Kind == KindArtifact {
					hasArtifacts = true
				} else {
					hasHost = true
				}
			}
			if hasHost != tt.wantHost {
				t.Errorf("host units present = %v, want %v", hasHost, tt.wantHost)
			}
			if hasArtifacts != tt.wantArtifacts {
				t.Errorf("artifact units present = %v, want %v", hasArtifacts, tt.wantArtifacts)
			}
		})
	}
}

func TestBuildPlanSkipDriverFlag(t *testing.T) {
	plan := BuildPlan(PlanInput{
		Facts:      freshHostFacts(),
		Series:     "6.4",
		Scope:      ScopeHost,
		SkipDriver: true,
	})

	driver := unitByResource(t, plan, "kernel-driver")
	if driver.Action != ActionSkip {
		t.Errorf("driver action = %s, want skip", driver.Action)
	}
	if driver.Reason == "" {
		t.Error("driver skip carries no reason")
	}
}

func TestBuildPlanEditorOptOut(t *testing.T) {
	plan := BuildPlan(PlanInput{
		Facts:  freshHostFacts(),
		Series: "6.4",
		Scope:  ScopeHost,
	})

	editor := unitByResource(t, plan, "editor")
	if editor.Action != ActionSkip {
		t.Errorf("editor action = %s, want skip", editor.Action)
	}
}

func TestBuildPlanPartialDriverIsMismatch(t *testing.T) {
	facts := freshHostFacts()
	facts.Driver = probe.DriverObservation{ModuleLoaded: true}

	plan := BuildPlan(PlanInput{Facts: facts, Series: "6.4", Scope: ScopeHost})

	driver := unitByResource(t, plan, "kernel-driver")
	if driver.Observed != StatePresentMismatched {
		t.Errorf("driver observed = %s, want present-mismatched", driver.Observed)
	}
	if driver.Action != ActionReinstall {
		t.Errorf("driver action = %s, want reinstall", driver.Action)
	}
}

func TestBuildPlanForceOverride(t *testing.T) {
	// Force re-applies everything, including existing artifacts.
	plan := BuildPlan(PlanInput{
		Facts:         convergedHostFacts(),
		Series:        "6.4",
		Scope:         ScopeAll,
		Force:         true,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(true),
	})

	for _, unit := range plan.Units {
		if unit.Action == ActionSkip {
			t.Errorf("unit %s still skipped under force", unit.Resource)
		}
	}
}

func TestBuildPlanArtifactPoliciesAreIndependent(t *testing.T) {
	// One existing artifact does not block writing the others.
	plan := BuildPlan(PlanInput{
		Facts:  freshHostFacts(),
		Series: "6.4",
		Scope:  ScopeContainer,
		Artifacts: []ArtifactObservation{
			{Name: "Dockerfile", Exists: true},
			{Name: "devcontainer.json", Exists: false},
			{Name: "verify-gpu.py", Exists: false},
		},
	})

	if got := unitByResource(t, plan, "artifact:Dockerfile").Action; got != ActionSkip {
		t.Errorf("existing Dockerfile action = %s, want skip", got)
	}
	if got := unitByResource(t, plan, "artifact:devcontainer.json").Action; got != ActionWriteFile {
		t.Errorf("devcontainer.json action = %s, want write-file", got)
	}
	if got := unitByResource(t, plan, "artifact:verify-gpu.py").Action; got != ActionWriteFile {
		t.Errorf("verify-gpu.py action = %s, want write-file", got)
	}
}
