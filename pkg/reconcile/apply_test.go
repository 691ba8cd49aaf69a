package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRunner records every executed command and fails the scripted ones.
type fakeRunner struct {
	binaries map[string]bool
	fail     map[string]bool
	calls    []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return "", errors.New("exit status 1")
	}
	return "", nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.binaries[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeRunner) ran(substr string) bool {
	for _, call := range f.calls {
		if strings.Contains(call, substr) {
			return true
		}
	}
	return false
}

// fakeWriter is a scripted ArtifactWriter.
type fakeWriter struct {
	written map[string]int
	skip    map[string]bool
	err     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: make(map[string]int), skip: make(map[string]bool)}
}

func (w *fakeWriter) Write(_ context.Context, name string) (bool, string, error) {
	if w.err != nil {
		return false, "", w.err
	}
	if w.skip[name] {
		return false, "/out/" + name, nil
	}
	w.written[name]++
	return true, "/out/" + name, nil
}

// fakeJournal records journaled units.
type fakeJournal struct {
	records []Unit
}

func (j *fakeJournal) RecordAction(_ context.Context, _ string, unit Unit) error {
	j.records = append(j.records, unit)
	return nil
}

func newTestApplier(runner *fakeRunner, writer *fakeWriter) *Applier {
	return NewApplier(ApplierConfig{
		Runner:    runner,
		Facts:     freshHostFacts(),
		Series:    "6.4",
		Artifacts: writer,
		Logger:    zerolog.Nop(),
	})
}

func TestApplyConvergedPlanRunsNothing(t *testing.T) {
	// Idempotency: applying an all-skip plan must not execute a single
	// host-mutating command.
	runner := &fakeRunner{}
	applier := NewApplier(ApplierConfig{
		Runner:    runner,
		Facts:     convergedHostFacts(),
		Series:    "6.4",
		Artifacts: newFakeWriter(),
		Logger:    zerolog.Nop(),
	})

	plan := BuildPlan(PlanInput{
		Facts:         convergedHostFacts(),
		Series:        "6.4",
		Scope:         ScopeAll,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(true),
	})

	result, err := applier.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("converged plan executed commands: %v", runner.calls)
	}
	if result.Skipped != plan.Summary.Total || result.Applied != 0 {
		t.Errorf("result = %+v, want all %d units skipped", result, plan.Summary.Total)
	}
}

func TestApplyGroupAddIsAdditive(t *testing.T) {
	runner := &fakeRunner{}
	applier := newTestApplier(runner, newFakeWriter())

	plan := BuildPlan(PlanInput{
		Facts:      freshHostFacts(),
		Series:     "6.4",
		Scope:      ScopeHost,
		SkipDriver: true,
	})

	result, err := applier.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for _, group := range []string{"render", "video", "docker"} {
		want := "usermod -aG " + group + " dev"
		if !runner.ran(want) {
			t.Errorf("no additive group add for %s; calls: %v", group, runner.calls)
		}
	}
	// Never the replacing form.
	for _, call := range runner.calls {
		if strings.Contains(call, "usermod -G") {
			t.Errorf("replacing group assignment executed: %s", call)
		}
	}
	if !result.ReloginRequired {
		t.Error("ReloginRequired = false after group membership changes")
	}
}

func TestApplySudoPrefixForUnprivilegedUser(t *testing.T) {
	runner := &fakeRunner{}
	applier := newTestApplier(runner, newFakeWriter())

	plan := BuildPlan(PlanInput{
		Facts:      freshHostFacts(),
		Series:     "6.4",
		Scope:      ScopeHost,
		SkipDriver: true,
	})

	if _, err := applier.Apply(context.Background(), plan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for _, call := range runner.calls {
		if !strings.HasPrefix(call, "sudo -n ") {
			t.Errorf("host-mutating command without sudo: %s", call)
		}
	}
}

func TestApplyRequiredFailureAbortsImmediately(t *testing.T) {
	// Both ROCm paths fail: the distro package install and the vendor
	// installer (not on PATH). The run must stop before later units.
	runner := &fakeRunner{
		fail: map[string]bool{
			"sudo -n apt-get install -y rocm": true,
		},
	}
	applier := newTestApplier(runner, newFakeWriter())

	plan := BuildPlan(PlanInput{
		Facts:      freshHostFacts(),
		Series:     "6.4",
		Scope:      ScopeAll,
		SkipDriver: true,
		Artifacts:  defaultArtifacts(false),
	})

	result, err := applier.Apply(context.Background(), plan)
	if err == nil {
		t.Fatal("Apply succeeded despite required-resource exhaustion")
	}
	if !IsPermanent(err) {
		t.Errorf("error class = %v, want permanent", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	// Nothing after the failed unit may have run.
	docker := unitByResource(t, plan, "docker-engine")
	if docker.Status != UnitStatusPending {
		t.Errorf("docker unit status = %s, want pending (run aborted before it)", docker.Status)
	}
	for _, artifact := range []string{"Dockerfile", "devcontainer.json", "verify-gpu.py"} {
		if unit := unitByResource(t, plan, "artifact:"+artifact); unit.Status != UnitStatusPending {
			t.Errorf("artifact %s status = %s, want pending", artifact, unit.Status)
		}
	}
}

func TestApplyOptionalFailureWarnsAndContinues(t *testing.T) {
	// Editor install fails on both paths; the run continues and succeeds.
	runner := &fakeRunner{
		fail: map[string]bool{
			"sudo -n apt-get install -y code": true,
		},
	}
	facts := freshHostFacts()
	facts.Commands["rocminfo"] = true
	facts.Commands["docker"] = true

	applier := NewApplier(ApplierConfig{
		Runner:    runner,
		Facts:     facts,
		Series:    "6.4",
		Artifacts: newFakeWriter(),
		Logger:    zerolog.Nop(),
	})

	plan := BuildPlan(PlanInput{
		Facts:         facts,
		Series:        "6.4",
		Scope:         ScopeAll,
		SkipDriver:    true,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(false),
	})

	result, err := applier.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Warned != 1 {
		t.Errorf("Warned = %d, want 1", result.Warned)
	}
	editor := unitByResource(t, plan, "editor")
	if editor.Status != UnitStatusWarned {
		t.Errorf("editor status = %s, want warned", editor.Status)
	}
	if editor.Message == "" {
		t.Error("editor warning carries no manual step")
	}

	// Artifacts after the warned unit still got written.
	for _, artifact := range []string{"Dockerfile", "devcontainer.json", "verify-gpu.py"} {
		if unit := unitByResource(t, plan, "artifact:"+artifact); unit.Status != UnitStatusApplied {
			t.Errorf("artifact %s status = %s, want applied", artifact, unit.Status)
		}
	}
}

func TestApplyInstallerFallbackChain(t *testing.T) {
	// Primary distro package fails, vendor installer succeeds.
	runner := &fakeRunner{
		binaries: map[string]bool{"amdgpu-install": true},
		fail: map[string]bool{
			"sudo -n apt-get install -y rocm": true,
		},
	}
	facts := freshHostFacts()
	facts.Commands["docker"] = true

	applier := NewApplier(ApplierConfig{
		Runner:    runner,
		Facts:     facts,
		Series:    "6.4",
		Artifacts: newFakeWriter(),
		Logger:    zerolog.Nop(),
	})

	plan := BuildPlan(PlanInput{
		Facts:      facts,
		Series:     "6.4",
		Scope:      ScopeHost,
		SkipDriver: true,
	})

	result, err := applier.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !result.Succeeded() {
		t.Errorf("result = %+v, want success via fallback", result)
	}
	if !runner.ran("amdgpu-install -y --usecase=rocm --no-dkms") {
		t.Errorf("vendor installer fallback not invoked; calls: %v", runner.calls)
	}
}

func TestApplyArtifactSkipReported(t *testing.T) {
	writer := newFakeWriter()
	writer.skip["Dockerfile"] = true

	runner := &fakeRunner{}
	applier := newTestApplier(runner, writer)

	plan := BuildPlan(PlanInput{
		Facts:  freshHostFacts(),
		Series: "6.4",
		Scope:  ScopeContainer,
		Artifacts: []ArtifactObservation{
			{Name: "Dockerfile", Exists: false},
			{Name: "devcontainer.json", Exists: false},
		},
	})

	result, err := applier.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if unit := unitByResource(t, plan, "artifact:Dockerfile"); unit.Status != UnitStatusSkipped {
		t.Errorf("Dockerfile status = %s, want skipped", unit.Status)
	}
	if writer.written["devcontainer.json"] != 1 {
		t.Errorf("devcontainer.json written %d times, want 1", writer.written["devcontainer.json"])
	}
	if result.Applied != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 applied and 1 skipped", result)
	}
}

func TestApplyJournalsEveryUnit(t *testing.T) {
	journal := &fakeJournal{}
	runner := &fakeRunner{}
	applier := NewApplier(ApplierConfig{
		Runner:    runner,
		Facts:     convergedHostFacts(),
		Series:    "6.4",
		Artifacts: newFakeWriter(),
		Journal:   journal,
		Logger:    zerolog.Nop(),
	})

	plan := BuildPlan(PlanInput{
		Facts:         convergedHostFacts(),
		Series:        "6.4",
		Scope:         ScopeAll,
		InstallEditor: true,
		Artifacts:     defaultArtifacts(true),
	})

	if _, err := applier.Apply(context.Background(), plan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(journal.records) != plan.Summary.Total {
		t.Errorf("journaled %d units, want %d", len(journal.records), plan.Summary.Total)
	}
}
