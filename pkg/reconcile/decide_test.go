package reconcile

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		observed State
		force    bool
		want     Action
	}{
		// Idempotency default: matching state is always a skip.
		{name: "package matching", kind: KindROCmUserland, observed: StatePresentMatching, want: ActionSkip},
		{name: "driver matching", kind: KindKernelDriver, observed: StatePresentMatching, want: ActionSkip},
		{name: "group matching", kind: KindGroup, observed: StatePresentMatching, want: ActionSkip},
		{name: "artifact existing", kind: KindArtifact, observed: StatePresentMatching, want: ActionSkip},

		// Absent resources get the kind's apply action.
		{name: "package absent", kind: KindDockerEngine, observed: StateAbsent, want: ActionInstall},
		{name: "group absent", kind: KindGroup, observed: StateAbsent, want: ActionAddToGroup},
		{name: "artifact absent", kind: KindArtifact, observed: StateAbsent, want: ActionWriteFile},

		// Mismatch re-applies.
		{name: "driver mismatched", kind: KindKernelDriver, observed: StatePresentMismatched, want: ActionReinstall},
		{name: "package mismatched", kind: KindROCmUserland, observed: StatePresentMismatched, want: ActionReinstall},

		// Force override re-applies matching state.
		{name: "package matching forced", kind: KindROCmUserland, observed: StatePresentMatching, force: true, want: ActionReinstall},
		{name: "group matching forced", kind: KindGroup, observed: StatePresentMatching, force: true, want: ActionAddToGroup},
		{name: "artifact existing forced", kind: KindArtifact, observed: StatePresentMatching, force: true, want: ActionWriteFile},

		// Artifact overwrite policy: a mismatched (existing) file is still
		// never clobbered without force.
		{name: "artifact mismatched unforced", kind: KindArtifact, observed: StatePresentMismatched, want: ActionSkip},
		{name: "artifact mismatched forced", kind: KindArtifact, observed: StatePresentMismatched, force: true, want: ActionWriteFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.kind, tt.observed, tt.force); got != tt.want {
				t.Errorf("Decide(%s, %s, force=%v) = %s, want %s",
					tt.kind, tt.observed, tt.force, got, tt.want)
			}
		})
	}
}

func TestDecideIsPure(t *testing.T) {
	// Same inputs, same decision, every time.
	for i := 0; i < 3; i++ {
		if got := Decide(KindROCmUserland, StateAbsent, false); got != ActionInstall {
			t.Fatalf("Decide changed across calls: %s", got)
		}
	}
}
