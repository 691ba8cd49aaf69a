package reconcile

import (
	"fmt"
	"time"
)

// State is the tri-state observation for a managed resource. It is computed
// fresh each run; observations are never cached across runs.
type State string

const (
	// StateAbsent means the resource is not present on the host.
	StateAbsent State = "absent"

	// StatePresentMatching means the resource is present and matches the
	// desired state.
	StatePresentMatching State = "present-matching"

	// StatePresentMismatched means the resource is present but differs from
	// the desired state.
	StatePresentMismatched State = "present-mismatched"
)

// Validate checks that the state is one of the three known values.
func (s State) Validate() error {
	switch s {
	case StateAbsent, StatePresentMatching, StatePresentMismatched:
		return nil
	default:
		return fmt.Errorf("invalid resource state: %s", s)
	}
}

// Kind identifies the type of a managed resource.
type Kind string

const (
	// KindKernelDriver is the GPU kernel driver (amdgpu).
	KindKernelDriver Kind = "kernel-driver"

	// KindROCmUserland is the ROCm userland package suite.
	KindROCmUserland Kind = "rocm-userland"

	// KindDockerEngine is the container runtime.
	KindDockerEngine Kind = "docker-engine"

	// KindEditor is the development editor.
	KindEditor Kind = "editor"

	// KindGroup is a system group membership for the invoking user.
	KindGroup Kind = "group"

	// KindArtifact is a generated devcontainer file.
	KindArtifact Kind = "artifact"
)

// Action is the decision for one resource.
type Action string

const (
	// ActionSkip leaves the resource untouched.
	ActionSkip Action = "skip"

	// ActionInstall installs an absent resource.
	ActionInstall Action = "install"

	// ActionReinstall re-applies a present resource (mismatch or force).
	ActionReinstall Action = "reinstall"

	// ActionAddToGroup appends the invoking user to a system group.
	ActionAddToGroup Action = "add-to-group"

	// ActionWriteFile renders and writes a generated artifact.
	ActionWriteFile Action = "write-file"
)

// UnitStatus is the execution status of a plan unit.
type UnitStatus string

const (
	// UnitStatusPending means the unit has not been executed yet.
	UnitStatusPending UnitStatus = "pending"

	// UnitStatusApplied means the unit's action completed.
	UnitStatusApplied UnitStatus = "applied"

	// UnitStatusSkipped means no action was needed or the unit was
	// downgraded to a skip.
	UnitStatusSkipped UnitStatus = "skipped"

	// UnitStatusWarned means an optional resource's action failed and the
	// operator must complete it manually.
	UnitStatusWarned UnitStatus = "warned"

	// UnitStatusFailed means a required resource's action exhausted every
	// path.
	UnitStatusFailed UnitStatus = "failed"
)

// Unit is one resource's entry in the reconciliation plan.
type Unit struct {
	// Resource is the resource identifier (e.g. "rocm-userland",
	// "group:render", "artifact:devcontainer.json").
	Resource string `json:"resource"`

	// Kind is the resource type.
	Kind Kind `json:"kind"`

	// Target names a kind-specific target: the group name for KindGroup,
	// the file name for KindArtifact.
	Target string `json:"target,omitempty"`

	// Required marks resources whose failure aborts the run. Optional
	// resources degrade to a warning with manual instructions.
	Required bool `json:"required"`

	// Observed is the tri-state observation for this resource.
	Observed State `json:"observed"`

	// Action is the decided action.
	Action Action `json:"action"`

	// Reason explains a skip decision.
	Reason string `json:"reason,omitempty"`

	// Status is filled in during apply.
	Status UnitStatus `json:"status"`

	// Message carries the apply outcome detail (e.g. fallback used, manual
	// step required).
	Message string `json:"message,omitempty"`
}

// Summary aggregates plan statistics.
type Summary struct {
	// Total is the number of units in the plan.
	Total int `json:"total"`

	// ToInstall counts install actions.
	ToInstall int `json:"to_install"`

	// ToReinstall counts reinstall actions.
	ToReinstall int `json:"to_reinstall"`

	// ToGroupAdd counts group-membership additions.
	ToGroupAdd int `json:"to_group_add"`

	// ToWrite counts artifact writes.
	ToWrite int `json:"to_write"`

	// ToSkip counts skip decisions.
	ToSkip int `json:"to_skip"`
}

// Plan is the ordered reconciliation plan for one run. Units execute
// strictly sequentially in slice order: each host-mutating step completes
// before the next begins so error attribution stays unambiguous.
type Plan struct {
	// ID is the unique plan identifier.
	ID string `json:"id"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Series is the resolved target version series the plan installs.
	Series string `json:"series"`

	// Units are the plan units in execution order.
	Units []Unit `json:"units"`

	// Summary aggregates the decided actions.
	Summary Summary `json:"summary"`
}

// RunResult is the outcome of applying a plan.
type RunResult struct {
	// RunID is the journal identifier for this run.
	RunID string `json:"run_id"`

	// Applied counts units whose action completed.
	Applied int `json:"applied"`

	// Skipped counts skipped units.
	Skipped int `json:"skipped"`

	// Warned counts optional units whose action failed.
	Warned int `json:"warned"`

	// Failed counts required units whose action failed.
	Failed int `json:"failed"`

	// ReloginRequired indicates a group membership changed; the change
	// takes effect only in a new login session.
	ReloginRequired bool `json:"relogin_required"`

	// Duration is the total apply time.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the run completed without a fatal failure.
func (r RunResult) Succeeded() bool {
	return r.Failed == 0
}
