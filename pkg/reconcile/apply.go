package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rs/zerolog"
)

// ArtifactWriter renders and writes one generated artifact. The writer owns
// the overwrite policy: it reports written=false when an existing file was
// left untouched.
type ArtifactWriter interface {
	Write(ctx context.Context, name string) (written bool, path string, err error)
}

// ActionRecorder journals unit outcomes. Recording is an audit aid: failures
// are logged and never fail the run.
type ActionRecorder interface {
	RecordAction(ctx context.Context, runID string, unit Unit) error
}

// ActionObserver counts unit outcomes for metrics export.
type ActionObserver interface {
	ObserveAction(resource, action, status string)
}

// ApplierConfig wires an Applier. Journal and Metrics are optional.
type ApplierConfig struct {
	// RunID identifies the run in the journal. Empty generates one.
	RunID string

	// Runner executes host commands.
	Runner probe.CommandRunner

	// Facts is the observed host state the plan was computed from.
	Facts *probe.Facts

	// Series is the resolved target version series.
	Series string

	// Artifacts writes generated files.
	Artifacts ArtifactWriter

	// Journal records unit outcomes.
	Journal ActionRecorder

	// Metrics counts unit outcomes.
	Metrics ActionObserver

	// Logger is the parent logger.
	Logger zerolog.Logger
}

// Applier executes a plan strictly sequentially: each unit's external command
// completes (or fails) before the next unit starts. There is no concurrency
// here; the host package database and filesystem are single-writer resources
// and concurrent runs of the tool are unsupported.
type Applier struct {
	runID     string
	runner    probe.CommandRunner
	facts     *probe.Facts
	series    string
	artifacts ArtifactWriter
	journal   ActionRecorder
	metrics   ActionObserver
	log       zerolog.Logger

	aptRefreshed bool
}

// NewApplier creates an applier.
func NewApplier(cfg ApplierConfig) *Applier {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Applier{
		runID:     runID,
		runner:    cfg.Runner,
		facts:     cfg.Facts,
		series:    cfg.Series,
		artifacts: cfg.Artifacts,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		log:       cfg.Logger.With().Str("component", "reconcile").Logger(),
	}
}

// Apply executes the plan. A failed required unit stops the run immediately
// with the partial result; a failed optional unit is downgraded to a warning
// carrying the manual completion step, and the run continues.
func (a *Applier) Apply(ctx context.Context, plan *Plan) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{RunID: a.runID}

	a.log.Info().
		Str("run_id", result.RunID).
		Str("plan_id", plan.ID).
		Int("units", len(plan.Units)).
		Msg("Applying reconciliation plan")

	for i := range plan.Units {
		unit := &plan.Units[i]

		if err := ctx.Err(); err != nil {
			return result, NewPermanentError("run cancelled", err)
		}

		a.applyUnit(ctx, unit, result)
		a.record(ctx, result.RunID, *unit)

		if unit.Status == UnitStatusFailed {
			result.Duration = time.Since(started)
			return result, NewPermanentError("required resource could not be reconciled", nil).
				WithResource(unit.Resource).
				WithCode(ErrCodeExhausted)
		}
	}

	result.Duration = time.Since(started)

	a.log.Info().
		Str("run_id", result.RunID).
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("warned", result.Warned).
		Dur("duration", result.Duration).
		Msg("Reconciliation complete")

	if result.ReloginRequired {
		a.log.Warn().Msg("Group memberships changed; log out and back in for them to take effect")
	}

	return result, nil
}

// applyUnit executes one unit and updates the unit and result in place.
func (a *Applier) applyUnit(ctx context.Context, unit *Unit, result *RunResult) {
	logger := a.log.With().Str("resource", unit.Resource).Str("action", string(unit.Action)).Logger()

	if unit.Action == ActionSkip {
		unit.Status = UnitStatusSkipped
		unit.Message = unit.Reason
		result.Skipped++
		if unit.Reason != "" {
			logger.Warn().Str("reason", unit.Reason).Msg("Skipping resource")
		} else {
			logger.Info().Msg("Resource already in desired state")
		}
		return
	}

	var err error
	switch unit.Action {
	case ActionAddToGroup:
		err = a.addToGroup(ctx, unit.Target)
		if err == nil {
			unit.Message = "membership takes effect after a new login session"
			result.ReloginRequired = true
		}
	case ActionWriteFile:
		var written bool
		var path string
		written, path, err = a.artifacts.Write(ctx, unit.Target)
		if err == nil && !written {
			unit.Status = UnitStatusSkipped
			unit.Message = "file exists; use force to overwrite"
			result.Skipped++
			logger.Info().Str("path", path).Msg("Existing artifact left untouched")
			return
		}
		if err == nil {
			unit.Message = path
		}
	default:
		err = a.ensure(ctx, unit)
	}

	if err == nil {
		unit.Status = UnitStatusApplied
		result.Applied++
		logger.Info().Str("detail", unit.Message).Msg("Resource reconciled")
		return
	}

	if unit.Required {
		unit.Status = UnitStatusFailed
		unit.Message = err.Error()
		result.Failed++
		logger.Error().Err(err).Msg("Required resource failed; aborting run")
		return
	}

	unit.Status = UnitStatusWarned
	unit.Message = manualStep(unit.Kind)
	result.Warned++
	logger.Warn().Err(err).Str("manual_step", unit.Message).
		Msg("Optional resource failed; complete the step manually")
}

// ensure dispatches an install or reinstall to the kind's fallback chain.
func (a *Applier) ensure(ctx context.Context, unit *Unit) error {
	switch unit.Kind {
	case KindKernelDriver:
		return a.ensureKernelDriver(ctx)
	case KindROCmUserland:
		return a.ensureROCmUserland(ctx)
	case KindDockerEngine:
		return a.ensureDockerEngine(ctx)
	case KindEditor:
		return a.ensureEditor(ctx)
	default:
		return NewPermanentError("no installer for resource kind", nil).
			WithResource(unit.Resource).
			WithCode(ErrCodeInternal)
	}
}

// record journals and counts one unit outcome.
func (a *Applier) record(ctx context.Context, runID string, unit Unit) {
	if a.metrics != nil {
		a.metrics.ObserveAction(unit.Resource, string(unit.Action), string(unit.Status))
	}
	if a.journal != nil {
		if err := a.journal.RecordAction(ctx, runID, unit); err != nil {
			a.log.Warn().Err(err).Str("resource", unit.Resource).Msg("Failed to journal action")
		}
	}
}

// manualStep names the operator's manual completion step for an optional
// resource whose automatic paths all failed.
func manualStep(kind Kind) string {
	switch kind {
	case KindKernelDriver:
		return "install the amdgpu driver manually (see the amdgpu-install documentation for your distribution)"
	case KindEditor:
		return "install the editor manually from https://code.visualstudio.com/"
	case KindGroup:
		return "add the user to the group manually with: sudo usermod -aG <group> <user>"
	default:
		return "complete the installation manually"
	}
}
