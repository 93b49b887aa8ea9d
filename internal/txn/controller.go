// Package txn runs reversible mutation transactions: snapshot the live
// paths, execute the plan's steps, verify the result, and either commit or
// restore the snapshot. Every failure path, including cancellation, funnels
// into a restore; the only way the live system keeps the new state is a
// full commit.
package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/swapsafe/internal/executor"
	"github.com/blackwell-systems/swapsafe/internal/output"
	"github.com/blackwell-systems/swapsafe/internal/probe"
	"github.com/blackwell-systems/swapsafe/internal/resource"
	"github.com/blackwell-systems/swapsafe/internal/snapshot"
	"github.com/blackwell-systems/swapsafe/internal/store"
	"github.com/blackwell-systems/swapsafe/internal/watcher"
)

// Controller drives one transaction at a time through its lifecycle.
type Controller struct {
	Snapshots *snapshot.Manager
	Runner    *executor.Runner
	Prober    *probe.Prober
	Store     *store.Store
	Log       *output.Logger

	// DisableGuard turns off live-path watching during the scratch steps.
	DisableGuard bool

	state State
}

// Run executes the plan inside a transaction: capture a snapshot of the
// resource set, run the steps, run the checks, commit or roll back. The
// returned report is never nil and always describes a finished transaction.
func (c *Controller) Run(ctx context.Context, set *resource.Set, plan *executor.Plan, checks []probe.Check) *Report {
	c.state = StateIdle
	report := &Report{
		TxnID:     uuid.NewString(),
		Component: set.Name,
		StartedAt: time.Now(),
	}

	defer func() {
		report.FinalState = c.state
		report.FinishedAt = time.Now()
		c.finishRecord(report)
	}()

	c.recordStart(report)

	if err := c.preflight(plan, checks); err != nil {
		report.Outcome = OutcomeAborted
		report.Err = err
		return report
	}

	snap, err := c.Snapshots.Capture(set, "before "+set.Name+" mutation")
	if err != nil {
		// Nothing was mutated; the state stays idle and the live system is
		// exactly as it was.
		report.Outcome = OutcomeAborted
		report.Err = fmt.Errorf("failed to capture snapshot: %w", err)
		c.Log.Errorf("%v", report.Err)
		return report
	}
	c.to(StateSnapshotTaken)
	report.SnapshotID = snap.ID
	report.SnapshotDir = snap.Dir
	c.Log.Successf("snapshot %d captured (%d files)", snap.ID, len(snap.Manifest.Files))

	if err := ctx.Err(); err != nil {
		report.Err = fmt.Errorf("interrupted before mutation: %w", executor.ErrInterrupted)
		c.rollback(report, snap)
		return report
	}

	guard := c.startGuard(set)
	stopGuard := func() {
		if guard == nil {
			return
		}
		report.OutsideWrites = guard.Stop()
		guard = nil
		for _, p := range report.OutsideWrites {
			c.Log.Warnf("outside write during transaction: %s", p)
		}
	}
	defer stopGuard()

	// The guard watches live paths only while the plan is confined to its
	// scratch directory; once the mutating step starts, writes to live
	// paths are the plan's own.
	prevOnStart := c.Runner.OnStepStart
	c.Runner.OnStepStart = func(step executor.Step) {
		if step.Mutates {
			stopGuard()
		}
		c.Log.Infof("running step %s", step.Name)
		if prevOnStart != nil {
			prevOnStart(step)
		}
	}
	defer func() { c.Runner.OnStepStart = prevOnStart }()

	c.to(StateMutating)
	steps, runErr := c.Runner.Run(ctx, plan)
	report.Steps = steps
	c.recordSteps(report)
	if runErr != nil {
		report.Err = runErr
		if errors.Is(runErr, executor.ErrInterrupted) {
			c.Log.Warnf("mutation interrupted, rolling back")
		} else {
			c.Log.Errorf("%v", runErr)
		}
		stopGuard()
		c.rollback(report, snap)
		return report
	}
	stopGuard()

	c.to(StateVerifying)
	results := c.Prober.RunChecks(ctx, checks)
	report.Checks = results
	c.recordChecks(report)

	if err := ctx.Err(); err != nil {
		report.Err = fmt.Errorf("interrupted during verification: %w", executor.ErrInterrupted)
		c.rollback(report, snap)
		return report
	}
	if !probe.AllPassed(results) {
		report.Err = &VerifyError{Failed: report.FailedChecks()}
		c.Log.Errorf("%v", report.Err)
		c.rollback(report, snap)
		return report
	}

	c.to(StateCommitted)
	report.Outcome = OutcomeCommitted
	c.Log.Successf("%s committed", set.Name)
	return report
}

// preflight validates the plan and checks before anything touches disk.
func (c *Controller) preflight(plan *executor.Plan, checks []probe.Check) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	for i := range checks {
		if err := checks[i].Validate(); err != nil {
			return fmt.Errorf("invalid check: %w", err)
		}
	}
	return nil
}

// rollback restores the snapshot and settles the outcome. A clean restore
// ends in rolled_back; a restore that itself fails escalates to failed,
// keeping the snapshot copies on disk for manual recovery.
func (c *Controller) rollback(report *Report, snap *snapshot.Snapshot) {
	c.to(StateRolledBack)

	if err := c.Snapshots.Restore(snap); err != nil {
		c.to(StateFailed)
		report.Outcome = OutcomeFailed
		report.RestoreErr = err
		c.Log.Errorf("restore failed: %v", err)
		c.Log.Errorf("system may be inconsistent; snapshot copies retained at %s", snap.Dir)
		return
	}

	report.Outcome = OutcomeRolledBack
	c.Log.Successf("original state restored from snapshot %d", snap.ID)
}

// startGuard begins watching the set's live paths. Guarding is best-effort:
// a set that expands to nothing, or paths whose directories cannot be
// watched, just means no guard.
func (c *Controller) startGuard(set *resource.Set) *watcher.Guard {
	if c.DisableGuard {
		return nil
	}

	paths, err := set.Expand()
	if err != nil || len(paths) == 0 {
		return nil
	}
	guard, err := watcher.NewGuard(paths)
	if err != nil {
		return nil
	}
	if err := guard.Start(); err != nil {
		c.Log.Warnf("live-path guard unavailable: %v", err)
		return nil
	}
	return guard
}

// Database bookkeeping is best-effort: a transaction must settle even when
// its audit record cannot be written.

func (c *Controller) recordStart(report *Report) {
	err := c.Store.InsertTransaction(&store.Transaction{
		ID:        report.TxnID,
		Component: report.Component,
		StartedAt: report.StartedAt,
	})
	if err != nil {
		c.Log.Warnf("failed to record transaction start: %v", err)
	}
}

func (c *Controller) finishRecord(report *Report) {
	err := c.Store.FinishTransaction(report.TxnID, string(report.Outcome), report.SnapshotID, report.FinishedAt)
	if err != nil {
		c.Log.Warnf("failed to record transaction outcome: %v", err)
	}
}

func (c *Controller) recordSteps(report *Report) {
	for i, step := range report.Steps {
		err := c.Store.InsertStepResult(&store.StepResult{
			TxnID:      report.TxnID,
			Seq:        i,
			Name:       step.Name,
			Status:     step.Status,
			DurationMS: step.Duration.Milliseconds(),
			Output:     step.Output,
		})
		if err != nil {
			c.Log.Warnf("failed to record step result: %v", err)
		}
	}
}

func (c *Controller) recordChecks(report *Report) {
	for _, check := range report.Checks {
		err := c.Store.InsertCheckResult(&store.CheckResult{
			TxnID:  report.TxnID,
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
		if err != nil {
			c.Log.Warnf("failed to record check result: %v", err)
		}
	}
}
