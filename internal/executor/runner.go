package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"
)

// Step statuses recorded in results.
const (
	StatusOK          = "ok"
	StatusFailed      = "failed"
	StatusTimedOut    = "timed_out"
	StatusInterrupted = "interrupted"
)

// ErrInterrupted marks a run cut short by cancellation rather than by a
// failing step. Callers distinguish the two to report the right outcome;
// both roll back.
var ErrInterrupted = errors.New("mutation interrupted")

// StepError reports the step that ended a run and why.
type StepError struct {
	Step   string
	Reason string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %s", e.Step, e.Reason)
}

// StepResult is the recorded outcome of one executed step.
type StepResult struct {
	Name     string
	Status   string
	Output   string
	Duration time.Duration
}

// Runner executes mutation plans. OnStepStart, when set, is called before
// each step runs; the transaction controller uses it to drop the live-path
// guard before the mutating step.
type Runner struct {
	KeepWorkdir bool
	OnStepStart func(step Step)
}

// Run executes the plan's steps strictly in order inside a freshly prepared
// working directory, stopping at the first step whose success contract
// fails. It returns the results of every step that ran; the error is a
// *StepError for a contract failure, or wraps ErrInterrupted when ctx was
// cancelled. A nil error means every step passed.
func (r *Runner) Run(ctx context.Context, plan *Plan) ([]StepResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Workdir == "" {
		return nil, fmt.Errorf("plan has no working directory")
	}

	if err := r.prepareWorkdir(plan.Workdir); err != nil {
		return nil, err
	}
	if !r.KeepWorkdir {
		defer os.RemoveAll(plan.Workdir)
	}

	var results []StepResult
	for _, step := range plan.Steps {
		// Cancellation is honored at step boundaries
		if err := ctx.Err(); err != nil {
			results = append(results, StepResult{Name: step.Name, Status: StatusInterrupted})
			return results, fmt.Errorf("before step %q: %w", step.Name, ErrInterrupted)
		}

		if r.OnStepStart != nil {
			r.OnStepStart(step)
		}

		result := r.runStep(ctx, plan, step)
		results = append(results, result)

		switch result.Status {
		case StatusOK:
			continue
		case StatusInterrupted:
			return results, fmt.Errorf("during step %q: %w", step.Name, ErrInterrupted)
		default:
			return results, &StepError{Step: step.Name, Reason: result.Output}
		}
	}
	return results, nil
}

// runStep executes a single step and evaluates its success contract.
func (r *Runner) runStep(ctx context.Context, plan *Plan, step Step) StepResult {
	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	dir := plan.Workdir
	if step.Dir != "" {
		dir = resolvePath(plan.Workdir, step.Dir)
	}

	start := time.Now()
	cmd := exec.CommandContext(stepCtx, step.Run[0], step.Run[1:]...)
	cmd.Dir = dir
	if len(step.Env) > 0 {
		cmd.Env = append(os.Environ(), step.Env...)
	}

	output, err := cmd.CombinedOutput()
	result := StepResult{
		Name:     step.Name,
		Output:   string(output),
		Duration: time.Since(start),
	}

	// Cancellation and deadline win over whatever error the killed process
	// produced.
	if ctx.Err() != nil {
		result.Status = StatusInterrupted
		return result
	}
	if stepCtx.Err() == context.DeadlineExceeded {
		result.Status = StatusTimedOut
		result.Output = fmt.Sprintf("timed out after %s\n%s", step.Timeout, result.Output)
		return result
	}

	exitStatus := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitStatus = exitErr.ExitCode()
		} else {
			result.Status = StatusFailed
			result.Output = fmt.Sprintf("%v\n%s", err, result.Output)
			return result
		}
	}

	if reason := evaluate(step, plan.Workdir, exitStatus, string(output)); reason != "" {
		result.Status = StatusFailed
		result.Output = fmt.Sprintf("%s\n%s", reason, result.Output)
		return result
	}

	result.Status = StatusOK
	return result
}

// evaluate applies a step's success contract. Returns "" on success, or a
// reason string describing the unmet expectation.
func evaluate(step Step, workdir string, exitStatus int, output string) string {
	if exitStatus != step.Expect.ExitStatus {
		return fmt.Sprintf("exit status %d, expected %d", exitStatus, step.Expect.ExitStatus)
	}

	if step.Expect.OutputMatch != "" {
		// Validated at plan load time
		re := regexp.MustCompile(step.Expect.OutputMatch)
		if !re.MatchString(output) {
			return fmt.Sprintf("output does not match %q", step.Expect.OutputMatch)
		}
	}

	if fc := step.Expect.FileContains; fc != nil {
		path := resolvePath(workdir, fc.Path)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("cannot read %s: %v", path, err)
		}
		re := regexp.MustCompile(fc.Pattern)
		if !re.Match(data) {
			return fmt.Sprintf("%s does not contain %q", path, fc.Pattern)
		}
	}
	return ""
}

// prepareWorkdir gives each run a fresh scratch directory so idempotent
// steps really are re-runnable and nothing leaks between transactions.
func (r *Runner) prepareWorkdir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear working directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	return nil
}

func resolvePath(workdir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workdir, path)
}
