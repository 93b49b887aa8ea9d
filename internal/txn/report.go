package txn

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackwell-systems/swapsafe/internal/executor"
	"github.com/blackwell-systems/swapsafe/internal/probe"
)

// Outcome is a transaction's final disposition as stored and reported.
type Outcome string

const (
	// OutcomeCommitted: every step and check passed, the new state stands.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRolledBack: something went wrong and the original state was
	// restored in full.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeFailed: rollback was attempted but the restore itself failed.
	// The system may be inconsistent; the snapshot copies are retained for
	// manual recovery.
	OutcomeFailed Outcome = "failed"
	// OutcomeAborted: the transaction stopped before any mutation ran. The
	// live system was never touched.
	OutcomeAborted Outcome = "aborted"
)

// Report is the full record of one transaction run.
type Report struct {
	TxnID      string
	Component  string
	Outcome    Outcome
	FinalState State
	StartedAt  time.Time
	FinishedAt time.Time

	SnapshotID  int64
	SnapshotDir string

	Steps         []executor.StepResult
	Checks        []probe.Result
	OutsideWrites []string

	// Err is the error that ended the transaction, nil on commit.
	// RestoreErr is set only when the rollback itself failed.
	Err        error
	RestoreErr error
}

// ExitCode maps the outcome to the process exit code: 0 for a commit, 2 when
// the transaction aborted before touching the system, 1 for everything else.
func (r *Report) ExitCode() int {
	switch r.Outcome {
	case OutcomeCommitted:
		return 0
	case OutcomeAborted:
		return 2
	default:
		return 1
	}
}

// FailedChecks returns the names of verification checks that did not pass.
func (r *Report) FailedChecks() []string {
	var names []string
	for _, res := range r.Checks {
		if !res.Passed {
			names = append(names, res.Name)
		}
	}
	return names
}

// Summary is a one-line human description of how the transaction ended.
func (r *Report) Summary() string {
	switch r.Outcome {
	case OutcomeCommitted:
		return fmt.Sprintf("%s committed", r.Component)
	case OutcomeRolledBack:
		return fmt.Sprintf("%s rolled back: %v", r.Component, r.Err)
	case OutcomeFailed:
		return fmt.Sprintf("%s FAILED, system may be inconsistent: %v (snapshot copies retained at %s)",
			r.Component, r.RestoreErr, r.SnapshotDir)
	case OutcomeAborted:
		return fmt.Sprintf("%s aborted before mutation: %v", r.Component, r.Err)
	}
	return string(r.Outcome)
}

// VerifyError reports verification checks that did not pass.
type VerifyError struct {
	Failed []string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed: %s", strings.Join(e.Failed, ", "))
}
