package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/config"
	"github.com/blackwell-systems/swapsafe/internal/executor"
	"github.com/blackwell-systems/swapsafe/internal/output"
	"github.com/blackwell-systems/swapsafe/internal/probe"
	"github.com/blackwell-systems/swapsafe/internal/txn"
)

var (
	applyFlagYes         bool
	applyFlagDryRun      bool
	applyFlagKeepWorkdir bool
	applyFlagNoVerify    bool
	applyFlagNoGuard     bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <plan.yaml>",
	Short: "Run a mutation plan inside a snapshot-backed transaction",
	Long: `Run a plan's steps against the live system with full rollback safety.

The transaction captures a snapshot of the plan's resources first, then
runs the steps in order inside a scratch working directory, then runs
the verification checks. Any failure, timeout, or interruption restores
the snapshot; only a fully verified run commits.

Exit codes:
  0  committed
  1  rolled back, or rollback itself failed
  2  aborted before any mutation (preflight, declined prompt, snapshot
     capture failure)`,
	Example: `  swapsafe apply libinput.yaml
  swapsafe apply libinput.yaml --yes        # no confirmation prompt
  swapsafe apply libinput.yaml --dry-run    # validate and show, run nothing
  swapsafe apply libinput.yaml --no-verify  # skip checks (still snapshots)`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyFlagYes, "yes", false, "Skip confirmation prompt")
	applyCmd.Flags().BoolVar(&applyFlagDryRun, "dry-run", false, "Validate and display the plan without running it")
	applyCmd.Flags().BoolVar(&applyFlagKeepWorkdir, "keep-workdir", false, "Keep the scratch working directory after the run")
	applyCmd.Flags().BoolVar(&applyFlagNoVerify, "no-verify", false, "Skip verification checks")
	applyCmd.Flags().BoolVar(&applyFlagNoGuard, "no-guard", false, "Disable live-path write detection during scratch steps")

	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	log := newLogger()

	file, err := config.Load(args[0])
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	workdirRoot, err := getWorkdirRoot()
	if err != nil {
		return err
	}
	plan, err := file.Plan(filepath.Join(workdirRoot, file.Component))
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	var checks []probe.Check
	if !applyFlagNoVerify {
		checks, err = file.ProbeChecks()
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(2)
		}
	}

	if missing := checkTools(file.Tools); len(missing) > 0 {
		log.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
		os.Exit(2)
	}

	if applyFlagDryRun {
		printPlan(file, plan, checks)
		return nil
	}

	set := file.ResourceSet()
	paths, err := set.Expand()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	fmt.Printf("Component: %s\n", file.Component)
	fmt.Printf("Resources: %d path(s)\n", len(paths))
	fmt.Printf("Steps:     %d (mutating: %s)\n", len(plan.Steps), mutatingLabel(plan))
	fmt.Printf("Checks:    %d\n", len(checks))
	fmt.Println()

	if !applyFlagYes {
		if !confirm(fmt.Sprintf("Apply %s to the live system?", file.Component)) {
			fmt.Println("Cancelled.")
			os.Exit(2)
		}
	}

	st, snapMgr, err := openSnapshots()
	if err != nil {
		return err
	}
	defer st.Close()

	controller := &txn.Controller{
		Snapshots:    snapMgr,
		Runner:       &executor.Runner{KeepWorkdir: applyFlagKeepWorkdir},
		Prober:       probe.NewProber(),
		Store:        st,
		Log:          log,
		DisableGuard: applyFlagNoGuard,
	}

	// Ctrl-C and SIGTERM cancel the context; the controller rolls back.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := controller.Run(ctx, set, plan, checks)
	printReport(report)

	if code := report.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

func mutatingLabel(plan *executor.Plan) string {
	if name := plan.MutatingStep(); name != "" {
		return name
	}
	return "none"
}

// printReport renders a finished transaction to stdout.
func printReport(report *txn.Report) {
	fmt.Println()

	if len(report.Steps) > 0 {
		rows := make([]output.StepRow, len(report.Steps))
		for i, step := range report.Steps {
			rows[i] = output.StepRow{Name: step.Name, Status: step.Status, Duration: step.Duration}
		}
		fmt.Print(output.RenderStepTable(rows))
	}

	if len(report.Checks) > 0 {
		rows := make([]output.CheckRow, len(report.Checks))
		for i, check := range report.Checks {
			rows[i] = output.CheckRow{Name: check.Name, Passed: check.Passed, Detail: check.Detail}
		}
		fmt.Print(output.RenderCheckTable(rows))
	}

	for _, path := range report.OutsideWrites {
		fmt.Printf("  ⚠ outside write during transaction: %s\n", path)
	}

	fmt.Println()
	fmt.Printf("Transaction %s: %s\n", report.TxnID, report.Summary())
	if report.SnapshotID != 0 && report.Outcome == txn.OutcomeCommitted {
		fmt.Printf("Snapshot %d retained; 'swapsafe undo %d' reverses this change.\n",
			report.SnapshotID, report.SnapshotID)
	}
}
