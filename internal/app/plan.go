package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/config"
	"github.com/blackwell-systems/swapsafe/internal/executor"
	"github.com/blackwell-systems/swapsafe/internal/probe"
)

var planCmd = &cobra.Command{
	Use:   "plan <plan.yaml>",
	Short: "Validate a plan file and show what it would do",
	Long: `Parse and validate a plan file without touching the system.

Shows the component, the live paths its patterns currently expand to,
the steps in execution order, and the verification checks. A plan that
prints cleanly here is a plan 'swapsafe apply' will accept.`,
	Example: `  swapsafe plan libinput.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPlan,
}

func init() {
	RootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	file, err := config.Load(args[0])
	if err != nil {
		return err
	}

	workdirRoot, err := getWorkdirRoot()
	if err != nil {
		return err
	}
	plan, err := file.Plan(filepath.Join(workdirRoot, file.Component))
	if err != nil {
		return err
	}
	checks, err := file.ProbeChecks()
	if err != nil {
		return err
	}

	printPlan(file, plan, checks)
	return nil
}

// printPlan renders a validated plan for review.
func printPlan(file *config.File, plan *executor.Plan, checks []probe.Check) {
	fmt.Printf("Component: %s\n", file.Component)
	fmt.Printf("Workdir:   %s\n", plan.Workdir)
	if len(file.Tools) > 0 {
		fmt.Printf("Tools:     %s\n", strings.Join(file.Tools, ", "))
	}

	fmt.Println("\nResources:")
	for _, pattern := range file.Resources {
		fmt.Printf("  %s\n", pattern)
	}
	if paths, err := file.ResourceSet().Expand(); err == nil {
		fmt.Printf("  (%d path(s) currently)\n", len(paths))
	}

	fmt.Println("\nSteps:")
	for i, step := range plan.Steps {
		marker := " "
		if step.Mutates {
			marker = "*"
		}
		fmt.Printf("  %d.%s %-20s %s\n", i+1, marker, step.Name, strings.Join(step.Run, " "))
		if step.Timeout > 0 {
			fmt.Printf("       timeout: %s\n", step.Timeout)
		}
	}
	if plan.MutatingStep() != "" {
		fmt.Println("  (* mutates live state)")
	}

	if len(checks) > 0 {
		fmt.Println("\nChecks:")
		for _, check := range checks {
			fmt.Printf("  %-20s %s\n", check.Name, check.Kind)
		}
	}
}
