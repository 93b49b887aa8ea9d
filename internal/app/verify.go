package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/config"
	"github.com/blackwell-systems/swapsafe/internal/output"
	"github.com/blackwell-systems/swapsafe/internal/probe"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <plan.yaml>",
	Short: "Run a plan's verification checks against the live system",
	Long: `Run only the verification checks from a plan file, without snapshots
or mutation. Useful to confirm the current state of a component, before
an apply or after an undo.

Exits 0 when every check passes, 1 otherwise.`,
	Example: `  swapsafe verify libinput.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runVerify,
}

func init() {
	RootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	file, err := config.Load(args[0])
	if err != nil {
		return err
	}
	checks, err := file.ProbeChecks()
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		fmt.Println("Plan declares no checks.")
		return nil
	}

	spinner := output.NewSpinner(fmt.Sprintf("Running %d check(s)", len(checks)))
	spinner.Start()
	results := probe.NewProber().RunChecks(cmd.Context(), checks)
	spinner.Stop()

	rows := make([]output.CheckRow, len(results))
	for i, res := range results {
		rows[i] = output.CheckRow{Name: res.Name, Passed: res.Passed, Detail: res.Detail}
	}
	fmt.Print(output.RenderCheckTable(rows))

	if !probe.AllPassed(results) {
		os.Exit(1)
	}
	return nil
}
