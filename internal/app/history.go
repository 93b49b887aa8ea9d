package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/output"
)

var historyFlagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transactions",
	Long: `Show recent transactions, newest first: what was applied, when, and
how it ended (committed, rolled_back, failed, aborted).`,
	Example: `  swapsafe history
  swapsafe history --limit 50`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlagLimit, "limit", 20, "Maximum transactions to show")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	txns, err := st.ListTransactions(historyFlagLimit)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}
	fmt.Print(output.RenderTransactionTable(txns))
	return nil
}
