package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dbPath   string
	stateDir string

	// RootCmd is the root command for swapsafe
	RootCmd = &cobra.Command{
		Use:   "swapsafe",
		Short: "Safe, reversible replacement of live system components",
		Long: `swapsafe replaces live system components (libraries, binaries, config
trees) behind a snapshot-backed transaction: capture the current state,
run the mutation plan, verify the result, and either commit or restore
everything byte-for-byte.

Every apply is all-or-nothing. A failing step, a failing verification
check, a timeout, or Ctrl-C all end with the original files back in
place. Snapshots are kept after the transaction so 'swapsafe undo' can
reverse a committed change later.

Quick Start:
  1. Write a plan file describing the component and its steps
  2. swapsafe plan my-component.yaml     # validate and review
  3. swapsafe apply my-component.yaml    # run the transaction
  4. swapsafe undo latest                # if you change your mind

Examples:
  # Validate a plan without running it
  swapsafe plan libinput.yaml

  # Run the full transaction
  swapsafe apply libinput.yaml

  # Run only the verification checks
  swapsafe verify libinput.yaml

  # List snapshots and restore one
  swapsafe snapshots
  swapsafe undo 42

  # Reclaim disk from old snapshots
  swapsafe snapshots prune --keep 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("swapsafe: safe, reversible replacement of live system components")
			fmt.Println()
			fmt.Println("Run 'swapsafe plan <file>' to validate a plan.")
			fmt.Println("Run 'swapsafe apply <file>' to run a transaction.")
			fmt.Println("Run 'swapsafe --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: <state-dir>/swapsafe.db)")
	RootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (default: ~/.swapsafe)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// getStateDir returns the state directory, creating it if needed.
func getStateDir() (string, error) {
	dir := stateDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".swapsafe")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "swapsafe.db"), nil
}

// getSnapshotDir returns the directory snapshot copies are stored under.
func getSnapshotDir() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snapshots"), nil
}

// getWorkdirRoot returns the default scratch directory root for plans that
// do not declare their own workdir.
func getWorkdirRoot() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "work"), nil
}
