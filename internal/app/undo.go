package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/output"
	"github.com/blackwell-systems/swapsafe/internal/snapshot"
)

var (
	undoFlagList bool
	undoFlagYes  bool
)

var undoCmd = &cobra.Command{
	Use:   "undo [snapshot-id | latest]",
	Short: "Restore the live system from a snapshot",
	Long: `Restore the files captured in a snapshot, byte-for-byte.

Snapshots are taken before every apply and retained after commit, so
undo reverses a committed change just as well as it recovers from a
mess. Paths the snapshot recorded as absent are deleted.

Arguments:
  snapshot-id  The numeric ID of the snapshot to restore
  latest       Restore the most recent snapshot`,
	Example: `  swapsafe undo --list    # List all snapshots
  swapsafe undo latest    # Restore the most recent snapshot
  swapsafe undo 42        # Restore snapshot ID 42
  swapsafe undo 42 --yes  # Restore without confirmation`,
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().BoolVar(&undoFlagList, "list", false, "List available snapshots")
	undoCmd.Flags().BoolVar(&undoFlagYes, "yes", false, "Skip confirmation prompt")

	RootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	st, snapMgr, err := openSnapshots()
	if err != nil {
		return err
	}
	defer st.Close()

	if undoFlagList {
		snaps, err := snapMgr.ListSnapshots()
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		fmt.Print(output.RenderSnapshotTable(snaps))
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("snapshot ID or 'latest' required\n\nUsage: swapsafe undo [snapshot-id | latest]\n\nUse 'swapsafe undo --list' to see available snapshots")
	}

	var snap *snapshot.Snapshot
	if strings.ToLower(args[0]) == "latest" {
		snap, err = snapMgr.Latest()
	} else {
		var id int64
		id, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid snapshot ID %q: use a number or 'latest'", args[0])
		}
		snap, err = snapMgr.Load(id)
	}
	if err != nil {
		return err
	}

	log := newLogger()
	fmt.Printf("Snapshot %d: %s, %d file(s)\n", snap.ID, snap.Manifest.Component, len(snap.Manifest.Files))

	if !undoFlagYes {
		if !confirm(fmt.Sprintf("Restore %s from snapshot %d?", snap.Manifest.Component, snap.ID)) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := snapMgr.Restore(snap); err != nil {
		var restoreErr *snapshot.RestoreError
		if errors.As(err, &restoreErr) {
			for _, f := range restoreErr.Failures {
				log.Errorf("%s: %v", f.Path, f.Err)
			}
			log.Errorf("restore incomplete; snapshot copies retained at %s", snap.Dir)
			os.Exit(1)
		}
		return err
	}

	log.Successf("restored %s from snapshot %d", snap.Manifest.Component, snap.ID)
	return nil
}
