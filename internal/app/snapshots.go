package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swapsafe/internal/output"
)

var (
	pruneFlagKeep      int
	pruneFlagOlderThan time.Duration
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots",
	Long: `List all snapshots, newest first.

Disposed snapshots have had their file copies deleted by 'snapshots
prune'; their records remain as an audit trail but they can no longer
be restored.`,
	Example: `  swapsafe snapshots
  swapsafe snapshots prune --keep 5`,
	RunE: runSnapshots,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Dispose old snapshot file copies",
	Long: `Delete the file copies of old snapshots to reclaim disk space.

The most recent snapshots are always kept (--keep, default 5). With
--older-than, only snapshots older than that are disposed. Records stay
in the database; a disposed snapshot shows in listings but cannot be
restored.`,
	Example: `  swapsafe snapshots prune --keep 5
  swapsafe snapshots prune --keep 3 --older-than 720h`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneFlagKeep, "keep", 5, "Number of recent snapshots to keep")
	pruneCmd.Flags().DurationVar(&pruneFlagOlderThan, "older-than", 0, "Only dispose snapshots older than this (e.g. 720h)")

	snapshotsCmd.AddCommand(pruneCmd)
	RootCmd.AddCommand(snapshotsCmd)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	st, snapMgr, err := openSnapshots()
	if err != nil {
		return err
	}
	defer st.Close()

	snaps, err := snapMgr.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	fmt.Print(output.RenderSnapshotTable(snaps))
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneFlagKeep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}

	st, snapMgr, err := openSnapshots()
	if err != nil {
		return err
	}
	defer st.Close()

	disposed, err := snapMgr.Prune(pruneFlagKeep, pruneFlagOlderThan)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	log := newLogger()
	if disposed == 0 {
		fmt.Println("Nothing to prune.")
	} else {
		log.Successf("disposed %d snapshot(s)", disposed)
	}
	return nil
}
