package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check installation health",
	Long: `Runs diagnostic checks on your swapsafe installation.

Checks:
  • State directory exists and is writable
  • Database opens and has the expected schema
  • Snapshot directories match the database records
  • ldconfig is available for linker-cache checks`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running swapsafe diagnostics...")
	fmt.Println()

	// Critical issues exit 1, warning-only runs exit 2.
	criticalIssues := 0
	warningIssues := 0

	// Check 1: State directory writable
	dir, err := getStateDir()
	if err != nil {
		fmt.Println("✗ State directory error:", err)
		criticalIssues++
	} else if probeErr := touchProbe(dir); probeErr != nil {
		fmt.Println("✗ State directory not writable:", probeErr)
		criticalIssues++
	} else {
		fmt.Println("✓ State directory writable:", dir)
	}

	// Check 2: Database opens and schema is in place
	var snapRecordDirs map[string]bool
	if criticalIssues == 0 {
		st, err := openStore()
		if err != nil {
			fmt.Println("✗ Database error:", err)
			criticalIssues++
		} else {
			snaps, err := st.ListSnapshots()
			if err != nil {
				fmt.Println("✗ Database schema error:", err)
				criticalIssues++
			} else {
				fmt.Printf("✓ Database healthy (%d snapshot record(s))\n", len(snaps))
				snapRecordDirs = make(map[string]bool)
				for _, snap := range snaps {
					if !snap.Disposed {
						snapRecordDirs[snap.Dir] = true
					}
				}
			}
			st.Close()
		}
	}

	// Check 3: Snapshot directories vs records
	if snapRecordDirs != nil {
		snapDir, err := getSnapshotDir()
		if err == nil {
			orphans, missing := reconcileSnapshots(snapDir, snapRecordDirs)
			if orphans == 0 && missing == 0 {
				fmt.Println("✓ Snapshot directories match database records")
			}
			if orphans > 0 {
				fmt.Printf("⚠ %d snapshot director(ies) on disk with no record\n", orphans)
				fmt.Println("  Action: Remove them by hand; swapsafe cannot restore from them")
				warningIssues++
			}
			if missing > 0 {
				fmt.Printf("⚠ %d retained snapshot record(s) whose directory is missing\n", missing)
				fmt.Println("  Action: These cannot be restored; 'swapsafe snapshots' shows IDs")
				warningIssues++
			}
		}
	}

	// Check 4: ldconfig available
	if _, err := exec.LookPath("ldconfig"); err != nil {
		fmt.Println("⚠ ldconfig not found on PATH")
		fmt.Println("  Action: ldcache_contains checks will fail; install ldconfig or drop them")
		warningIssues++
	} else {
		fmt.Println("✓ ldconfig available")
	}

	fmt.Println()
	switch {
	case criticalIssues > 0:
		fmt.Printf("Found %d critical issue(s).\n", criticalIssues)
		os.Exit(1)
	case warningIssues > 0:
		fmt.Printf("Found %d warning(s).\n", warningIssues)
		os.Exit(2)
	default:
		fmt.Println("All checks passed.")
	}
	return nil
}

// touchProbe verifies a directory is writable by creating and removing a
// file in it.
func touchProbe(dir string) error {
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}

// reconcileSnapshots compares on-disk snapshot directories with retained
// database records. Returns directories with no record, and records with no
// directory.
func reconcileSnapshots(snapDir string, recordDirs map[string]bool) (orphans, missing int) {
	onDisk := make(map[string]bool)
	entries, err := os.ReadDir(snapDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				onDisk[filepath.Join(snapDir, entry.Name())] = true
			}
		}
	}

	for dir := range onDisk {
		if !recordDirs[dir] {
			orphans++
		}
	}
	for dir := range recordDirs {
		if !onDisk[dir] {
			missing++
		}
	}
	return orphans, missing
}
