package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/swapsafe/internal/store"
)

// RenderSnapshotTable renders retained snapshots, newest first.
func RenderSnapshotTable(snaps []*store.Snapshot) string {
	if len(snaps) == 0 {
		return "No snapshots found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-5s %-20s %-24s %-6s %-10s %s\n",
		"ID", "CREATED", "COMPONENT", "FILES", "SIZE", "STATUS"))
	sb.WriteString(strings.Repeat("-", 78) + "\n")

	for _, snap := range snaps {
		status := "retained"
		if snap.Disposed {
			status = "disposed"
		}
		sb.WriteString(fmt.Sprintf("%-5d %-20s %-24s %-6d %-10s %s\n",
			snap.ID,
			snap.CreatedAt.Format("2006-01-02 15:04:05"),
			truncate(snap.Component, 24),
			snap.FileCount,
			humanize.Bytes(uint64(snap.TotalBytes)),
			status))
	}
	return sb.String()
}

// RenderTransactionTable renders recent transactions, newest first.
func RenderTransactionTable(txns []*store.Transaction) string {
	if len(txns) == 0 {
		return "No transactions recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %-20s %-24s %-12s %s\n",
		"ID", "STARTED", "COMPONENT", "OUTCOME", "DURATION"))
	sb.WriteString(strings.Repeat("-", 78) + "\n")

	for _, txn := range txns {
		duration := "-"
		if !txn.FinishedAt.IsZero() {
			duration = txn.FinishedAt.Sub(txn.StartedAt).Round(time.Second).String()
		}
		outcome := txn.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		sb.WriteString(fmt.Sprintf("%-10s %-20s %-24s %-12s %s\n",
			truncate(txn.ID, 10),
			txn.StartedAt.Format("2006-01-02 15:04:05"),
			truncate(txn.Component, 24),
			outcome,
			duration))
	}
	return sb.String()
}

// StepRow is one row of a step-result table.
type StepRow struct {
	Name     string
	Status   string
	Duration time.Duration
}

// RenderStepTable renders per-step results of a mutation run.
func RenderStepTable(rows []StepRow) string {
	if len(rows) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %-20s %-12s %s\n", "STEP", "STATUS", "DURATION"))
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %-20s %-12s %s\n",
			truncate(row.Name, 20), row.Status, row.Duration.Round(time.Millisecond)))
	}
	return sb.String()
}

// CheckRow is one row of a verification-result table.
type CheckRow struct {
	Name   string
	Passed bool
	Detail string
}

// RenderCheckTable renders per-predicate verification results.
func RenderCheckTable(rows []CheckRow) string {
	if len(rows) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, row := range rows {
		mark := "✓"
		if !row.Passed {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("  %s %-20s %s\n", mark, truncate(row.Name, 20), row.Detail))
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
