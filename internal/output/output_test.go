package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/swapsafe/internal/store"
)

func TestLoggerSeverities(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.SetColor(false)

	l.Infof("capturing %d paths", 3)
	l.Successf("snapshot %d durable", 7)
	l.Warnf("outside write to %s", "/opt/lib/libx.so")
	l.Errorf("step %s failed", "build")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "capturing 3 paths" {
		t.Errorf("Unexpected info line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "✓ ") {
		t.Errorf("Expected success prefix, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "⚠ ") {
		t.Errorf("Expected warning prefix, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "✗ ") {
		t.Errorf("Expected error prefix, got %q", lines[3])
	}
	if strings.Contains(buf.String(), "\033[") {
		t.Error("Expected no ANSI codes with color off")
	}
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.SetColor(true)

	l.Successf("done")
	if !strings.Contains(buf.String(), colorGreen) {
		t.Error("Expected green ANSI code with color on")
	}
	if !strings.Contains(buf.String(), colorReset) {
		t.Error("Expected reset code with color on")
	}
}

func TestRenderSnapshotTable(t *testing.T) {
	snaps := []*store.Snapshot{
		{
			ID:         2,
			CreatedAt:  time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
			Component:  "libinput-nodebounce",
			FileCount:  3,
			TotalBytes: 2 * 1024 * 1024,
		},
		{
			ID:        1,
			CreatedAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
			Component: "libinput-nodebounce",
			Disposed:  true,
		},
	}

	out := RenderSnapshotTable(snaps)
	if !strings.Contains(out, "libinput-nodebounce") {
		t.Errorf("Expected component name in table:\n%s", out)
	}
	if !strings.Contains(out, "retained") || !strings.Contains(out, "disposed") {
		t.Errorf("Expected status column values:\n%s", out)
	}
}

func TestRenderSnapshotTableEmpty(t *testing.T) {
	out := RenderSnapshotTable(nil)
	if !strings.Contains(out, "No snapshots") {
		t.Errorf("Unexpected empty table output: %q", out)
	}
}

func TestRenderTransactionTable(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	txns := []*store.Transaction{
		{
			ID:         "0f9a4c31-1111-2222-3333-444455556666",
			Component:  "libinput-nodebounce",
			StartedAt:  started,
			FinishedAt: started.Add(90 * time.Second),
			Outcome:    "committed",
		},
		{
			ID:        "abcd",
			Component: "libx",
			StartedAt: started,
		},
	}

	out := RenderTransactionTable(txns)
	if !strings.Contains(out, "committed") {
		t.Errorf("Expected outcome in table:\n%s", out)
	}
	if !strings.Contains(out, "1m30s") {
		t.Errorf("Expected duration in table:\n%s", out)
	}
	if !strings.Contains(out, "unknown") {
		t.Errorf("Expected unknown outcome for unfinished transaction:\n%s", out)
	}
}

func TestRenderStepTable(t *testing.T) {
	out := RenderStepTable([]StepRow{
		{Name: "fetch", Status: "ok", Duration: 1200 * time.Millisecond},
		{Name: "build", Status: "failed", Duration: 300 * time.Millisecond},
	})
	if !strings.Contains(out, "fetch") || !strings.Contains(out, "failed") {
		t.Errorf("Unexpected step table:\n%s", out)
	}
}

func TestRenderCheckTable(t *testing.T) {
	out := RenderCheckTable([]CheckRow{
		{Name: "version", Passed: true, Detail: "1.25.0"},
		{Name: "linked", Passed: false, Detail: "libx.so.1 not in linker cache"},
	})
	if !strings.Contains(out, "✓") || !strings.Contains(out, "✗") {
		t.Errorf("Expected pass/fail marks:\n%s", out)
	}
}

func TestSpinnerNonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Running step build")
	s.SetWriter(&buf)

	s.Start()
	s.Stop()

	if !strings.Contains(buf.String(), "Running step build...") {
		t.Errorf("Expected one-shot message on non-TTY, got %q", buf.String())
	}
}

func TestSpinnerStopWithMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("working")
	s.SetWriter(&buf)

	s.Start()
	s.StopWithMessage("✓ done")

	if !strings.Contains(buf.String(), "✓ done") {
		t.Errorf("Expected final message, got %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged, got %q", got)
	}
	if got := truncate("a-very-long-component-name", 10); got != "a-very-..." {
		t.Errorf("Expected truncation, got %q", got)
	}
}
