package app

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/blackwell-systems/swapsafe/internal/output"
	"github.com/blackwell-systems/swapsafe/internal/snapshot"
	"github.com/blackwell-systems/swapsafe/internal/store"
)

// openStore opens the database and creates the schema.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return st, nil
}

// openSnapshots opens the store and a snapshot manager on top of it. The
// caller closes the returned store.
func openSnapshots() (*store.Store, *snapshot.Manager, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	dir, err := getSnapshotDir()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, snapshot.New(st, dir), nil
}

// newLogger returns a stdout logger with color decided by the terminal.
func newLogger() *output.Logger {
	log := output.NewLogger(os.Stdout)
	log.SetColor(output.IsColorEnabled())
	return log
}

// checkTools verifies every required tool resolves on PATH and returns the
// names of those that do not.
func checkTools(tools []string) []string {
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// confirm prompts for a y/N answer. Anything but an explicit yes declines.
func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)

	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
