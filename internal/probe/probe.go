// Package probe verifies post-mutation system state. Each check is a small
// predicate against the live system; results are reported per predicate so
// the caller can say exactly which expectation went unmet.
package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// Check kinds.
const (
	KindCommandVersion  = "command_version"
	KindLdcacheContains = "ldcache_contains"
	KindFileContains    = "file_contains"
	KindFileNotContains = "file_not_contains"
	KindFileExists      = "file_exists"
)

// Check is one verification predicate. Which fields apply depends on Kind:
// command_version uses Run and Pattern, ldcache_contains uses Library,
// the file kinds use Path (and Pattern for the contains variants).
type Check struct {
	Name    string
	Kind    string
	Run     []string
	Pattern string
	Path    string
	Library string
}

// Validate checks that the check's fields are consistent with its kind.
func (c *Check) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("check has no name")
	}
	switch c.Kind {
	case KindCommandVersion:
		if len(c.Run) == 0 {
			return fmt.Errorf("check %q has no command", c.Name)
		}
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("check %q has invalid pattern: %w", c.Name, err)
		}
	case KindLdcacheContains:
		if c.Library == "" {
			return fmt.Errorf("check %q has no library name", c.Name)
		}
	case KindFileContains, KindFileNotContains:
		if c.Path == "" {
			return fmt.Errorf("check %q has no path", c.Name)
		}
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("check %q has invalid pattern: %w", c.Name, err)
		}
	case KindFileExists:
		if c.Path == "" {
			return fmt.Errorf("check %q has no path", c.Name)
		}
	default:
		return fmt.Errorf("check %q has unknown kind %q", c.Name, c.Kind)
	}
	return nil
}

// Result is the structured outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Prober runs verification checks. LdconfigArgv is the command used to dump
// the dynamic-linker cache; overridable for testing.
type Prober struct {
	LdconfigArgv []string
}

// NewProber returns a Prober with the standard ldconfig invocation.
func NewProber() *Prober {
	return &Prober{LdconfigArgv: []string{"ldconfig", "-p"}}
}

// RunChecks evaluates every check and returns one result per check,
// in order. A check that cannot be evaluated fails with the error as its
// detail; evaluation never stops early.
func (p *Prober) RunChecks(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, p.runCheck(ctx, check))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (p *Prober) runCheck(ctx context.Context, check Check) Result {
	result := Result{Name: check.Name}

	if err := check.Validate(); err != nil {
		result.Detail = err.Error()
		return result
	}

	switch check.Kind {
	case KindCommandVersion:
		output, err := commandOutput(ctx, check.Run)
		if err != nil {
			result.Detail = fmt.Sprintf("command failed: %v", err)
			return result
		}
		re := regexp.MustCompile(check.Pattern)
		if match := re.FindString(output); match != "" {
			result.Passed = true
			result.Detail = match
		} else {
			result.Detail = fmt.Sprintf("output %q does not match %q", strings.TrimSpace(output), check.Pattern)
		}

	case KindLdcacheContains:
		output, err := commandOutput(ctx, p.LdconfigArgv)
		if err != nil {
			result.Detail = fmt.Sprintf("ldconfig failed: %v", err)
			return result
		}
		if ldcacheHas(output, check.Library) {
			result.Passed = true
			result.Detail = check.Library
		} else {
			result.Detail = fmt.Sprintf("%s not in linker cache", check.Library)
		}

	case KindFileContains, KindFileNotContains:
		data, err := os.ReadFile(check.Path)
		if err != nil {
			result.Detail = fmt.Sprintf("cannot read %s: %v", check.Path, err)
			return result
		}
		re := regexp.MustCompile(check.Pattern)
		found := re.Match(data)
		if check.Kind == KindFileContains {
			result.Passed = found
		} else {
			result.Passed = !found
		}
		if result.Passed {
			result.Detail = check.Path
		} else {
			verb := "does not contain"
			if check.Kind == KindFileNotContains {
				verb = "still contains"
			}
			result.Detail = fmt.Sprintf("%s %s %q", check.Path, verb, check.Pattern)
		}

	case KindFileExists:
		if _, err := os.Stat(check.Path); err != nil {
			result.Detail = fmt.Sprintf("%s: %v", check.Path, err)
		} else {
			result.Passed = true
			result.Detail = check.Path
		}
	}

	return result
}

// ldcacheHas scans ldconfig -p output for a library name. Lines look like
// "        libinput.so.10 (libc6,x86-64) => /lib/x86_64-linux-gnu/libinput.so.10".
func ldcacheHas(output, library string) bool {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == library {
			return true
		}
	}
	return false
}

func commandOutput(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w (output: %s)", argv[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
