package executor

import (
	"fmt"
	"regexp"
	"time"
)

// FileMatch is a content predicate: Path (relative paths resolve against the
// working directory) must contain a match of Pattern.
type FileMatch struct {
	Path    string
	Pattern string
}

// Predicate is a step's success contract. The zero value means "exit status
// 0", which is the contract for most steps.
type Predicate struct {
	ExitStatus   int
	OutputMatch  string
	FileContains *FileMatch
}

// Step is one external operation in a mutation plan. Run is the argv; the
// command runs inside the plan's scratch working directory (or Dir, resolved
// against it). Mutates marks the single step allowed to touch live system
// state; everything before it must confine itself to the working directory.
type Step struct {
	Name    string
	Run     []string
	Dir     string
	Env     []string
	Timeout time.Duration
	Mutates bool
	Expect  Predicate
}

// Plan is an ordered sequence of steps operating in a scratch working
// directory.
type Plan struct {
	Component string
	Workdir   string
	Steps     []Step
}

// Validate checks a plan's internal consistency: non-empty unique step
// names, non-empty argv, compilable predicates, and at most one mutating
// step which must come last.
func (p *Plan) Validate() error {
	if p.Component == "" {
		return fmt.Errorf("plan has no component name")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	names := make(map[string]bool)
	for i, step := range p.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if names[step.Name] {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		names[step.Name] = true

		if len(step.Run) == 0 {
			return fmt.Errorf("step %q has no command", step.Name)
		}
		if step.Expect.OutputMatch != "" {
			if _, err := regexp.Compile(step.Expect.OutputMatch); err != nil {
				return fmt.Errorf("step %q has invalid output pattern: %w", step.Name, err)
			}
		}
		if fc := step.Expect.FileContains; fc != nil {
			if fc.Path == "" {
				return fmt.Errorf("step %q file predicate has no path", step.Name)
			}
			if _, err := regexp.Compile(fc.Pattern); err != nil {
				return fmt.Errorf("step %q has invalid file pattern: %w", step.Name, err)
			}
		}
		if step.Mutates && i != len(p.Steps)-1 {
			return fmt.Errorf("step %q mutates live state but is not the final step", step.Name)
		}
	}
	return nil
}

// MutatingStep returns the name of the plan's mutating step, or "" when the
// plan never touches live state.
func (p *Plan) MutatingStep() string {
	for _, step := range p.Steps {
		if step.Mutates {
			return step.Name
		}
	}
	return ""
}
