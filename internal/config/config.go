// Package config loads and validates YAML plan files. A plan file names the
// component, the live paths it owns, the tools it needs, the mutation steps,
// and the verification checks; everything a transaction needs in one
// document.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/swapsafe/internal/executor"
	"github.com/blackwell-systems/swapsafe/internal/probe"
	"github.com/blackwell-systems/swapsafe/internal/resource"
)

// File is a parsed plan file.
type File struct {
	Component string        `yaml:"component"`
	Resources []string      `yaml:"resources"`
	Workdir   string        `yaml:"workdir"`
	Tools     []string      `yaml:"tools"`
	Steps     []StepConfig  `yaml:"steps"`
	Checks    []CheckConfig `yaml:"checks"`
}

// StepConfig is one step as written in a plan file. Run is an argv array,
// never a shell string. Timeout uses Go duration syntax ("90s", "20m").
type StepConfig struct {
	Name    string            `yaml:"name"`
	Run     []string          `yaml:"run"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout string            `yaml:"timeout"`
	Mutates bool              `yaml:"mutates"`
	Expect  *ExpectConfig     `yaml:"expect"`
}

// ExpectConfig is a step's success contract. Omitted means exit status 0.
type ExpectConfig struct {
	ExitStatus   int              `yaml:"exit_status"`
	OutputMatch  string           `yaml:"output_match"`
	FileContains *FileMatchConfig `yaml:"file_contains"`
}

// FileMatchConfig is a file-content predicate.
type FileMatchConfig struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern"`
}

// CheckConfig is one verification check as written in a plan file.
type CheckConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Run     []string `yaml:"run"`
	Pattern string   `yaml:"pattern"`
	Path    string   `yaml:"path"`
	Library string   `yaml:"library"`
}

// Load reads and parses a plan file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var file File
	if err := unmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}

	if file.Component == "" {
		return nil, fmt.Errorf("plan file %s has no component name", path)
	}
	if len(file.Resources) == 0 {
		return nil, fmt.Errorf("plan file %s declares no resources", path)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("plan file %s has no steps", path)
	}
	return &file, nil
}

// ResourceSet returns the live paths the plan's component owns.
func (f *File) ResourceSet() *resource.Set {
	return resource.New(f.Component, f.Resources)
}

// Plan converts the file's steps to an executable plan. A plan with no
// workdir of its own gets defaultWorkdir. The result is validated.
func (f *File) Plan(defaultWorkdir string) (*executor.Plan, error) {
	workdir := f.Workdir
	if workdir == "" {
		workdir = defaultWorkdir
	}

	plan := &executor.Plan{
		Component: f.Component,
		Workdir:   workdir,
	}

	for _, sc := range f.Steps {
		step := executor.Step{
			Name:    sc.Name,
			Run:     sc.Run,
			Dir:     sc.Dir,
			Env:     envList(sc.Env),
			Mutates: sc.Mutates,
		}

		if sc.Timeout != "" {
			timeout, err := time.ParseDuration(sc.Timeout)
			if err != nil {
				return nil, fmt.Errorf("step %q has invalid timeout %q: %w", sc.Name, sc.Timeout, err)
			}
			step.Timeout = timeout
		}

		if sc.Expect != nil {
			step.Expect = executor.Predicate{
				ExitStatus:  sc.Expect.ExitStatus,
				OutputMatch: sc.Expect.OutputMatch,
			}
			if fc := sc.Expect.FileContains; fc != nil {
				step.Expect.FileContains = &executor.FileMatch{Path: fc.Path, Pattern: fc.Pattern}
			}
		}

		plan.Steps = append(plan.Steps, step)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// ProbeChecks converts the file's checks. The result is validated.
func (f *File) ProbeChecks() ([]probe.Check, error) {
	var checks []probe.Check
	for _, cc := range f.Checks {
		check := probe.Check{
			Name:    cc.Name,
			Kind:    cc.Type,
			Run:     cc.Run,
			Pattern: cc.Pattern,
			Path:    cc.Path,
			Library: cc.Library,
		}
		if err := check.Validate(); err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// envList flattens an env map to sorted KEY=VALUE strings so a plan's
// environment is deterministic.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// unmarshalStrict decodes YAML rejecting unknown fields, so typos in a plan
// fail loudly instead of silently dropping a predicate.
func unmarshalStrict(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("empty document")
		}
		return err
	}
	return nil
}
