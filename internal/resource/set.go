package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AbsentDigest is the fingerprint value recorded for a path that does not
// exist. Restoring a snapshot must reproduce absence as faithfully as bytes.
const AbsentDigest = "absent"

// Set identifies the filesystem paths that make up one replaceable system
// component. Patterns are ordered and may contain glob metacharacters.
type Set struct {
	Name     string
	Patterns []string
}

// New creates a Set from a component name and path patterns.
func New(name string, patterns []string) *Set {
	return &Set{Name: name, Patterns: patterns}
}

// Expand resolves the set's patterns to a sorted, deduplicated list of
// concrete file paths.
//
// Glob patterns contribute only paths that currently exist. A literal
// pattern (no glob metacharacters) is always included even when the path is
// missing, so a snapshot can record its absence and a restore can delete
// anything a mutation created there. Matched directories are walked and
// contribute the files beneath them.
func (s *Set) Expand() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, pattern := range s.Patterns {
		if pattern == "" {
			return nil, fmt.Errorf("resource set %s: empty pattern", s.Name)
		}
		if !filepath.IsAbs(pattern) {
			return nil, fmt.Errorf("resource set %s: pattern %q is not absolute", s.Name, pattern)
		}

		if !hasGlobMeta(pattern) {
			info, err := os.Lstat(pattern)
			if err != nil {
				if os.IsNotExist(err) {
					add(pattern) // captured as a tombstone
					continue
				}
				return nil, fmt.Errorf("failed to stat %s: %w", pattern, err)
			}
			if info.IsDir() {
				if err := walkInto(pattern, add); err != nil {
					return nil, err
				}
			} else {
				add(pattern)
			}
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Lstat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if info.IsDir() {
				if err := walkInto(match, add); err != nil {
					return nil, err
				}
			} else {
				add(match)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Fingerprint returns a path-to-digest map for the set's current on-disk
// state. Missing paths map to AbsentDigest. Two fingerprints being equal
// means the set is byte-identical, which is the property snapshot restore
// must preserve.
func (s *Set) Fingerprint() (map[string]string, error) {
	paths, err := s.Expand()
	if err != nil {
		return nil, err
	}

	fp := make(map[string]string, len(paths))
	for _, path := range paths {
		digest, err := DigestFile(path)
		if err != nil {
			return nil, err
		}
		fp[path] = digest
	}
	return fp, nil
}

// DigestFile returns the hex SHA-256 of a file's contents, or AbsentDigest
// when the file does not exist.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AbsentDigest, nil
		}
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// walkInto adds every regular file under dir.
func walkInto(dir string, add func(string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", dir, err)
		}
		if d.Type().IsRegular() {
			add(path)
		}
		return nil
	})
}

// hasGlobMeta reports whether the pattern contains filepath.Glob
// metacharacters.
func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
