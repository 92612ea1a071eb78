// Package naming turns feature identifiers into output file names.
package naming

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrDuplicateName = errors.New("duplicate output name")

// Base joins id and label with an underscore and replaces each space with
// an underscore. Runs of spaces are not collapsed. An empty label yields
// the id alone.
func Base(id, label string) string {
	name := id
	if label != "" {
		name = id + "_" + label
	}
	return strings.ReplaceAll(name, " ", "_")
}

// Sanitize replaces characters that are unsafe in file names on common
// filesystems with an underscore.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.Trim(s, ". ") == "" {
		return "unnamed"
	}
	// Windows strips a trailing dot or space.
	if last := s[len(s)-1]; last == '.' || last == ' ' {
		s = s[:len(s)-1] + "_"
	}
	return s
}

// Policy decides what a Registry does with a name it already issued.
type Policy int

const (
	Suffix Policy = iota
	Error
	Overwrite
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suffix":
		return Suffix, nil
	case "error":
		return Error, nil
	case "overwrite":
		return Overwrite, nil
	}
	return Suffix, fmt.Errorf("unknown duplicate policy %q", s)
}

func (p Policy) String() string {
	switch p {
	case Error:
		return "error"
	case Overwrite:
		return "overwrite"
	}
	return "suffix"
}

// Registry remembers the names issued during one run. Names compare
// case-insensitively. The zero value is not usable; call NewRegistry.
type Registry struct {
	policy Policy
	seen   map[string]bool
}

func NewRegistry(p Policy) *Registry {
	return &Registry{policy: p, seen: make(map[string]bool)}
}

// Claim reserves base, or a numbered variant of it under the Suffix
// policy, and returns the reserved name.
func (r *Registry) Claim(base string) (string, error) {
	key := strings.ToLower(base)
	if !r.seen[key] {
		r.seen[key] = true
		return base, nil
	}
	switch r.policy {
	case Overwrite:
		return base, nil
	case Error:
		return "", fmt.Errorf("%w: %s", ErrDuplicateName, base)
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s_%d", base, n)
		k := strings.ToLower(name)
		if !r.seen[k] {
			r.seen[k] = true
			return name, nil
		}
	}
}

// Release frees a name so a later Claim of the same base can take it.
func (r *Registry) Release(name string) {
	delete(r.seen, strings.ToLower(name))
}
