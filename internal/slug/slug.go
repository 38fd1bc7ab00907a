// Package slug derives URL-safe, collision-free identifiers from post titles.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"quickblog/internal/observability"

	"github.com/google/uuid"
)

// MaxCandidates bounds the numeric suffix search before falling back to a random suffix.
const MaxCandidates = 1000

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	pattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Checker reports whether a slug is already taken in the backing store.
type Checker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// Normalize lowercases title and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming hyphens from both ends.
func Normalize(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// Valid reports whether s has the canonical slug shape.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Assigner picks the first free candidate for a title.
type Assigner struct {
	store Checker
}

// NewAssigner creates an Assigner backed by store.
func NewAssigner(store Checker) *Assigner {
	return &Assigner{store: store}
}

// Assign returns base, base-1, base-2, ... whichever is not yet taken.
// Titles that normalize to nothing get a post-<hex> base.
func (a *Assigner) Assign(ctx context.Context, title string) (string, error) {
	base := Normalize(title)
	if base == "" {
		base = "post-" + shortID()
	}

	candidate := base
	for counter := 1; counter <= MaxCandidates; counter++ {
		taken, err := a.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		observability.SlugCollisions.Inc()
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}

	return base + "-" + shortID(), nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
