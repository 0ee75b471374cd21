// Package pushtest provides the stock predicates rules are written with.
package pushtest

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

// AnyPush matches every push.
var AnyPush = policy.AnyPush

// ToDefaultBranch matches pushes to the repository's default branch.
var ToDefaultBranch = policy.NewPredicate("to default branch", func(_ context.Context, pc *push.Context) (bool, error) {
	return pc.ToDefaultBranch(), nil
})

// ToPublicRepo matches pushes to public repositories.
var ToPublicRepo = policy.NewPredicate("to public repo", func(_ context.Context, pc *push.Context) (bool, error) {
	return pc.Repo().Public, nil
})

// IsDeployEnabled matches repositories with deployment switched on.
var IsDeployEnabled = policy.NewPredicate("deploy enabled", func(_ context.Context, pc *push.Context) (bool, error) {
	return pc.DeployEnabled(), nil
})

// ToBranch matches pushes whose branch matches any of the glob patterns.
func ToBranch(patterns ...string) policy.Predicate {
	label := "to branch " + strings.Join(patterns, "|")
	return policy.NewPredicate(label, func(_ context.Context, pc *push.Context) (bool, error) {
		for _, p := range patterns {
			ok, err := doublestar.Match(p, pc.Branch())
			if err != nil {
				return false, fmt.Errorf("branch pattern %q: %w", p, err)
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// FromBot matches pushes authored by one of the given logins, typically the
// delivery machine's own commits.
func FromBot(logins ...string) policy.Predicate {
	return policy.NewPredicate("from bot", func(_ context.Context, pc *push.Context) (bool, error) {
		return slices.Contains(logins, pc.Author()), nil
	})
}

// NamedSeedRepo matches pushes to one of the seed repositories ("owner/name").
func NamedSeedRepo(seeds ...string) policy.Predicate {
	return policy.NewPredicate("named seed repo", func(_ context.Context, pc *push.Context) (bool, error) {
		return slices.Contains(seeds, pc.Repo().Slug()), nil
	})
}

// HasFile matches when path exists in the pushed revision.
func HasFile(path string) policy.Predicate {
	return policy.NewPredicate("has file "+path, func(ctx context.Context, pc *push.Context) (bool, error) {
		return pc.HasFile(ctx, path)
	})
}

// HasFileMatching matches when any project path matches the glob.
func HasFileMatching(pattern string) policy.Predicate {
	return policy.NewPredicate("has file matching "+pattern, func(ctx context.Context, pc *push.Context) (bool, error) {
		matches, err := pc.Glob(ctx, pattern)
		if err != nil {
			return false, err
		}
		return len(matches) > 0, nil
	})
}

// HasFileContaining matches when a file matching the glob has content
// matching the regular expression.
func HasFileContaining(pattern string, content *regexp.Regexp) policy.Predicate {
	label := fmt.Sprintf("has file %s containing /%s/", pattern, content)
	return policy.NewPredicate(label, func(ctx context.Context, pc *push.Context) (bool, error) {
		matches, err := pc.Glob(ctx, pattern)
		if err != nil {
			return false, err
		}
		for _, m := range matches {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			data, err := pc.ReadFile(ctx, m)
			if err != nil {
				return false, fmt.Errorf("read %s: %w", m, err)
			}
			if content.Match(data) {
				return true, nil
			}
		}
		return false, nil
	})
}

// ChangedFileMatching matches when any changed path matches one of the globs.
// A push whose changes are unknown always matches.
func ChangedFileMatching(label string, patterns ...string) policy.Predicate {
	return policy.NewPredicate(label, func(_ context.Context, pc *push.Context) (bool, error) {
		if !pc.ChangedFilesKnown() {
			return true, nil
		}
		for _, f := range pc.ChangedFiles() {
			for _, p := range patterns {
				ok, err := doublestar.Match(p, f)
				if err != nil {
					return false, fmt.Errorf("changed file pattern %q: %w", p, err)
				}
				if ok {
					return true, nil
				}
			}
		}
		return false, nil
	})
}
