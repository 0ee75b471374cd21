package project

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitFacts are the push facts recoverable from a local checkout.
type GitFacts struct {
	Branch       string
	SHA          string
	Author       string
	ChangedFiles []string
	Remote       string
}

// ReadGitFacts inspects the checkout at dir. Changed files are those touched
// by the last commit.
func ReadGitFacts(ctx context.Context, dir string) (GitFacts, error) {
	var facts GitFacts
	var err error

	if facts.Branch, err = git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err != nil {
		return GitFacts{}, err
	}
	if facts.SHA, err = git(ctx, dir, "rev-parse", "HEAD"); err != nil {
		return GitFacts{}, err
	}
	if facts.Author, err = git(ctx, dir, "log", "-1", "--format=%an"); err != nil {
		return GitFacts{}, err
	}

	// A root commit has no parent to diff against.
	changed, err := git(ctx, dir, "diff-tree", "--no-commit-id", "--name-only", "-r", "--root", "HEAD")
	if err != nil {
		return GitFacts{}, err
	}
	facts.ChangedFiles = splitLines(changed)

	// Missing remote is fine for local repositories.
	facts.Remote, _ = git(ctx, dir, "remote", "get-url", "origin")
	return facts, nil
}

// OwnerAndName derives "owner" and "name" from a remote URL such as
// git@github.com:owner/name.git or https://github.com/owner/name.
func OwnerAndName(remote string) (string, string, bool) {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), ".git")
	if remote == "" {
		return "", "", false
	}
	if i := strings.Index(remote, "://"); i >= 0 {
		remote = remote[i+3:]
	}
	remote = strings.ReplaceAll(remote, ":", "/")
	parts := strings.Split(remote, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
