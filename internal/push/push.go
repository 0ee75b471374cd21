// Package push describes one code change under evaluation.
//
// A Context is built once per push by a project-inspection collaborator and
// is read-only afterwards. Facts that need I/O (file presence, file content)
// are answered through the Project interface so that they can fail.
package push

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrNoProject is returned by file queries on a push that carries no project.
var ErrNoProject = errors.New("push has no project snapshot")

// Project answers file queries about the pushed revision.
type Project interface {
	// HasFile reports whether path exists in the project.
	HasFile(ctx context.Context, path string) (bool, error)
	// Glob returns project-relative paths matching a doublestar pattern.
	Glob(ctx context.Context, pattern string) ([]string, error)
	// ReadFile returns the content of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Repo identifies the repository a push targets.
type Repo struct {
	Owner  string `yaml:"owner" json:"owner"`
	Name   string `yaml:"name" json:"name"`
	Public bool   `yaml:"public" json:"public"`
}

// Slug returns "owner/name".
func (r Repo) Slug() string {
	return r.Owner + "/" + r.Name
}

// Context is an immutable snapshot of the facts about one push.
type Context struct {
	id            string
	repo          Repo
	branch        string
	defaultBranch string
	sha           string
	author        string
	changedFiles  []string
	changedKnown  bool
	deployEnabled bool
	project       Project
}

// New builds a Context from a description and a project snapshot.
// project may be nil, in which case file queries fail with ErrNoProject.
func New(d Description, project Project) (*Context, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	defaultBranch := d.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = DefaultBranchName
	}
	id := d.ID
	if id == "" {
		id = fmt.Sprintf("%s@%s", d.Repo.Slug(), shortSHA(d.SHA, d.Branch))
	}
	return &Context{
		id:            id,
		repo:          d.Repo,
		branch:        d.Branch,
		defaultBranch: defaultBranch,
		sha:           d.SHA,
		author:        d.Author,
		changedFiles:  slices.Clone(d.ChangedFiles),
		changedKnown:  d.ChangedFiles != nil,
		deployEnabled: d.DeployEnabled,
		project:       project,
	}, nil
}

func shortSHA(sha, branch string) string {
	if sha == "" {
		return branch
	}
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// ID identifies the push in logs and events.
func (c *Context) ID() string { return c.id }

// Repo returns the target repository.
func (c *Context) Repo() Repo { return c.repo }

// Branch returns the pushed branch.
func (c *Context) Branch() string { return c.branch }

// DefaultBranch returns the repository's default branch.
func (c *Context) DefaultBranch() string { return c.defaultBranch }

// ToDefaultBranch reports whether the push targets the default branch.
func (c *Context) ToDefaultBranch() bool { return c.branch == c.defaultBranch }

// SHA returns the pushed revision.
func (c *Context) SHA() string { return c.sha }

// Author returns the login of the push author.
func (c *Context) Author() string { return c.author }

// ChangedFiles returns a copy of the paths changed by the push.
func (c *Context) ChangedFiles() []string { return slices.Clone(c.changedFiles) }

// ChangedFilesKnown reports whether the push carried a changed-file list.
// An empty list is known; a missing one is not.
func (c *Context) ChangedFilesKnown() bool { return c.changedKnown }

// DeployEnabled reports whether deployment is enabled for the repository.
func (c *Context) DeployEnabled() bool { return c.deployEnabled }

// HasFile reports whether path exists in the pushed revision.
func (c *Context) HasFile(ctx context.Context, path string) (bool, error) {
	if c.project == nil {
		return false, ErrNoProject
	}
	return c.project.HasFile(ctx, path)
}

// Glob returns paths in the pushed revision matching pattern.
func (c *Context) Glob(ctx context.Context, pattern string) ([]string, error) {
	if c.project == nil {
		return nil, ErrNoProject
	}
	return c.project.Glob(ctx, pattern)
}

// ReadFile returns the content of path in the pushed revision.
func (c *Context) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if c.project == nil {
		return nil, ErrNoProject
	}
	return c.project.ReadFile(ctx, path)
}
