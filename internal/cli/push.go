package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/project"
	"github.com/adrianpk/sdm/internal/push"
)

// PushSource says where a push comes from: a description file, or the
// checkout in Dir when File is empty.
type PushSource struct {
	File string
	Dir  string
	// DeployEnabled applies to pushes read from a checkout.
	DeployEnabled bool
	Public        bool
}

// LoadPush builds a push context from a description file or a git checkout.
func LoadPush(ctx context.Context, cfg *config.Config, src PushSource) (*push.Context, error) {
	var d push.Description
	if src.File != "" {
		var err error
		if d, err = push.ParseFile(src.File); err != nil {
			return nil, err
		}
	} else {
		var err error
		if d, err = describeCheckout(ctx, src); err != nil {
			return nil, err
		}
	}
	return newConfiguredPush(cfg, d)
}

// newConfiguredPush applies the configured default branch when the
// description carries none.
func newConfiguredPush(cfg *config.Config, d push.Description) (*push.Context, error) {
	if d.DefaultBranch == "" {
		d.DefaultBranch = cfg.DefaultBranch
	}
	return NewPush(d, cfg.Project.CacheSize)
}

// NewPush attaches the project checkout named by the description, if any.
func NewPush(d push.Description, cacheSize int) (*push.Context, error) {
	var proj push.Project
	if d.ProjectDir != "" {
		dir, err := project.NewDir(d.ProjectDir, cacheSize)
		if err != nil {
			return nil, err
		}
		proj = dir
	}
	return push.New(d, proj)
}

func describeCheckout(ctx context.Context, src PushSource) (push.Description, error) {
	dir := src.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return push.Description{}, fmt.Errorf("resolve project dir: %w", err)
	}
	facts, err := project.ReadGitFacts(ctx, abs)
	if err != nil {
		return push.Description{}, err
	}
	owner, name, ok := project.OwnerAndName(facts.Remote)
	if !ok {
		owner, name = "local", filepath.Base(abs)
	}
	return push.Description{
		Repo:          push.Repo{Owner: owner, Name: name, Public: src.Public},
		Branch:        facts.Branch,
		SHA:           facts.SHA,
		Author:        facts.Author,
		ChangedFiles:  facts.ChangedFiles,
		DeployEnabled: src.DeployEnabled,
		ProjectDir:    abs,
	}, nil
}
