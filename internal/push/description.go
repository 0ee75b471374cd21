package push

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBranchName is assumed when a description omits the default branch.
const DefaultBranchName = "main"

// Description is the serialisable form of a push. A missing changed_files
// list means the changes are unknown; an empty one means nothing changed.
type Description struct {
	ID            string   `yaml:"id,omitempty" json:"id,omitempty"`
	Repo          Repo     `yaml:"repo" json:"repo"`
	Branch        string   `yaml:"branch" json:"branch"`
	DefaultBranch string   `yaml:"default_branch,omitempty" json:"default_branch,omitempty"`
	SHA           string   `yaml:"sha,omitempty" json:"sha,omitempty"`
	Author        string   `yaml:"author,omitempty" json:"author,omitempty"`
	ChangedFiles  []string `yaml:"changed_files,omitempty" json:"changed_files,omitempty"`
	DeployEnabled bool     `yaml:"deploy_enabled" json:"deploy_enabled"`
	// ProjectDir points at a checkout of the pushed revision, if one exists locally.
	ProjectDir string `yaml:"project_dir,omitempty" json:"project_dir,omitempty"`
}

// Validate checks the fields every push must carry.
func (d Description) Validate() error {
	var errs []error
	if d.Repo.Owner == "" {
		errs = append(errs, errors.New("repo.owner is required"))
	}
	if d.Repo.Name == "" {
		errs = append(errs, errors.New("repo.name is required"))
	}
	if d.Branch == "" {
		errs = append(errs, errors.New("branch is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid push description: %w", errors.Join(errs...))
	}
	return nil
}

// Parse decodes a yaml (or json) push description.
func Parse(data []byte) (Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Description{}, fmt.Errorf("decode push description: %w", err)
	}
	return d, d.Validate()
}

// ParseFile reads and decodes a push description file.
func ParseFile(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read push description: %w", err)
	}
	return Parse(data)
}
