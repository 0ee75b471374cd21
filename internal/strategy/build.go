package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

// BuildKind is the table kind for builders.
const BuildKind = "build"

// BuildPlan describes how a builder would build a push. Nothing is run here.
type BuildPlan struct {
	Builder  string     `json:"builder" yaml:"builder"`
	Commands [][]string `json:"commands" yaml:"commands"`
	Artifact string     `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// Builder realises build goals.
type Builder interface {
	Name() string
	Plan(pc *push.Context) BuildPlan
}

// MavenBuilder builds with Maven.
type MavenBuilder struct {
	// Args defaults to "package".
	Args []string
}

// Name implements Builder.
func (b MavenBuilder) Name() string { return "maven" }

// Plan implements Builder.
func (b MavenBuilder) Plan(pc *push.Context) BuildPlan {
	args := b.Args
	if len(args) == 0 {
		args = []string{"package"}
	}
	return BuildPlan{
		Builder:  b.Name(),
		Commands: [][]string{append([]string{"mvn", "-B"}, args...)},
		Artifact: "target/" + pc.Repo().Name + ".jar",
	}
}

// NodeBuilder builds with npm: an install command followed by a build command.
type NodeBuilder struct {
	Install string
	Build   string
}

// Name implements Builder.
func (b NodeBuilder) Name() string {
	return "npm (" + b.Install + ", " + b.Build + ")"
}

// Plan implements Builder.
func (b NodeBuilder) Plan(pc *push.Context) BuildPlan {
	return BuildPlan{
		Builder:  b.Name(),
		Commands: [][]string{strings.Fields(b.Install), strings.Fields(b.Build)},
	}
}

// ScriptBuilder runs a build script checked into the project.
type ScriptBuilder struct {
	Script string
}

// Name implements Builder.
func (b ScriptBuilder) Name() string { return "script " + b.Script }

// Plan implements Builder.
func (b ScriptBuilder) Plan(pc *push.Context) BuildPlan {
	return BuildPlan{
		Builder:  b.Name(),
		Commands: [][]string{{"sh", b.Script}},
	}
}

// BuildRule binds a builder to a predicate, or sets the default builder.
type BuildRule struct {
	label     string
	predicate policy.Predicate
	builder   Builder
	isDefault bool
}

// BuildRuleBuilder collects the guard of a build rule.
type BuildRuleBuilder struct {
	predicate policy.Predicate
	label     string
}

// BuildWhen starts a build rule matching when every predicate holds.
func BuildWhen(preds ...policy.Predicate) BuildRuleBuilder {
	if len(preds) == 1 {
		return BuildRuleBuilder{predicate: preds[0]}
	}
	return BuildRuleBuilder{predicate: policy.All(preds...)}
}

// ItMeans sets the rule label.
func (b BuildRuleBuilder) ItMeans(label string) BuildRuleBuilder {
	b.label = label
	return b
}

// Set finishes the rule.
func (b BuildRuleBuilder) Set(builder Builder) BuildRule {
	return BuildRule{label: b.label, predicate: b.predicate, builder: builder}
}

// BuildDefault makes builder the fallback.
func BuildDefault(builder Builder) BuildRule {
	return BuildRule{label: "default", builder: builder, isDefault: true}
}

// Label returns the rule label.
func (r BuildRule) Label() string { return r.label }

// Validate checks the rule has a builder.
func (r BuildRule) Validate() error {
	if r.builder == nil {
		if r.isDefault {
			return errors.New("default build rule has no builder")
		}
		return fmt.Errorf("build rule %q has no builder", r.label)
	}
	return nil
}

// ApplyTo registers the rule in t.
func (r BuildRule) ApplyTo(t *Table[Builder]) {
	if r.isDefault {
		t.RegisterDefault(r.builder)
		return
	}
	t.Register(r.label, r.predicate, r.builder)
}
