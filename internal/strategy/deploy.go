package strategy

import (
	"fmt"
	"strings"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

// DeployTarget describes where a deployer would put a push.
type DeployTarget struct {
	Deployer    string           `json:"deployer" yaml:"deployer"`
	Environment goal.Environment `json:"environment" yaml:"environment"`
	Location    string           `json:"location" yaml:"location"`
}

// Deployer realises deploy, endpoint and undeploy goals.
type Deployer interface {
	Name() string
	Target(pc *push.Context, env goal.Environment) DeployTarget
}

// LocalJarDeployer runs an executable jar on the machine's own host, one
// managed instance per repository branch.
type LocalJarDeployer struct {
	BaseURL string
}

// Name implements Deployer.
func (d LocalJarDeployer) Name() string { return "local executable jar" }

// Target implements Deployer.
func (d LocalJarDeployer) Target(pc *push.Context, env goal.Environment) DeployTarget {
	base := d.BaseURL
	if base == "" {
		base = "http://localhost"
	}
	return DeployTarget{
		Deployer:    d.Name(),
		Environment: env,
		Location:    fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(base, "/"), pc.Repo().Owner, pc.Repo().Name, pc.Branch()),
	}
}

// CloudFoundryDeployer pushes to a Cloud Foundry space.
type CloudFoundryDeployer struct {
	API   string
	Org   string
	Space string
}

// Name implements Deployer.
func (d CloudFoundryDeployer) Name() string { return "cloud foundry" }

// Target implements Deployer.
func (d CloudFoundryDeployer) Target(pc *push.Context, env goal.Environment) DeployTarget {
	app := pc.Repo().Name
	if env != goal.EnvProduction && env != goal.EnvNone {
		app += "-" + string(env)
	}
	return DeployTarget{
		Deployer:    d.Name(),
		Environment: env,
		Location:    fmt.Sprintf("cf://%s/%s/%s/%s", d.API, d.Org, d.Space, app),
	}
}

// KubernetesDeployer rolls out a container image to a namespace.
type KubernetesDeployer struct {
	Namespace string
}

// Name implements Deployer.
func (d KubernetesDeployer) Name() string { return "kubernetes" }

// Target implements Deployer.
func (d KubernetesDeployer) Target(pc *push.Context, env goal.Environment) DeployTarget {
	ns := d.Namespace
	if ns == "" {
		ns = string(env)
	}
	return DeployTarget{
		Deployer:    d.Name(),
		Environment: env,
		Location:    fmt.Sprintf("k8s://%s/%s", ns, pc.Repo().Name),
	}
}

// DeployGoals are the goals one deployer serves together. Endpoint and
// Undeploy may be zero.
type DeployGoals struct {
	Deploy   goal.Goal
	Endpoint goal.Goal
	Undeploy goal.Goal
}

// Names returns the non-zero goal names.
func (g DeployGoals) Names() []string {
	var out []string
	for _, gl := range []goal.Goal{g.Deploy, g.Endpoint, g.Undeploy} {
		if gl.Name != "" {
			out = append(out, gl.Name)
		}
	}
	return out
}

// DeployRule binds a deployer to a predicate for one group of deploy goals.
type DeployRule struct {
	label     string
	predicate policy.Predicate
	goals     DeployGoals
	deployer  Deployer
}

// DeployRuleBuilder collects the guard and goals of a deploy rule.
type DeployRuleBuilder struct {
	predicate policy.Predicate
	label     string
	goals     DeployGoals
}

// DeployWhen starts a deploy rule matching when every predicate holds.
func DeployWhen(preds ...policy.Predicate) DeployRuleBuilder {
	if len(preds) == 1 {
		return DeployRuleBuilder{predicate: preds[0]}
	}
	return DeployRuleBuilder{predicate: policy.All(preds...)}
}

// ItMeans sets the rule label.
func (b DeployRuleBuilder) ItMeans(label string) DeployRuleBuilder {
	b.label = label
	return b
}

// DeployTo sets the goals the deployer serves.
func (b DeployRuleBuilder) DeployTo(deploy, endpoint, undeploy goal.Goal) DeployRuleBuilder {
	b.goals = DeployGoals{Deploy: deploy, Endpoint: endpoint, Undeploy: undeploy}
	return b
}

// Using finishes the rule.
func (b DeployRuleBuilder) Using(d Deployer) DeployRule {
	return DeployRule{label: b.label, predicate: b.predicate, goals: b.goals, deployer: d}
}

// Label returns the rule label.
func (r DeployRule) Label() string { return r.label }

// Goals returns the goals the rule serves.
func (r DeployRule) Goals() DeployGoals { return r.goals }

// Kind is the table kind, named after the deploy goal.
func (r DeployRule) Kind() string { return DeployKind(r.goals.Deploy) }

// Validate checks the rule has a deploy goal and a deployer.
func (r DeployRule) Validate() error {
	if r.goals.Deploy.Name == "" {
		return fmt.Errorf("deploy rule %q has no deploy goal", r.label)
	}
	if r.deployer == nil {
		return fmt.Errorf("deploy rule %q has no deployer", r.label)
	}
	return nil
}

// ApplyTo registers the rule in t.
func (r DeployRule) ApplyTo(t *Table[Deployer]) {
	t.Register(r.label, r.predicate, r.deployer)
}

// DeployKind names the table serving a deploy goal.
func DeployKind(deploy goal.Goal) string {
	return "deploy:" + deploy.Name
}
