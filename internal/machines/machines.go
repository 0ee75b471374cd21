// Package machines assembles the stock delivery machines from configuration.
package machines

import (
	"fmt"
	"log/slog"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/freeze"
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/pushtest"
	"github.com/adrianpk/sdm/internal/strategy"
)

// Options are the collaborators every machine is assembled with.
type Options struct {
	Config    *config.Config
	Freeze    freeze.Store
	Logger    *slog.Logger
	Metrics   *machine.Metrics
	Listeners []machine.GoalsSetListener
}

func (o Options) machineOptions() []machine.Option {
	opts := []machine.Option{machine.WithLogger(o.Logger)}
	if o.Metrics != nil {
		opts = append(opts, machine.WithMetrics(o.Metrics))
	}
	if o.Config != nil {
		opts = append(opts, machine.WithPredicateTimeout(o.Config.Predicates.Timeout))
	}
	return opts
}

// New assembles the machine named by o.Config.Machine and validates it.
func New(o Options) (*machine.Machine, error) {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Freeze == nil {
		o.Freeze = freeze.NewMemoryStore()
	}

	var (
		m   *machine.Machine
		err error
	)
	switch o.Config.Machine {
	case config.MachineCloudFoundry:
		m, err = CloudFoundry(o)
	case config.MachineAdditive:
		m, err = Additive(o)
	default:
		return nil, fmt.Errorf("unknown machine %q", o.Config.Machine)
	}
	if err != nil {
		return nil, err
	}
	m.AddGoalsSetListeners(o.Listeners...)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// bots and seeds extend the configured lists with the stock ones.
func bots(cfg *config.Config) policy.Predicate {
	return pushtest.FromBot(append([]string{"atomist-bot"}, cfg.Bots...)...)
}

func seeds(cfg *config.Config) policy.Predicate {
	return pushtest.NamedSeedRepo(append([]string{"spring-rest-seed"}, cfg.Seeds...)...)
}

func mavenDeployRules(cfg *config.Config) []strategy.DeployRule {
	cf := cfg.Deploy.CloudFoundry
	return []strategy.DeployRule{
		strategy.DeployWhen(pushtest.IsMaven).
			ItMeans("Maven local deploy").
			DeployTo(goal.LocalDeploymentGoal, goal.LocalEndpointGoal, goal.Goal{}).
			Using(strategy.LocalJarDeployer{BaseURL: cfg.Deploy.LocalBaseURL}),
		strategy.DeployWhen(pushtest.IsMaven).
			ItMeans("Maven staging deploy").
			DeployTo(goal.StagingDeploymentGoal, goal.StagingEndpointGoal, goal.StagingUndeploymentGoal).
			Using(strategy.LocalJarDeployer{BaseURL: cfg.Deploy.LocalBaseURL}),
		strategy.DeployWhen(pushtest.IsMaven).
			ItMeans("Maven production deploy").
			DeployTo(goal.ProductionDeploymentGoal, goal.ProductionEndpointGoal, goal.ProductionUndeploymentGoal).
			Using(strategy.CloudFoundryDeployer{API: cf.API, Org: cf.Org, Space: cf.ProductionSpace}),
	}
}

func mavenBuildDefault() strategy.BuildRule {
	return strategy.BuildDefault(strategy.MavenBuilder{})
}
