// Package machine provides the software delivery machine: the composition
// root that holds goal rules, strategy tables, listeners and extension packs,
// and resolves pushes against them.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/strategy"
)

// GoalsSetListener is invoked after every resolution.
type GoalsSetListener interface {
	OnGoalsSet(ctx context.Context, r *Resolution) error
}

// ListenerFunc adapts a function to GoalsSetListener.
type ListenerFunc func(ctx context.Context, r *Resolution) error

// OnGoalsSet implements GoalsSetListener.
func (f ListenerFunc) OnGoalsSet(ctx context.Context, r *Resolution) error {
	return f(ctx, r)
}

// ExtensionPack bundles registrations for a stack or concern.
type ExtensionPack struct {
	Name      string
	Configure func(m *Machine) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithPredicateTimeout bounds each leaf predicate check.
func WithPredicateTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.predicateTimeout = d
	}
}

// Machine aggregates registrations and delegates decisions to the policy
// and strategy packages. Registration is not safe for concurrent use; once
// assembled, Resolve may be called from many goroutines.
type Machine struct {
	name             string
	logger           *slog.Logger
	metrics          *Metrics
	predicateTimeout time.Duration

	chain        []policy.Rule
	contributors []policy.Rule
	disposal     []policy.Rule

	builders    *strategy.Table[strategy.Builder]
	deployers   map[string]*strategy.Table[strategy.Deployer]
	deployKinds []string
	deployGoals map[string]strategy.DeployGoals
	deployIndex map[string]string
	deployRules []strategy.DeployRule
	buildRules  []strategy.BuildRule

	listeners []GoalsSetListener
	packs     []string
}

// New creates an empty machine.
func New(name string, opts ...Option) *Machine {
	m := &Machine{
		name:        name,
		logger:      slog.Default(),
		builders:    strategy.NewTable[strategy.Builder](strategy.BuildKind),
		deployers:   make(map[string]*strategy.Table[strategy.Deployer]),
		deployGoals: make(map[string]strategy.DeployGoals),
		deployIndex: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	return m
}

// Name returns the machine name.
func (m *Machine) Name() string {
	return m.name
}

// Logger returns the machine logger for packs.
func (m *Machine) Logger() *slog.Logger {
	return m.logger
}

// SetGoalChain replaces the top-level first-match chain.
func (m *Machine) SetGoalChain(rules ...policy.Rule) *Machine {
	m.chain = append([]policy.Rule(nil), rules...)
	return m
}

// PrependGoalChain puts rules ahead of the current chain. Gates that must
// dominate every other tier go here.
func (m *Machine) PrependGoalChain(rules ...policy.Rule) *Machine {
	m.chain = append(append([]policy.Rule(nil), rules...), m.chain...)
	return m
}

// HasGoalChain reports whether a chain is registered.
func (m *Machine) HasGoalChain() bool {
	return len(m.chain) > 0
}

// AddGoalContributors appends rules whose goals are unioned when they match.
func (m *Machine) AddGoalContributors(rules ...policy.Rule) *Machine {
	m.contributors = append(m.contributors, rules...)
	return m
}

// AddDisposalRules appends rules to the disposal chain, evaluated only for
// repository disposal.
func (m *Machine) AddDisposalRules(rules ...policy.Rule) *Machine {
	m.disposal = append(m.disposal, rules...)
	return m
}

// AddBuildRules registers builders.
func (m *Machine) AddBuildRules(rules ...strategy.BuildRule) *Machine {
	for _, r := range rules {
		m.buildRules = append(m.buildRules, r)
		r.ApplyTo(m.builders)
	}
	return m
}

// AddDeployRules registers deployers, one table per deploy goal.
func (m *Machine) AddDeployRules(rules ...strategy.DeployRule) *Machine {
	for _, r := range rules {
		m.deployRules = append(m.deployRules, r)
		kind := r.Kind()
		table, ok := m.deployers[kind]
		if !ok {
			table = strategy.NewTable[strategy.Deployer](kind)
			m.deployers[kind] = table
			m.deployKinds = append(m.deployKinds, kind)
			m.deployGoals[kind] = r.Goals()
		}
		for _, name := range r.Goals().Names() {
			m.deployIndex[name] = kind
		}
		r.ApplyTo(table)
	}
	return m
}

// AddGoalsSetListeners registers listeners invoked after each resolution.
func (m *Machine) AddGoalsSetListeners(listeners ...GoalsSetListener) *Machine {
	m.listeners = append(m.listeners, listeners...)
	return m
}

// AddExtensionPacks configures each pack against the machine in order.
func (m *Machine) AddExtensionPacks(packs ...ExtensionPack) error {
	for _, p := range packs {
		if p.Configure == nil {
			continue
		}
		if err := p.Configure(m); err != nil {
			return fmt.Errorf("configure extension pack %q: %w", p.Name, err)
		}
		m.packs = append(m.packs, p.Name)
		m.logger.Debug("Extension pack added", "machine", m.name, "pack", p.Name)
	}
	return nil
}

// ExtensionPacks returns the names of configured packs.
func (m *Machine) ExtensionPacks() []string {
	return append([]string(nil), m.packs...)
}

// Validate checks the assembled configuration: every rule's invariant, every
// strategy predicate, and that no goal name is used with two shapes.
func (m *Machine) Validate() error {
	var errs []error
	catalog := goal.NewCatalog()

	check := func(section string, rules []policy.Rule) {
		for _, r := range rules {
			if err := r.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", section, err))
				continue
			}
			for _, s := range r.GoalSets() {
				if err := catalog.RegisterSet(s); err != nil {
					errs = append(errs, fmt.Errorf("%s rule %q: %w", section, r.Label(), err))
				}
			}
		}
	}
	check("goal chain", m.chain)
	check("goal contributors", m.contributors)
	check("disposal rules", m.disposal)

	if err := m.builders.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, r := range m.buildRules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range m.deployRules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range m.deployKinds {
		if err := m.deployers[kind].Validate(); err != nil {
			errs = append(errs, err)
		}
		dg := m.deployGoals[kind]
		for _, g := range []goal.Goal{dg.Deploy, dg.Endpoint, dg.Undeploy} {
			if g.Name == "" {
				continue
			}
			if err := catalog.Register(g); err != nil {
				errs = append(errs, fmt.Errorf("deploy rules %s: %w", kind, err))
			}
		}
	}

	if len(m.chain) == 0 && len(m.contributors) == 0 {
		errs = append(errs, errors.New("machine has no goal chain and no goal contributors"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("machine %q: %w", m.name, err)
	}
	return nil
}

func (m *Machine) policyOptions() policy.Options {
	return policy.Options{
		PredicateTimeout: m.predicateTimeout,
		Logger:           m.logger,
		OnFailure:        m.recordFailure,
	}
}

func (m *Machine) selectOptions() strategy.SelectOptions {
	return strategy.SelectOptions{
		PredicateTimeout: m.predicateTimeout,
		Logger:           m.logger,
		OnFailure:        m.recordFailure,
	}
}

func (m *Machine) recordFailure(f policy.PredicateFailure) {
	m.metrics.predicateFailures.WithLabelValues(m.name, f.Predicate).Inc()
}
