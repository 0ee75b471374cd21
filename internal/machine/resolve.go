package machine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
	"github.com/adrianpk/sdm/internal/strategy"
)

// Event is what triggered a resolution.
type Event string

const (
	EventPush     Event = "push"
	EventDisposal Event = "disposal"
)

// BuildSelection is the builder chosen for a push.
type BuildSelection struct {
	Rule    string             `json:"rule"`
	Default bool               `json:"default"`
	Builder strategy.Builder   `json:"-"`
	Plan    strategy.BuildPlan `json:"plan"`
}

// DeploySelection is the deployer chosen for one group of deploy goals.
type DeploySelection struct {
	Kind     string                `json:"kind"`
	Goals    []string              `json:"goals"`
	Rule     string                `json:"rule"`
	Default  bool                  `json:"default"`
	Deployer strategy.Deployer     `json:"-"`
	Target   strategy.DeployTarget `json:"target"`
}

// Resolution is everything decided for one push.
type Resolution struct {
	ID          string
	Machine     string
	Event       Event
	Push        *push.Context
	Goals       goal.Set
	Matched     []string
	Build       *BuildSelection
	Deployments []DeploySelection
	Failures    []policy.PredicateFailure
	// StrategyErrors holds one *strategy.UnresolvedStrategyError per goal
	// kind that could not be served.
	StrategyErrors []error
	Duration       time.Duration
}

// Err joins the strategy errors.
func (r *Resolution) Err() error {
	return errors.Join(r.StrategyErrors...)
}

// Resolve computes the goals and strategies for a push. An empty goal set is
// a valid outcome. The returned error joins any unresolved strategies; the
// resolution is returned regardless so other goal kinds can proceed.
func (m *Machine) Resolve(ctx context.Context, pc *push.Context) (*Resolution, error) {
	start := time.Now()
	res := m.newResolution(EventPush, pc)
	opts := m.policyOptions()

	var result policy.Result
	if len(m.chain) > 0 {
		result = policy.ResolveChain(ctx, m.chain, pc, opts)
	}
	if len(m.contributors) > 0 {
		contributed := policy.ResolveContributions(ctx, m.contributors, pc, opts)
		if result.Goals.IsEmpty() {
			result.Goals = contributed.Goals
		} else {
			result.Goals = result.Goals.Union(contributed.Goals)
		}
		result.Matched = append(result.Matched, contributed.Matched...)
		result.Failures = append(result.Failures, contributed.Failures...)
	}
	if result.Goals.IsEmpty() {
		result.Goals = goal.NoGoals
	}

	res.Goals = result.Goals
	res.Matched = result.Matched
	res.Failures = result.Failures

	m.selectStrategies(ctx, res)
	m.finish(ctx, res, start)
	return res, res.Err()
}

// ResolveDisposal computes the goals for disposing of a repository. Only the
// disposal chain is consulted.
func (m *Machine) ResolveDisposal(ctx context.Context, pc *push.Context) (*Resolution, error) {
	start := time.Now()
	res := m.newResolution(EventDisposal, pc)

	result := policy.ResolveChain(ctx, m.disposal, pc, m.policyOptions())
	res.Goals = result.Goals
	res.Matched = result.Matched
	res.Failures = result.Failures

	m.selectStrategies(ctx, res)
	m.finish(ctx, res, start)
	return res, res.Err()
}

func (m *Machine) newResolution(event Event, pc *push.Context) *Resolution {
	return &Resolution{
		ID:      uuid.New().String(),
		Machine: m.name,
		Event:   event,
		Push:    pc,
	}
}

// selectStrategies picks a builder if the goals include a build, and one
// deployer per deploy table any goal belongs to. A failure for one kind does
// not stop the others.
func (m *Machine) selectStrategies(ctx context.Context, res *Resolution) {
	opts := m.selectOptions()

	if res.Goals.HasKind(goal.KindBuild) {
		sel, err := m.builders.Select(ctx, res.Push, opts)
		res.Failures = append(res.Failures, sel.Failures...)
		if err != nil {
			m.unresolved(res, err, strategy.BuildKind)
		} else {
			res.Build = &BuildSelection{
				Rule:    sel.Rule,
				Default: sel.Default,
				Builder: sel.Strategy,
				Plan:    sel.Strategy.Plan(res.Push),
			}
		}
	}

	done := make(map[string]bool)
	for _, g := range res.Goals.Goals() {
		if !needsDeployer(g) {
			continue
		}
		kind, ok := m.deployIndex[g.Name]
		if !ok {
			kind = strategy.DeployKind(g)
		}
		if done[kind] {
			continue
		}
		done[kind] = true

		table, ok := m.deployers[kind]
		if !ok {
			m.unresolved(res, &strategy.UnresolvedStrategyError{Kind: kind, PushID: res.Push.ID()}, kind)
			continue
		}
		sel, err := table.Select(ctx, res.Push, opts)
		res.Failures = append(res.Failures, sel.Failures...)
		if err != nil {
			m.unresolved(res, err, kind)
			continue
		}
		dg := m.deployGoals[kind]
		res.Deployments = append(res.Deployments, DeploySelection{
			Kind:     kind,
			Goals:    presentGoals(res.Goals, dg),
			Rule:     sel.Rule,
			Default:  sel.Default,
			Deployer: sel.Strategy,
			Target:   sel.Strategy.Target(res.Push, dg.Deploy.Environment),
		})
	}
}

func needsDeployer(g goal.Goal) bool {
	switch g.Kind {
	case goal.KindDeploy, goal.KindEndpoint, goal.KindUndeploy:
		return true
	}
	return false
}

func presentGoals(set goal.Set, dg strategy.DeployGoals) []string {
	var out []string
	for _, name := range dg.Names() {
		if set.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}

func (m *Machine) unresolved(res *Resolution, err error, kind string) {
	res.StrategyErrors = append(res.StrategyErrors, err)
	m.metrics.unresolvedStrategy.WithLabelValues(m.name, kind).Inc()
	m.logger.Error("No strategy available",
		"push_id", res.Push.ID(),
		"resolution_id", res.ID,
		"kind", kind,
		"error", err)
}

func (m *Machine) finish(ctx context.Context, res *Resolution, start time.Time) {
	res.Duration = time.Since(start)

	event := string(res.Event)
	m.metrics.resolutions.WithLabelValues(m.name, event).Inc()
	m.metrics.resolutionSeconds.WithLabelValues(m.name, event).Observe(res.Duration.Seconds())
	m.metrics.goalsResolved.WithLabelValues(m.name, event).Observe(float64(res.Goals.Len()))

	m.logger.Info("Resolved goals",
		"push_id", res.Push.ID(),
		"resolution_id", res.ID,
		"event", event,
		"goal_set", res.Goals.Name(),
		"goals", res.Goals.Names(),
		"matched", res.Matched,
		"predicate_failures", len(res.Failures),
		"duration", res.Duration)

	for _, l := range m.listeners {
		if err := l.OnGoalsSet(ctx, res); err != nil {
			m.logger.Warn("Goals set listener failed",
				"push_id", res.Push.ID(),
				"resolution_id", res.ID,
				"error", err)
		}
	}
}
