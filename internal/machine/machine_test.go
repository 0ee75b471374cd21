package machine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
	"github.com/adrianpk/sdm/internal/strategy"
)

var (
	yes = policy.Always("yes", true)
	no  = policy.Always("no", false)
)

func testPush(t *testing.T) *push.Context {
	t.Helper()
	pc, err := push.New(push.Description{
		Repo:   push.Repo{Owner: "acme", Name: "app"},
		Branch: "main",
		SHA:    "0123456789abcdef",
	}, nil)
	require.NoError(t, err)
	return pc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func stagingRule(p policy.Predicate) strategy.DeployRule {
	return strategy.DeployWhen(p).
		ItMeans("staging").
		DeployTo(goal.StagingDeploymentGoal, goal.StagingEndpointGoal, goal.StagingUndeploymentGoal).
		Using(strategy.CloudFoundryDeployer{API: "api", Org: "acme", Space: "dev"})
}

func TestValidate(t *testing.T) {
	conflicting := goal.Goal{Name: "build", Kind: goal.KindDeploy}

	tests := []struct {
		name    string
		setup   func(*Machine)
		wantErr string
	}{
		{
			name:  "chain only",
			setup: func(m *Machine) { m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals)) },
		},
		{
			name:  "contributors only",
			setup: func(m *Machine) { m.AddGoalContributors(policy.OnAnyPush().SetGoals(goal.Checks)) },
		},
		{
			name:    "empty machine",
			setup:   func(*Machine) {},
			wantErr: "no goal chain and no goal contributors",
		},
		{
			name: "invalid rule",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.Given(yes).ItMeans("hollow").Then())
			},
			wantErr: "nested chain is empty",
		},
		{
			name: "conflicting goal across rule sets",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals))
				m.AddGoalContributors(policy.OnAnyPush().SetGoal(conflicting))
			},
			wantErr: "conflicting metadata",
		},
		{
			name: "invalid build predicate",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals))
				m.AddBuildRules(strategy.BuildWhen(policy.Predicate{}).ItMeans("broken").Set(strategy.MavenBuilder{}))
			},
			wantErr: `strategy "broken"`,
		},
		{
			name: "build rule without builder",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals))
				m.AddBuildRules(strategy.BuildWhen(policy.AnyPush).Set(nil))
			},
			wantErr: "has no builder",
		},
		{
			name: "default build rule without builder",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals))
				m.AddBuildRules(strategy.BuildDefault(nil))
			},
			wantErr: "default build rule has no builder",
		},
		{
			name: "deploy rule without deployer",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.LibraryGoals))
				m.AddDeployRules(strategy.DeployWhen(yes).ItMeans("nowhere").
					DeployTo(goal.StagingDeploymentGoal, goal.Goal{}, goal.Goal{}).Using(nil))
			},
			wantErr: "has no deployer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("test", WithLogger(quietLogger()))
			tt.setup(m)
			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), `machine "test"`)
		})
	}
}

func TestResolveChainAndContributions(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*Machine)
		wantName  string
		wantGoals []string
	}{
		{
			name: "chain only",
			setup: func(m *Machine) {
				m.SetGoalChain(
					policy.WhenPushSatisfies(no).SetGoals(goal.Checks),
					policy.OnAnyPush().SetGoals(goal.RepositoryDeletionGoals),
				)
			},
			wantName:  "Repository deletion",
			wantGoals: []string{"delete-repository"},
		},
		{
			name: "contributions extend the chain result",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.RepositoryDeletionGoals))
				m.AddGoalContributors(policy.OnAnyPush().SetGoals(goal.Checks))
			},
			wantName:  "Repository deletion",
			wantGoals: []string{"delete-repository", "review", "push-reaction"},
		},
		{
			name: "contributions replace an empty chain result",
			setup: func(m *Machine) {
				m.SetGoalChain(policy.WhenPushSatisfies(no).SetGoals(goal.RepositoryDeletionGoals))
				m.AddGoalContributors(policy.OnAnyPush().SetGoals(goal.Checks))
			},
			wantName:  "Contributed goals",
			wantGoals: []string{"review", "push-reaction"},
		},
		{
			name: "nothing matches",
			setup: func(m *Machine) {
				m.AddGoalContributors(policy.WhenPushSatisfies(no).SetGoals(goal.Checks))
			},
			wantName:  "No goals",
			wantGoals: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("test", WithLogger(quietLogger()))
			tt.setup(m)
			require.NoError(t, m.Validate())

			res, err := m.Resolve(context.Background(), testPush(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, res.Goals.Name())
			assert.Equal(t, tt.wantGoals, res.Goals.Names())
			assert.Equal(t, EventPush, res.Event)
			assert.Equal(t, "test", res.Machine)
			assert.NotEmpty(t, res.ID)
		})
	}
}

func TestResolveSelectsStrategies(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.NewSet("Ship",
		goal.BuildGoal, goal.StagingDeploymentGoal, goal.StagingEndpointGoal)))
	m.AddBuildRules(strategy.BuildDefault(strategy.MavenBuilder{}))
	m.AddDeployRules(stagingRule(no), stagingRule(yes))
	require.NoError(t, m.Validate())

	res, err := m.Resolve(context.Background(), testPush(t))
	require.NoError(t, err)

	require.NotNil(t, res.Build)
	assert.True(t, res.Build.Default)
	assert.Equal(t, "maven", res.Build.Plan.Builder)

	require.Len(t, res.Deployments, 1, "deploy and endpoint share one table")
	d := res.Deployments[0]
	assert.Equal(t, "deploy:deploy-staging", d.Kind)
	assert.Equal(t, []string{"deploy-staging", "endpoint-staging"}, d.Goals)
	assert.Equal(t, goal.EnvStaging, d.Target.Environment)
	assert.Equal(t, "cf://api/acme/dev/app-staging", d.Target.Location)
}

func TestResolveNoStrategyForGoalsNotPresent(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))
	require.NoError(t, m.Validate())

	res, err := m.Resolve(context.Background(), testPush(t))
	require.NoError(t, err, "no builder needed without a build goal")
	assert.Nil(t, res.Build)
	assert.Empty(t, res.Deployments)
}

func TestResolveUnresolvedStrategies(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := New("test", WithLogger(quietLogger()), WithMetrics(metrics))
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.NewSet("Ship",
		goal.BuildGoal, goal.StagingDeploymentGoal, goal.ProductionDeploymentGoal)))
	m.AddDeployRules(stagingRule(yes))
	require.NoError(t, m.Validate())

	res, err := m.Resolve(context.Background(), testPush(t))
	require.Error(t, err)
	require.NotNil(t, res, "resolution returned alongside the error")

	// build and production are unresolved; staging still proceeds.
	require.Len(t, res.StrategyErrors, 2)
	var unresolved *strategy.UnresolvedStrategyError
	require.ErrorAs(t, res.StrategyErrors[0], &unresolved)
	assert.Equal(t, strategy.BuildKind, unresolved.Kind)
	require.ErrorAs(t, res.StrategyErrors[1], &unresolved)
	assert.Equal(t, "deploy:deploy-production", unresolved.Kind)
	require.Len(t, res.Deployments, 1)
	assert.Equal(t, "deploy:deploy-staging", res.Deployments[0].Kind)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.unresolvedStrategy.WithLabelValues("test", strategy.BuildKind)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("test", "push")))
}

func TestResolveRecordsPredicateFailures(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	m := New("test", WithLogger(quietLogger()), WithMetrics(metrics))
	flaky := policy.NewPredicate("flaky", func(context.Context, *push.Context) (bool, error) {
		return false, errors.New("boom")
	})
	m.SetGoalChain(
		policy.WhenPushSatisfies(flaky).SetGoals(goal.RepositoryDeletionGoals),
		policy.OnAnyPush().SetGoals(goal.Checks),
	)

	res, err := m.Resolve(context.Background(), testPush(t))
	require.NoError(t, err)
	assert.Equal(t, "Checks", res.Goals.Name())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.predicateFailures.WithLabelValues("test", "flaky")))
}

func TestResolveDisposal(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))
	m.AddDisposalRules(
		policy.WhenPushSatisfies(no).SetGoals(goal.UndeployEverywhereGoals),
		policy.OnAnyPush().SetGoals(goal.RepositoryDeletionGoals),
	)

	res, err := m.ResolveDisposal(context.Background(), testPush(t))
	require.NoError(t, err)
	assert.Equal(t, EventDisposal, res.Event)
	assert.Equal(t, []string{"delete-repository"}, res.Goals.Names())
}

func TestListeners(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))

	var mu sync.Mutex
	var seen []string
	record := func(name string, err error) GoalsSetListener {
		return ListenerFunc(func(_ context.Context, r *Resolution) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, name+":"+r.Goals.Name())
			return err
		})
	}
	m.AddGoalsSetListeners(record("first", errors.New("listener down")), record("second", nil))

	_, err := m.Resolve(context.Background(), testPush(t))
	require.NoError(t, err, "listener errors do not fail the resolution")
	assert.Equal(t, []string{"first:Checks", "second:Checks"}, seen)
}

func TestExtensionPacks(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))

	err := m.AddExtensionPacks(
		ExtensionPack{Name: "checks", Configure: func(m *Machine) error {
			m.AddGoalContributors(policy.OnAnyPush().SetGoals(goal.Checks))
			return nil
		}},
		ExtensionPack{Name: "noop"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"checks"}, m.ExtensionPacks())
	assert.NoError(t, m.Validate())

	err = m.AddExtensionPacks(ExtensionPack{Name: "broken", Configure: func(*Machine) error {
		return errors.New("missing config")
	}})
	assert.ErrorContains(t, err, `extension pack "broken"`)
	assert.Equal(t, []string{"checks"}, m.ExtensionPacks())
}

func TestChainOrdering(t *testing.T) {
	m := New("test", WithLogger(quietLogger()))
	assert.False(t, m.HasGoalChain())

	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))
	m.PrependGoalChain(policy.OnAnyPush().SetGoals(goal.ExplainDeploymentFreezeGoals))
	assert.True(t, m.HasGoalChain())

	res, err := m.Resolve(context.Background(), testPush(t))
	require.NoError(t, err)
	assert.True(t, res.Goals.Equal(goal.ExplainDeploymentFreezeGoals))
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) }, "collectors register once")
	assert.NotPanics(t, func() { NewMetrics(nil) })
}
