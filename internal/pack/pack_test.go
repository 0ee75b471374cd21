package pack

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/freeze"
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/project"
	"github.com/adrianpk/sdm/internal/push"
	"github.com/adrianpk/sdm/internal/strategy"
)

func newMachine(buf *bytes.Buffer) *machine.Machine {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return machine.New("test", machine.WithLogger(slog.New(slog.NewTextHandler(buf, nil))))
}

func newPush(t *testing.T, branch string, files map[string]string) *push.Context {
	t.Helper()
	pc, err := push.New(push.Description{
		Repo:   push.Repo{Owner: "acme", Name: "app"},
		Branch: branch,
	}, project.Files(files))
	require.NoError(t, err)
	return pc
}

func TestDeploymentFreezeOnChainMachine(t *testing.T) {
	ctx := context.Background()
	store := freeze.NewMemoryStore()
	m := newMachine(nil)
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))
	require.NoError(t, m.AddExtensionPacks(DeploymentFreeze(store)))
	require.NoError(t, m.Validate())

	pc := newPush(t, "main", nil)
	res, err := m.Resolve(ctx, pc)
	require.NoError(t, err)
	assert.Equal(t, "Checks", res.Goals.Name())

	require.NoError(t, freeze.Freeze(ctx, store, "ops", "", nil))
	res, err = m.Resolve(ctx, pc)
	require.NoError(t, err)
	assert.True(t, res.Goals.Equal(goal.ExplainDeploymentFreezeGoals))
	assert.Equal(t, []string{"Deployment freeze"}, res.Matched)
}

func TestDeploymentFreezeOnContributorMachine(t *testing.T) {
	ctx := context.Background()
	store := freeze.NewMemoryStore()
	m := newMachine(nil)
	m.AddGoalContributors(policy.OnAnyPush().SetGoals(goal.Checks))
	require.NoError(t, m.AddExtensionPacks(DeploymentFreeze(store)))
	assert.False(t, m.HasGoalChain())

	require.NoError(t, freeze.Freeze(ctx, store, "ops", "", nil))
	res, err := m.Resolve(ctx, newPush(t, "main", nil))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"review", "push-reaction", "explain-deployment-freeze"}, res.Goals.Names())
}

func TestNodeSupport(t *testing.T) {
	m := newMachine(nil)
	m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.NpmBuildGoals))
	require.NoError(t, m.AddExtensionPacks(NodeSupport))
	assert.Len(t, NodeBuildRules(), 4)

	res, err := m.Resolve(context.Background(), newPush(t, "main", map[string]string{
		"package.json":      "{}",
		"package-lock.json": "{}",
	}))
	require.NoError(t, err)
	require.NotNil(t, res.Build)
	assert.Equal(t, "npm run build", res.Build.Rule)
	assert.Equal(t, [][]string{{"npm", "ci"}, {"npm", "run", "build"}}, res.Build.Plan.Commands)

	_, err = m.Resolve(context.Background(), newPush(t, "main", map[string]string{"pom.xml": ""}))
	var unresolved *strategy.UnresolvedStrategyError
	assert.ErrorAs(t, err, &unresolved, "node rules do not cover maven")
}

func TestSonarQubeSupport(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SonarConfig
		files   map[string]string
		want    bool
		logLine string
	}{
		{"disabled", config.SonarConfig{}, map[string]string{"pom.xml": ""}, false, "not enabled"},
		{"maven", config.SonarConfig{Enabled: true, URL: "http://sonar"}, map[string]string{"pom.xml": ""}, true, "Enabling SonarQube"},
		{"node", config.SonarConfig{Enabled: true}, map[string]string{"package.json": "{}"}, true, "Enabling SonarQube"},
		{"other stack", config.SonarConfig{Enabled: true}, map[string]string{"go.mod": ""}, false, "Enabling SonarQube"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := newMachine(&buf)
			m.SetGoalChain(policy.OnAnyPush().SetGoals(goal.Checks))
			require.NoError(t, m.AddExtensionPacks(SonarQubeSupport(tt.cfg)))
			assert.Contains(t, buf.String(), tt.logLine)

			res, err := m.Resolve(context.Background(), newPush(t, "main", tt.files))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Goals.Contains(goal.CodeInspectionGoal.Name))
		})
	}
}
