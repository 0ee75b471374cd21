package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

var (
	yes = policy.Always("yes", true)
	no  = policy.Always("no", false)
)

func broken(label string) policy.Predicate {
	return policy.NewPredicate(label, func(context.Context, *push.Context) (bool, error) {
		return false, errors.New("boom")
	})
}

func testPush(t *testing.T, branch string) *push.Context {
	t.Helper()
	pc, err := push.New(push.Description{
		Repo:   push.Repo{Owner: "acme", Name: "app"},
		Branch: branch,
		SHA:    "0123456789abcdef",
	}, nil)
	require.NoError(t, err)
	return pc
}

func TestTableSelect(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*Table[string])
		want        string
		wantRule    string
		wantDefault bool
		wantErr     bool
	}{
		{
			name: "first match wins",
			setup: func(tb *Table[string]) {
				tb.Register("skip", no, "a")
				tb.Register("first", yes, "b")
				tb.Register("second", yes, "c")
				tb.RegisterDefault("d")
			},
			want:     "b",
			wantRule: "first",
		},
		{
			name: "default when nothing matches",
			setup: func(tb *Table[string]) {
				tb.Register("skip", no, "a")
				tb.RegisterDefault("d")
			},
			want:        "d",
			wantRule:    "default",
			wantDefault: true,
		},
		{
			name: "later default replaces earlier",
			setup: func(tb *Table[string]) {
				tb.RegisterDefault("d1")
				tb.RegisterDefault("d2")
			},
			want:        "d2",
			wantRule:    "default",
			wantDefault: true,
		},
		{
			name: "unresolved without default",
			setup: func(tb *Table[string]) {
				tb.Register("skip", no, "a")
			},
			wantErr: true,
		},
		{
			name:    "empty table",
			setup:   func(*Table[string]) {},
			wantErr: true,
		},
		{
			name: "label defaults to predicate label",
			setup: func(tb *Table[string]) {
				tb.Register("", yes, "a")
			},
			want:     "a",
			wantRule: "yes",
		},
	}

	pc := testPush(t, "main")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := NewTable[string]("thing")
			tt.setup(tb)

			sel, err := tb.Select(context.Background(), pc, SelectOptions{})
			if tt.wantErr {
				var unresolved *UnresolvedStrategyError
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, "thing", unresolved.Kind)
				assert.Equal(t, pc.ID(), unresolved.PushID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Strategy)
			assert.Equal(t, tt.wantRule, sel.Rule)
			assert.Equal(t, tt.wantDefault, sel.Default)
		})
	}
}

func TestTableSelectIsDeterministic(t *testing.T) {
	tb := NewTable[string]("thing")
	tb.Register("a", no, "a")
	tb.Register("b", yes, "b")
	tb.Register("c", yes, "c")
	pc := testPush(t, "main")

	for i := 0; i < 10; i++ {
		sel, err := tb.Select(context.Background(), pc, SelectOptions{})
		require.NoError(t, err)
		assert.Equal(t, "b", sel.Strategy)
	}
}

func TestTableSelectSkipsFailingEntry(t *testing.T) {
	tb := NewTable[string]("thing")
	tb.Register("flaky", broken("flaky check"), "a")
	tb.Register("fallback", yes, "b")

	var observed []policy.PredicateFailure
	sel, err := tb.Select(context.Background(), testPush(t, "main"), SelectOptions{
		OnFailure: func(f policy.PredicateFailure) { observed = append(observed, f) },
	})
	require.NoError(t, err)
	assert.Equal(t, "b", sel.Strategy)
	require.Len(t, sel.Failures, 1)
	assert.Equal(t, "thing: flaky", sel.Failures[0].Rule)
	assert.Equal(t, "flaky check", sel.Failures[0].Predicate)
	assert.Len(t, observed, 1)
}

func TestTableValidate(t *testing.T) {
	tb := NewTable[string]("thing")
	tb.Register("ok", yes, "a")
	assert.NoError(t, tb.Validate())
	assert.Equal(t, 1, tb.Len())
	assert.False(t, tb.HasDefault())

	tb.Register("bad", policy.Predicate{}, "b")
	assert.ErrorContains(t, tb.Validate(), `thing strategy "bad"`)
}

func TestBuildRules(t *testing.T) {
	tb := NewTable[Builder](BuildKind)
	BuildWhen(no).ItMeans("script").Set(ScriptBuilder{Script: "build.sh"}).ApplyTo(tb)
	BuildWhen(yes, yes).ItMeans("npm").Set(NodeBuilder{Install: "npm ci", Build: "npm run build"}).ApplyTo(tb)
	BuildDefault(MavenBuilder{}).ApplyTo(tb)

	assert.Equal(t, 2, tb.Len())
	assert.True(t, tb.HasDefault())

	pc := testPush(t, "main")
	sel, err := tb.Select(context.Background(), pc, SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "npm", sel.Rule)
	assert.Equal(t, BuildPlan{
		Builder:  "npm (npm ci, npm run build)",
		Commands: [][]string{{"npm", "ci"}, {"npm", "run", "build"}},
	}, sel.Strategy.Plan(pc))
}

func TestBuildRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    BuildRule
		wantErr string
	}{
		{"builder", BuildWhen(yes).ItMeans("npm").Set(NodeBuilder{}), ""},
		{"default builder", BuildDefault(MavenBuilder{}), ""},
		{"nil builder", BuildWhen(yes).ItMeans("npm").Set(nil), `build rule "npm" has no builder`},
		{"nil default", BuildDefault(nil), "default build rule has no builder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuilderPlans(t *testing.T) {
	pc := testPush(t, "main")

	tests := []struct {
		name    string
		builder Builder
		want    BuildPlan
	}{
		{
			name:    "maven default args",
			builder: MavenBuilder{},
			want: BuildPlan{
				Builder:  "maven",
				Commands: [][]string{{"mvn", "-B", "package"}},
				Artifact: "target/app.jar",
			},
		},
		{
			name:    "maven custom args",
			builder: MavenBuilder{Args: []string{"verify", "-DskipITs"}},
			want: BuildPlan{
				Builder:  "maven",
				Commands: [][]string{{"mvn", "-B", "verify", "-DskipITs"}},
				Artifact: "target/app.jar",
			},
		},
		{
			name:    "script",
			builder: ScriptBuilder{Script: "build.sh"},
			want: BuildPlan{
				Builder:  "script build.sh",
				Commands: [][]string{{"sh", "build.sh"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.builder.Plan(pc))
		})
	}
}

func TestDeployerTargets(t *testing.T) {
	pc := testPush(t, "feature/x")

	tests := []struct {
		name     string
		deployer Deployer
		env      goal.Environment
		want     string
	}{
		{"local jar default base", LocalJarDeployer{}, goal.EnvLocal, "http://localhost/acme/app/feature/x"},
		{"local jar custom base", LocalJarDeployer{BaseURL: "http://box:8080/"}, goal.EnvLocal, "http://box:8080/acme/app/feature/x"},
		{"cf staging", CloudFoundryDeployer{API: "api.cf", Org: "acme", Space: "dev"}, goal.EnvStaging, "cf://api.cf/acme/dev/app-staging"},
		{"cf production", CloudFoundryDeployer{API: "api.cf", Org: "acme", Space: "prod"}, goal.EnvProduction, "cf://api.cf/acme/prod/app"},
		{"k8s env namespace", KubernetesDeployer{}, goal.EnvStaging, "k8s://staging/app"},
		{"k8s fixed namespace", KubernetesDeployer{Namespace: "apps"}, goal.EnvProduction, "k8s://apps/app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.deployer.Target(pc, tt.env)
			assert.Equal(t, tt.deployer.Name(), target.Deployer)
			assert.Equal(t, tt.env, target.Environment)
			assert.Equal(t, tt.want, target.Location)
		})
	}
}

func TestDeployRule(t *testing.T) {
	r := DeployWhen(yes).
		ItMeans("staging cf").
		DeployTo(goal.StagingDeploymentGoal, goal.StagingEndpointGoal, goal.StagingUndeploymentGoal).
		Using(CloudFoundryDeployer{Space: "dev"})

	assert.Equal(t, "staging cf", r.Label())
	assert.Equal(t, "deploy:deploy-staging", r.Kind())
	assert.Equal(t, []string{"deploy-staging", "endpoint-staging", "undeploy-staging"}, r.Goals().Names())
	assert.NoError(t, r.Validate())

	k8s := DeployWhen(yes).DeployTo(goal.StagingKubernetesDeploymentGoal, goal.Goal{}, goal.Goal{}).Using(KubernetesDeployer{})
	assert.Equal(t, []string{"deploy-staging-k8s"}, k8s.Goals().Names())

	assert.ErrorContains(t, DeployWhen(yes).ItMeans("no goal").Using(KubernetesDeployer{}).Validate(), "no deploy goal")
	assert.ErrorContains(t, DeployWhen(yes).ItMeans("no deployer").DeployTo(goal.StagingDeploymentGoal, goal.Goal{}, goal.Goal{}).Using(nil).Validate(), "no deployer")

	tb := NewTable[Deployer](r.Kind())
	r.ApplyTo(tb)
	sel, err := tb.Select(context.Background(), testPush(t, "main"), SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cloud foundry", sel.Strategy.Name())
}
