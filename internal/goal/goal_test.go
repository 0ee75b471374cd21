package goal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetDropsDuplicates(t *testing.T) {
	s := NewSet("s", BuildGoal, ReviewGoal, BuildGoal)

	assert.Equal(t, []string{"build", "review"}, s.Names())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "s", s.Name())
}

func TestNoGoalsIsEmpty(t *testing.T) {
	assert.True(t, NoGoals.IsEmpty())
	assert.Equal(t, 0, NoGoals.Len())
	assert.Equal(t, "No goals", NoGoals.Name())
}

func TestSetQueries(t *testing.T) {
	s := HttpServiceGoals

	assert.True(t, s.Contains("deploy-production"))
	assert.False(t, s.Contains("deploy-local"))

	g, ok := s.Get("deploy-staging")
	require.True(t, ok)
	assert.Equal(t, EnvStaging, g.Environment)

	_, ok = s.Get("nope")
	assert.False(t, ok)

	assert.True(t, s.HasKind(KindBuild))
	assert.True(t, s.HasKind(KindVerify))
	assert.False(t, s.HasKind(KindDispose))
}

func TestGoalsReturnsCopy(t *testing.T) {
	s := NewSet("s", BuildGoal)
	goals := s.Goals()
	goals[0] = ReviewGoal

	assert.True(t, s.Contains("build"))
	assert.False(t, s.Contains("review"))
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Set
		want     []string
		wantName string
	}{
		{
			name:     "disjoint",
			a:        NewSet("a", ReviewGoal),
			b:        NewSet("b", BuildGoal),
			want:     []string{"review", "build"},
			wantName: "a",
		},
		{
			name:     "overlap keeps first position",
			a:        NewSet("a", ReviewGoal, BuildGoal),
			b:        NewSet("b", BuildGoal, ArtifactGoal, ReviewGoal),
			want:     []string{"review", "build", "artifact"},
			wantName: "a",
		},
		{
			name:     "empty receiver name takes other",
			a:        Set{},
			b:        NewSet("b", BuildGoal),
			want:     []string{"build"},
			wantName: "b",
		},
		{
			name:     "union with empty",
			a:        NewSet("a", BuildGoal),
			b:        NoGoals,
			want:     []string{"build"},
			wantName: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.a.Union(tt.b)
			assert.Equal(t, tt.want, u.Names())
			assert.Equal(t, tt.wantName, u.Name())
		})
	}
}

func TestUnionDoesNotMutateOperands(t *testing.T) {
	a := NewSet("a", ReviewGoal)
	b := NewSet("b", BuildGoal)

	_ = a.Union(b)

	assert.Equal(t, []string{"review"}, a.Names())
	assert.Equal(t, []string{"build"}, b.Names())
}

func TestEqual(t *testing.T) {
	assert.True(t, NewSet("x", BuildGoal, ReviewGoal).Equal(NewSet("y", BuildGoal, ReviewGoal)))
	assert.False(t, NewSet("x", BuildGoal, ReviewGoal).Equal(NewSet("x", ReviewGoal, BuildGoal)))
	assert.False(t, NewSet("x", BuildGoal).Equal(NoGoals))
}

func TestString(t *testing.T) {
	assert.Equal(t, "Checks [review, push-reaction]", Checks.String())
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.RegisterSet(HttpServiceGoals))
	require.NoError(t, c.RegisterSet(LibraryGoals), "identical goals are not conflicts")

	g, ok := c.Lookup("build")
	require.True(t, ok)
	assert.Equal(t, BuildGoal, g)

	clash := BuildGoal
	clash.Environment = EnvProduction
	err := c.Register(clash)
	require.Error(t, err)

	var conflict *ConflictingGoalError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "build", conflict.Name)
	assert.Equal(t, BuildGoal, conflict.Existing)

	err = c.RegisterSet(NewSet("bad", clash))
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, err.Error(), `goal set "bad"`)
}

func TestCatalogNamesSorted(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.RegisterSet(NewSet("s", ReviewGoal, ArtifactGoal, BuildGoal)))

	assert.Equal(t, []string{"artifact", "build", "review"}, c.Names())
}

func TestWellKnownSetsAreConsistent(t *testing.T) {
	c := NewCatalog()
	for _, s := range []Set{
		Checks, HttpServiceGoals, LocalDeploymentGoals, LibraryGoals,
		NpmBuildGoals, NpmDockerGoals, NpmDeployGoals, NpmKubernetesDeployGoals,
		UndeployEverywhereGoals, RepositoryDeletionGoals, ExplainDeploymentFreezeGoals,
	} {
		assert.NoError(t, c.RegisterSet(s), s.Name())
	}
}
