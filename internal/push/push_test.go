package push

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	changed := []string{"pom.xml"}
	pc, err := New(Description{
		Repo:          Repo{Owner: "acme", Name: "app", Public: true},
		Branch:        "feature/x",
		SHA:           "0123456789abcdef",
		Author:        "jo",
		ChangedFiles:  changed,
		DeployEnabled: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "acme/app@0123456", pc.ID())
	assert.Equal(t, "main", pc.DefaultBranch())
	assert.False(t, pc.ToDefaultBranch())
	assert.True(t, pc.Repo().Public)
	assert.Equal(t, "jo", pc.Author())
	assert.True(t, pc.DeployEnabled())

	changed[0] = "mutated"
	files := pc.ChangedFiles()
	assert.Equal(t, []string{"pom.xml"}, files)
	files[0] = "mutated"
	assert.Equal(t, []string{"pom.xml"}, pc.ChangedFiles())
}

func TestNewID(t *testing.T) {
	tests := []struct {
		name string
		d    Description
		want string
	}{
		{"explicit", Description{ID: "push-1", Repo: Repo{Owner: "a", Name: "b"}, Branch: "main"}, "push-1"},
		{"short sha", Description{Repo: Repo{Owner: "a", Name: "b"}, Branch: "main", SHA: "abc"}, "a/b@abc"},
		{"no sha uses branch", Description{Repo: Repo{Owner: "a", Name: "b"}, Branch: "dev"}, "a/b@dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := New(tt.d, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pc.ID())
		})
	}
}

func TestNewDefaultBranch(t *testing.T) {
	pc, err := New(Description{Repo: Repo{Owner: "a", Name: "b"}, Branch: "trunk", DefaultBranch: "trunk"}, nil)
	require.NoError(t, err)
	assert.True(t, pc.ToDefaultBranch())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Description
		wantErr []string
	}{
		{"valid", Description{Repo: Repo{Owner: "a", Name: "b"}, Branch: "main"}, nil},
		{"missing everything", Description{}, []string{"repo.owner", "repo.name", "branch"}},
		{"missing branch", Description{Repo: Repo{Owner: "a", Name: "b"}}, []string{"branch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestFileQueriesWithoutProject(t *testing.T) {
	pc, err := New(Description{Repo: Repo{Owner: "a", Name: "b"}, Branch: "main"}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = pc.HasFile(ctx, "pom.xml")
	assert.ErrorIs(t, err, ErrNoProject)
	_, err = pc.Glob(ctx, "**/*.java")
	assert.ErrorIs(t, err, ErrNoProject)
	_, err = pc.ReadFile(ctx, "pom.xml")
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestChangedFilesKnown(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantKnown bool
		wantFiles []string
	}{
		{"omitted", "repo: {owner: a, name: b}\nbranch: main\n", false, nil},
		{"empty list", "repo: {owner: a, name: b}\nbranch: main\nchanged_files: []\n", true, []string{}},
		{"listed", "repo: {owner: a, name: b}\nbranch: main\nchanged_files: [pom.xml]\n", true, []string{"pom.xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			pc, err := New(d, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKnown, pc.ChangedFilesKnown())
			assert.Equal(t, tt.wantFiles, pc.ChangedFiles())
		})
	}
}

func TestParse(t *testing.T) {
	yamlDoc := `
repo:
  owner: acme
  name: app
  public: true
branch: main
sha: deadbeef
changed_files:
  - src/main/java/App.java
deploy_enabled: true
`
	d, err := Parse([]byte(yamlDoc))
	require.NoError(t, err)
	assert.Equal(t, "acme", d.Repo.Owner)
	assert.True(t, d.Repo.Public)
	assert.True(t, d.DeployEnabled)
	assert.Equal(t, []string{"src/main/java/App.java"}, d.ChangedFiles)

	jsonDoc := `{"repo": {"owner": "acme", "name": "web"}, "branch": "dev", "deploy_enabled": false}`
	d, err = Parse([]byte(jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, "web", d.Repo.Name)
	assert.Equal(t, "dev", d.Branch)

	_, err = Parse([]byte("repo: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("branch: main\n"))
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.yml")
	require.NoError(t, os.WriteFile(path, []byte("repo: {owner: a, name: b}\nbranch: main\n"), 0644))

	d, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a/b", d.Repo.Slug())

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
