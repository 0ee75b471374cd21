package machines

import (
	"github.com/adrianpk/sdm/internal/freeze"
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/pack"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/pushtest"
)

// Additive builds the contributor machine: each rule adds goals and the
// union is planned. A freeze adds the explanation goal and withholds the
// production deployment; staging still deploys.
func Additive(o Options) (*machine.Machine, error) {
	cfg := o.Config
	frozen := freeze.Gate(o.Freeze)
	m := machine.New(cfg.Machine, o.machineOptions()...)

	m.AddGoalContributors(
		policy.OnAnyPush().SetGoals(goal.Checks),
		policy.WhenPushSatisfies(policy.Any(pushtest.IsMaven, pushtest.IsNode)).
			ItMeans("Build").
			SetGoal(goal.JustBuildGoal),
		policy.WhenPushSatisfies(pushtest.HasSpringBootApplicationClass, policy.Not(pushtest.ToDefaultBranch)).
			ItMeans("Local deploy").
			SetGoal(goal.LocalDeploymentGoal),
		policy.WhenPushSatisfies(pushtest.HasCloudFoundryManifest, pushtest.ToDefaultBranch).
			ItMeans("Staging deploy").
			SetGoal(goal.ArtifactGoal, goal.StagingDeploymentGoal, goal.StagingEndpointGoal, goal.StagingVerifiedGoal),
		policy.WhenPushSatisfies(pushtest.HasCloudFoundryManifest, policy.Not(frozen), pushtest.ToDefaultBranch).
			ItMeans("Production deploy").
			SetGoal(goal.ArtifactGoal, goal.ProductionDeploymentGoal, goal.ProductionEndpointGoal),
	)

	m.AddDeployRules(mavenDeployRules(cfg)...)

	m.AddDisposalRules(
		policy.WhenPushSatisfies(pushtest.IsMaven, pushtest.HasSpringBootApplicationClass, pushtest.HasCloudFoundryManifest).
			ItMeans("Java project to undeploy from PCF").
			SetGoals(goal.UndeployEverywhereGoals),
		policy.WhenPushSatisfies(pushtest.AnyPush).
			ItMeans("We can always delete the repo").
			SetGoals(goal.RepositoryDeletionGoals),
	)

	err := m.AddExtensionPacks(
		pack.DeploymentFreeze(o.Freeze),
		pack.NodeSupport,
		pack.SonarQubeSupport(cfg.Sonar),
	)
	if err != nil {
		return nil, err
	}
	m.AddBuildRules(mavenBuildDefault())
	return m, nil
}
