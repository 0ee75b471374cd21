package machines

import (
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/pack"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/pushtest"
	"github.com/adrianpk/sdm/internal/strategy"
)

// CloudFoundry builds the tiered machine: a first-match chain that sorts
// Maven projects into deploy, local and library tiers and Node projects into
// deploy, docker and plain build tiers. A deployment freeze overrides every
// tier.
func CloudFoundry(o Options) (*machine.Machine, error) {
	cfg := o.Config
	cf := cfg.Deploy.CloudFoundry
	m := machine.New(cfg.Machine, o.machineOptions()...)

	m.SetGoalChain(
		policy.Given(pushtest.IsMaven).ItMeans("Maven").Then(
			policy.WhenPushSatisfies(pushtest.HasSpringBootApplicationClass, policy.Not(pushtest.MaterialChangeToJavaRepo)).
				ItMeans("No material change to Java").
				SetGoals(goal.NoGoals),
			policy.WhenPushSatisfies(
				pushtest.ToDefaultBranch,
				pushtest.HasSpringBootApplicationClass,
				pushtest.HasCloudFoundryManifest,
				pushtest.ToPublicRepo,
				policy.Not(seeds(cfg)),
				policy.Not(bots(cfg)),
				pushtest.IsDeployEnabled,
			).
				ItMeans("Spring Boot service to deploy").
				SetGoals(goal.HttpServiceGoals),
			policy.WhenPushSatisfies(pushtest.HasSpringBootApplicationClass, policy.Not(bots(cfg))).
				ItMeans("Spring Boot service local deploy").
				SetGoals(goal.LocalDeploymentGoals),
			policy.OnAnyPush().
				ItMeans("Build Java library").
				SetGoals(goal.LibraryGoals),
		),
		policy.WhenPushSatisfies(pushtest.IsNode, policy.Not(pushtest.MaterialChangeToNodeRepo)).
			ItMeans("No material change to Node").
			SetGoals(goal.NoGoals),
		policy.WhenPushSatisfies(pushtest.IsNode, pushtest.HasCloudFoundryManifest, pushtest.IsDeployEnabled, pushtest.ToDefaultBranch).
			ItMeans("Build and deploy Node").
			SetGoals(goal.NpmDeployGoals),
		policy.WhenPushSatisfies(pushtest.IsNode, pushtest.HasDockerfile, pushtest.ToDefaultBranch, pushtest.IsDeployEnabled).
			ItMeans("Docker deploy Node").
			SetGoals(goal.NpmKubernetesDeployGoals),
		policy.WhenPushSatisfies(pushtest.IsNode, pushtest.HasDockerfile).
			ItMeans("Docker build Node").
			SetGoals(goal.NpmDockerGoals),
		policy.WhenPushSatisfies(pushtest.IsNode, policy.Not(pushtest.HasDockerfile)).
			ItMeans("Build Node").
			SetGoals(goal.NpmBuildGoals),
	)

	m.AddBuildRules(
		strategy.BuildWhen(pushtest.HasBuildScript).
			ItMeans("Custom build script").
			Set(strategy.ScriptBuilder{Script: "build.sh"}),
	)
	m.AddBuildRules(mavenBuildDefault())

	m.AddDeployRules(mavenDeployRules(cfg)...)
	m.AddDeployRules(
		strategy.DeployWhen(pushtest.IsNode).
			ItMeans("Node staging deploy").
			DeployTo(goal.StagingDeploymentGoal, goal.StagingEndpointGoal, goal.StagingUndeploymentGoal).
			Using(strategy.CloudFoundryDeployer{API: cf.API, Org: cf.Org, Space: cf.StagingSpace}),
		strategy.DeployWhen(pushtest.IsNode).
			ItMeans("Node production deploy").
			DeployTo(goal.ProductionDeploymentGoal, goal.ProductionEndpointGoal, goal.ProductionUndeploymentGoal).
			Using(strategy.CloudFoundryDeployer{API: cf.API, Org: cf.Org, Space: cf.ProductionSpace}),
		strategy.DeployWhen(pushtest.IsNode, pushtest.HasDockerfile).
			ItMeans("Node staging kubernetes deploy").
			DeployTo(goal.StagingKubernetesDeploymentGoal, goal.Goal{}, goal.Goal{}).
			Using(strategy.KubernetesDeployer{}),
		strategy.DeployWhen(pushtest.IsNode, pushtest.HasDockerfile).
			ItMeans("Node production kubernetes deploy").
			DeployTo(goal.ProductionKubernetesDeploymentGoal, goal.Goal{}, goal.Goal{}).
			Using(strategy.KubernetesDeployer{}),
	)

	m.AddDisposalRules(
		policy.WhenPushSatisfies(pushtest.IsMaven, pushtest.HasSpringBootApplicationClass, pushtest.HasCloudFoundryManifest).
			ItMeans("Java project to undeploy from PCF").
			SetGoals(goal.UndeployEverywhereGoals),
		policy.WhenPushSatisfies(pushtest.IsNode, pushtest.HasCloudFoundryManifest).
			ItMeans("Node project to undeploy from PCF").
			SetGoals(goal.UndeployEverywhereGoals),
		policy.WhenPushSatisfies(pushtest.AnyPush).
			ItMeans("We can always delete the repo").
			SetGoals(goal.RepositoryDeletionGoals),
	)

	err := m.AddExtensionPacks(
		pack.NodeSupport,
		pack.DeploymentFreeze(o.Freeze),
		pack.SonarQubeSupport(cfg.Sonar),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
