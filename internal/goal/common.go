package goal

// Well-known goals.
var (
	ReviewGoal         = Goal{Name: "review", Kind: KindReview, Description: "Code review"}
	AutofixGoal        = Goal{Name: "autofix", Kind: KindReview, Description: "Autofixes"}
	PushReactionGoal   = Goal{Name: "push-reaction", Kind: KindReaction, Description: "Push reactions"}
	CodeInspectionGoal = Goal{Name: "code-inspection", Kind: KindReview, Description: "Static code inspection"}

	BuildGoal       = Goal{Name: "build", Kind: KindBuild, Description: "Build"}
	JustBuildGoal   = Goal{Name: "just-build", Kind: KindBuild, Description: "Build without deploying"}
	DockerBuildGoal = Goal{Name: "docker-build", Kind: KindBuild, Description: "Docker build"}
	ArtifactGoal    = Goal{Name: "artifact", Kind: KindArtifact, Description: "Store artifact"}

	LocalDeploymentGoal = Goal{Name: "deploy-local", Kind: KindDeploy, Environment: EnvLocal, Description: "Deploy locally"}
	LocalEndpointGoal   = Goal{Name: "endpoint-local", Kind: KindEndpoint, Environment: EnvLocal, Description: "Locate local service endpoint"}

	StagingDeploymentGoal   = Goal{Name: "deploy-staging", Kind: KindDeploy, Environment: EnvStaging, Description: "Deploy to staging"}
	StagingEndpointGoal     = Goal{Name: "endpoint-staging", Kind: KindEndpoint, Environment: EnvStaging, Description: "Locate service endpoint in staging"}
	StagingVerifiedGoal     = Goal{Name: "verify-staging", Kind: KindVerify, Environment: EnvStaging, Description: "Verify staging deployment"}
	StagingUndeploymentGoal = Goal{Name: "undeploy-staging", Kind: KindUndeploy, Environment: EnvStaging, Description: "Undeploy from staging"}

	ProductionDeploymentGoal   = Goal{Name: "deploy-production", Kind: KindDeploy, Environment: EnvProduction, Description: "Deploy to production"}
	ProductionEndpointGoal     = Goal{Name: "endpoint-production", Kind: KindEndpoint, Environment: EnvProduction, Description: "Locate service endpoint in production"}
	ProductionUndeploymentGoal = Goal{Name: "undeploy-production", Kind: KindUndeploy, Environment: EnvProduction, Description: "Undeploy from production"}

	StagingKubernetesDeploymentGoal    = Goal{Name: "deploy-staging-k8s", Kind: KindDeploy, Environment: EnvStaging, Description: "Deploy to staging Kubernetes"}
	ProductionKubernetesDeploymentGoal = Goal{Name: "deploy-production-k8s", Kind: KindDeploy, Environment: EnvProduction, Description: "Deploy to production Kubernetes"}

	DeleteRepositoryGoal = Goal{Name: "delete-repository", Kind: KindDispose, Description: "Delete repository"}

	ExplainDeploymentFreezeGoal = Goal{Name: "explain-deployment-freeze", Kind: KindInfo, Description: "Explain deployment freeze"}
)

// Well-known goal sets.
var (
	Checks = NewSet("Checks", ReviewGoal, PushReactionGoal)

	HttpServiceGoals = NewSet("HTTP Service",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal, ArtifactGoal,
		StagingDeploymentGoal, StagingEndpointGoal, StagingVerifiedGoal,
		ProductionDeploymentGoal, ProductionEndpointGoal)

	LocalDeploymentGoals = NewSet("Local Deployment",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal,
		LocalDeploymentGoal, LocalEndpointGoal)

	LibraryGoals = NewSet("Library",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal, ArtifactGoal)

	NpmBuildGoals = NewSet("npm build",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal)

	NpmDockerGoals = NewSet("npm docker",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal, DockerBuildGoal)

	NpmDeployGoals = NewSet("npm deploy",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal, ArtifactGoal,
		StagingDeploymentGoal, StagingEndpointGoal, StagingVerifiedGoal,
		ProductionDeploymentGoal, ProductionEndpointGoal)

	NpmKubernetesDeployGoals = NewSet("npm kubernetes deploy",
		AutofixGoal, ReviewGoal, PushReactionGoal, BuildGoal, DockerBuildGoal,
		StagingKubernetesDeploymentGoal, ProductionKubernetesDeploymentGoal)

	UndeployEverywhereGoals = NewSet("Undeploy everywhere",
		StagingUndeploymentGoal, ProductionUndeploymentGoal)

	RepositoryDeletionGoals = NewSet("Repository deletion", DeleteRepositoryGoal)

	ExplainDeploymentFreezeGoals = NewSet("Deployment freeze", ExplainDeploymentFreezeGoal)
)
