package pushtest

import (
	"regexp"
)

// Project markers.
var (
	IsMaven                 = HasFile("pom.xml").Named("is maven")
	IsNode                  = HasFile("package.json").Named("is node")
	HasDockerfile           = HasFile("Dockerfile").Named("has dockerfile")
	HasCloudFoundryManifest = HasFile("manifest.yml").Named("has cloud foundry manifest")
	HasPackageLock          = HasFile("package-lock.json").Named("has package lock")
	HasBuildScript          = HasFile("build.sh").Named("has build script")

	HasSpringBootApplicationClass = HasFileContaining(
		"src/main/{java,kotlin}/**/*.{java,kt}",
		regexp.MustCompile(`@SpringBootApplication`),
	).Named("has spring boot application class")
)

// Material changes: pushes that touch only docs or unrelated files do not
// need a new pipeline.
var (
	MaterialChangeToJavaRepo = ChangedFileMatching("material change to java repo",
		"**/*.java", "**/*.kt", "**/*.xml", "**/*.properties", "**/*.yml", "**/*.yaml",
		"**/*.gradle", "**/*.kts", "**/Dockerfile",
	)

	MaterialChangeToNodeRepo = ChangedFileMatching("material change to node repo",
		"**/*.js", "**/*.ts", "**/*.tsx", "**/*.jsx", "**/*.json", "**/*.mjs", "**/*.cjs",
		"**/*.yml", "**/*.yaml", "**/*.graphql", "**/Dockerfile",
	)
)
