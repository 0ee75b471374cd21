// Package pack provides extension packs: bundles of rules, strategies and
// listeners that a machine adds in one call.
package pack

import (
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/pushtest"
	"github.com/adrianpk/sdm/internal/strategy"
)

// NodeBuildRules are the npm builders, most specific first. Pushes to the
// default branch run the full build; others only compile. A lock file means
// a clean install.
func NodeBuildRules() []strategy.BuildRule {
	return []strategy.BuildRule{
		strategy.BuildWhen(pushtest.IsNode, pushtest.ToDefaultBranch, pushtest.HasPackageLock).
			ItMeans("npm run build").
			Set(strategy.NodeBuilder{Install: "npm ci", Build: "npm run build"}),
		strategy.BuildWhen(pushtest.IsNode, pushtest.HasPackageLock).
			ItMeans("npm run compile").
			Set(strategy.NodeBuilder{Install: "npm ci", Build: "npm run compile"}),
		strategy.BuildWhen(pushtest.IsNode, pushtest.ToDefaultBranch).
			ItMeans("npm run build - no package lock").
			Set(strategy.NodeBuilder{Install: "npm i", Build: "npm run build"}),
		strategy.BuildWhen(pushtest.IsNode).
			ItMeans("npm run compile - no package lock").
			Set(strategy.NodeBuilder{Install: "npm i", Build: "npm run compile"}),
	}
}

// NodeSupport registers the npm builders.
var NodeSupport = machine.ExtensionPack{
	Name: "Node support",
	Configure: func(m *machine.Machine) error {
		m.AddBuildRules(NodeBuildRules()...)
		return nil
	},
}
