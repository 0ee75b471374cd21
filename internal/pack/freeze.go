package pack

import (
	"github.com/adrianpk/sdm/internal/freeze"
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/policy"
)

// FreezeRule yields the freeze explanation while deployments are frozen.
func FreezeRule(store freeze.Store) policy.Rule {
	return policy.WhenPushSatisfies(freeze.Gate(store)).
		ItMeans("Deployment freeze").
		SetGoals(goal.ExplainDeploymentFreezeGoals)
}

// DeploymentFreeze installs the freeze gate. On a chain machine the gate is
// put first so a freeze yields only the explanation goal. On a contributor
// machine the explanation is added alongside whatever else matches; rules
// that deploy must guard themselves with policy.Not(freeze.Gate(store)).
func DeploymentFreeze(store freeze.Store) machine.ExtensionPack {
	return machine.ExtensionPack{
		Name: "Deployment freeze",
		Configure: func(m *machine.Machine) error {
			rule := FreezeRule(store)
			if m.HasGoalChain() {
				m.PrependGoalChain(rule)
				return nil
			}
			m.AddGoalContributors(rule)
			return nil
		},
	}
}
