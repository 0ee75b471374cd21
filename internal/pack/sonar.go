package pack

import (
	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/pushtest"
)

// SonarQubeSupport adds a code inspection goal to every Maven or Node push.
// It does nothing unless cfg.Enabled is set.
func SonarQubeSupport(cfg config.SonarConfig) machine.ExtensionPack {
	return machine.ExtensionPack{
		Name: "SonarQube",
		Configure: func(m *machine.Machine) error {
			if !cfg.Enabled {
				m.Logger().Info("SonarQube integration not enabled")
				return nil
			}
			m.Logger().Info("Enabling SonarQube integration", "url", cfg.URL)
			m.AddGoalContributors(
				policy.WhenPushSatisfies(policy.Any(pushtest.IsMaven, pushtest.IsNode)).
					ItMeans("SonarQube inspection").
					SetGoal(goal.CodeInspectionGoal),
			)
			return nil
		},
	}
}
