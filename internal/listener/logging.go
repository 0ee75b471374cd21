// Package listener provides goals-set listeners: callbacks run after every
// resolution with the resolved goals and the push they were resolved for.
package listener

import (
	"context"
	"log/slog"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/machine"
)

// Logging logs one line per planned goal, with the strategy chosen for it.
type Logging struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogging creates a logging listener. A nil logger uses slog.Default().
func NewLogging(logger *slog.Logger, level slog.Level) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger, level: level}
}

// OnGoalsSet implements machine.GoalsSetListener.
func (l *Logging) OnGoalsSet(ctx context.Context, r *machine.Resolution) error {
	if r.Goals.IsEmpty() {
		l.logger.Log(ctx, l.level, "No goals planned",
			"push_id", r.Push.ID(),
			"resolution_id", r.ID)
		return nil
	}

	strategies := strategyByGoal(r)
	for _, g := range r.Goals.Goals() {
		attrs := []any{
			"push_id", r.Push.ID(),
			"resolution_id", r.ID,
			"goal", g.Name,
			"kind", string(g.Kind),
		}
		if g.Environment != "" {
			attrs = append(attrs, "environment", string(g.Environment))
		}
		if s, ok := strategies[g.Name]; ok {
			attrs = append(attrs, "strategy", s)
		}
		l.logger.Log(ctx, l.level, "Goal planned", attrs...)
	}
	return nil
}

func strategyByGoal(r *machine.Resolution) map[string]string {
	out := make(map[string]string)
	if r.Build != nil {
		for _, g := range r.Goals.Goals() {
			if g.Kind == goal.KindBuild {
				out[g.Name] = r.Build.Plan.Builder
			}
		}
	}
	for _, d := range r.Deployments {
		for _, name := range d.Goals {
			out[name] = d.Target.Deployer + " " + d.Target.Location
		}
	}
	return out
}
