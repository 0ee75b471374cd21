// Package freeze holds the deployment-freeze state and the gate predicate
// that reads it.
//
// Freeze state is the only mutable state shared between resolutions. It is
// written by administrative commands and read on every evaluation of the gate.
package freeze

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

// GateLabel is the label of the freeze gate predicate.
const GateLabel = "deployment frozen"

// State is a snapshot of the freeze flag.
type State struct {
	Frozen bool      `yaml:"frozen" json:"frozen"`
	Reason string    `yaml:"reason,omitempty" json:"reason,omitempty"`
	By     string    `yaml:"by,omitempty" json:"by,omitempty"`
	At     time.Time `yaml:"at,omitempty" json:"at,omitempty"`
}

// Store persists the freeze state. Reads must observe the latest write.
type Store interface {
	State(ctx context.Context) (State, error)
	Set(ctx context.Context, s State) error
}

// Gate returns a predicate that is true while deployments are frozen.
// Register it first in whichever rule set it should dominate.
func Gate(store Store) policy.Predicate {
	return policy.NewPredicate(GateLabel, func(ctx context.Context, _ *push.Context) (bool, error) {
		s, err := store.State(ctx)
		if err != nil {
			return false, fmt.Errorf("read freeze state: %w", err)
		}
		return s.Frozen, nil
	})
}

// Freeze stops deployments.
func Freeze(ctx context.Context, store Store, by, reason string, logger *slog.Logger) error {
	return set(ctx, store, State{Frozen: true, Reason: reason, By: by, At: time.Now().UTC()}, logger)
}

// Thaw resumes deployments.
func Thaw(ctx context.Context, store Store, by string, logger *slog.Logger) error {
	return set(ctx, store, State{Frozen: false, By: by, At: time.Now().UTC()}, logger)
}

func set(ctx context.Context, store Store, s State, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.Set(ctx, s); err != nil {
		return fmt.Errorf("set freeze state: %w", err)
	}
	logger.Info("Deployment freeze updated",
		"frozen", s.Frozen,
		"by", s.By,
		"reason", s.Reason)
	return nil
}
