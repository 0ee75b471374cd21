// Package strategy selects the concrete builder or deployer that realises a
// goal, using the same predicates as goal rules.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrianpk/sdm/internal/policy"
	"github.com/adrianpk/sdm/internal/push"
)

// UnresolvedStrategyError reports a goal kind with no matching strategy and
// no default.
type UnresolvedStrategyError struct {
	Kind   string
	PushID string
}

func (e *UnresolvedStrategyError) Error() string {
	return fmt.Sprintf("no strategy available for %s on push %s", e.Kind, e.PushID)
}

type entry[S any] struct {
	label     string
	predicate policy.Predicate
	strategy  S
}

// Table maps predicates to strategies for one goal kind. Entries are tried in
// registration order; the first match wins, else the default.
type Table[S any] struct {
	kind       string
	entries    []entry[S]
	def        S
	hasDefault bool
}

// NewTable creates an empty table for kind.
func NewTable[S any](kind string) *Table[S] {
	return &Table[S]{kind: kind}
}

// Kind returns the goal kind the table serves.
func (t *Table[S]) Kind() string {
	return t.kind
}

// Register appends an entry.
func (t *Table[S]) Register(label string, p policy.Predicate, s S) {
	if label == "" {
		label = p.Label()
	}
	t.entries = append(t.entries, entry[S]{label: label, predicate: p, strategy: s})
}

// RegisterDefault sets the fallback strategy, replacing any earlier one.
func (t *Table[S]) RegisterDefault(s S) {
	t.def = s
	t.hasDefault = true
}

// HasDefault reports whether a fallback is registered.
func (t *Table[S]) HasDefault() bool {
	return t.hasDefault
}

// Len returns the number of predicate entries, excluding the default.
func (t *Table[S]) Len() int {
	return len(t.entries)
}

// Validate checks every entry's predicate.
func (t *Table[S]) Validate() error {
	for _, e := range t.entries {
		if err := e.predicate.Validate(); err != nil {
			return fmt.Errorf("%s strategy %q: %w", t.kind, e.label, err)
		}
	}
	return nil
}

// Selection is the chosen strategy and why.
type Selection[S any] struct {
	Strategy S
	// Rule is the label of the matching entry, or "default".
	Rule     string
	Default  bool
	Failures []policy.PredicateFailure
}

// SelectOptions tune selection.
type SelectOptions struct {
	PredicateTimeout time.Duration
	Logger           *slog.Logger
	OnFailure        func(policy.PredicateFailure)
}

// Select picks the strategy for pc. An entry whose predicate fails is skipped
// and reported. With no match and no default it returns
// *UnresolvedStrategyError.
func (t *Table[S]) Select(ctx context.Context, pc *push.Context, opts SelectOptions) (Selection[S], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sel Selection[S]
	for _, e := range t.entries {
		v, err := e.predicate.Explain(ctx, pc, opts.PredicateTimeout)
		if err != nil {
			failure := policy.PredicateFailure{Rule: t.kind + ": " + e.label, Predicate: v.Cause, Err: err}
			sel.Failures = append(sel.Failures, failure)
			logger.Warn("Strategy predicate failed, skipping entry",
				"push_id", pc.ID(),
				"kind", t.kind,
				"rule", e.label,
				"predicate", v.Cause,
				"error", err)
			if opts.OnFailure != nil {
				opts.OnFailure(failure)
			}
			continue
		}
		if v.Matched {
			sel.Strategy = e.strategy
			sel.Rule = e.label
			return sel, nil
		}
	}

	if t.hasDefault {
		sel.Strategy = t.def
		sel.Rule = "default"
		sel.Default = true
		return sel, nil
	}
	return sel, &UnresolvedStrategyError{Kind: t.kind, PushID: pc.ID()}
}
