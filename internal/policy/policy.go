// Package policy provides predicate-guarded goal rules and the resolvers that
// turn a push into a goal set.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/push"
)

// AnyPush matches every push.
var AnyPush = Always("any push", true)

// InvalidRuleError reports a rule that breaks the goals-xor-chain invariant.
type InvalidRuleError struct {
	Rule   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Reason)
}

// Rule is a predicate guarding either a goal set or a nested chain of rules.
type Rule struct {
	label     string
	predicate Predicate
	goals     *goal.Set
	chain     []Rule
}

// RuleBuilder collects a predicate and label before the outcome is fixed.
type RuleBuilder struct {
	predicate Predicate
	label     string
}

// WhenPushSatisfies starts a rule matching when every predicate holds.
func WhenPushSatisfies(preds ...Predicate) RuleBuilder {
	if len(preds) == 1 {
		return RuleBuilder{predicate: preds[0]}
	}
	return RuleBuilder{predicate: All(preds...)}
}

// OnAnyPush starts a rule matching every push.
func OnAnyPush() RuleBuilder {
	return RuleBuilder{predicate: AnyPush}
}

// Given starts a rule whose outcome is a nested chain. It reads the same as
// WhenPushSatisfies and exists for "given X then ..." configurations.
func Given(preds ...Predicate) RuleBuilder {
	return WhenPushSatisfies(preds...)
}

// ItMeans sets the rule's diagnostic label.
func (b RuleBuilder) ItMeans(label string) RuleBuilder {
	b.label = label
	return b
}

// SetGoals finishes the rule with a direct goal set.
func (b RuleBuilder) SetGoals(s goal.Set) Rule {
	return Rule{label: b.labelOr(s.Name()), predicate: b.predicate, goals: &s}
}

// SetGoal finishes the rule with the given goals.
func (b RuleBuilder) SetGoal(goals ...goal.Goal) Rule {
	s := goal.NewSet(b.labelOr(b.predicate.Label()), goals...)
	return Rule{label: s.Name(), predicate: b.predicate, goals: &s}
}

// Then finishes the rule with a nested chain, evaluated first-match.
func (b RuleBuilder) Then(rules ...Rule) Rule {
	chain := make([]Rule, len(rules))
	copy(chain, rules)
	return Rule{label: b.labelOr(b.predicate.Label()), predicate: b.predicate, chain: chain}
}

func (b RuleBuilder) labelOr(fallback string) string {
	if b.label != "" {
		return b.label
	}
	return fallback
}

// Label returns the rule's "it means" description.
func (r Rule) Label() string { return r.label }

// Predicate returns the guard.
func (r Rule) Predicate() Predicate { return r.predicate }

// Goals returns the direct outcome, if the rule has one.
func (r Rule) Goals() (goal.Set, bool) {
	if r.goals == nil {
		return goal.Set{}, false
	}
	return *r.goals, true
}

// Chain returns the nested rules, if the rule delegates.
func (r Rule) Chain() []Rule {
	out := make([]Rule, len(r.chain))
	copy(out, r.chain)
	return out
}

// IsChain reports whether the rule delegates to a nested chain.
func (r Rule) IsChain() bool { return r.chain != nil }

// Validate checks the rule and, recursively, its nested chain.
func (r Rule) Validate() error {
	if err := r.predicate.Validate(); err != nil {
		return &InvalidRuleError{Rule: r.label, Reason: err.Error()}
	}
	switch {
	case r.goals != nil && r.chain != nil:
		return &InvalidRuleError{Rule: r.label, Reason: "has both goals and a nested chain"}
	case r.goals == nil && r.chain == nil:
		return &InvalidRuleError{Rule: r.label, Reason: "has neither goals nor a nested chain"}
	case r.chain != nil && len(r.chain) == 0:
		return &InvalidRuleError{Rule: r.label, Reason: "nested chain is empty"}
	}
	var errs []error
	for _, nested := range r.chain {
		if err := nested.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GoalSets returns every goal set reachable from the rule.
func (r Rule) GoalSets() []goal.Set {
	if r.goals != nil {
		return []goal.Set{*r.goals}
	}
	var out []goal.Set
	for _, nested := range r.chain {
		out = append(out, nested.GoalSets()...)
	}
	return out
}

// Matches evaluates the guard without a timeout.
func (r Rule) Matches(ctx context.Context, pc *push.Context) (bool, error) {
	return r.predicate.Evaluate(ctx, pc)
}
