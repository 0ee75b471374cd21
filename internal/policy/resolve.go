package policy

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adrianpk/sdm/internal/goal"
	"github.com/adrianpk/sdm/internal/push"
)

// PredicateFailure records a rule whose guard could not be evaluated.
type PredicateFailure struct {
	Rule      string
	Predicate string
	Err       error
}

// Options tune resolution.
type Options struct {
	// PredicateTimeout bounds each leaf check. Zero means no bound.
	PredicateTimeout time.Duration
	// Logger receives failure warnings and match diagnostics.
	Logger *slog.Logger
	// OnFailure, if set, observes every predicate failure. It may be called
	// from several goroutines at once.
	OnFailure func(PredicateFailure)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Result is the outcome of resolving a rule set against one push.
type Result struct {
	Goals goal.Set
	// Matched lists the labels of the rules that contributed, outermost first.
	Matched  []string
	Failures []PredicateFailure
}

func (r *Result) merge(other Result) {
	r.Goals = r.Goals.Union(other.Goals)
	r.Matched = append(r.Matched, other.Matched...)
	r.Failures = append(r.Failures, other.Failures...)
}

// ResolveChain walks rules in order and takes the outcome of the first rule
// whose guard holds. A nested chain is resolved in place and its result is
// final even when empty. No match yields goal.NoGoals.
func ResolveChain(ctx context.Context, rules []Rule, pc *push.Context, opts Options) Result {
	res := Result{Goals: goal.NoGoals}
	for _, rule := range rules {
		matched, failure := evaluateRule(ctx, rule, pc, opts)
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			continue
		}
		if !matched {
			continue
		}

		opts.logger().Debug("Rule matched",
			"push_id", pc.ID(),
			"rule", rule.Label())

		if s, ok := rule.Goals(); ok {
			res.Goals = s
			res.Matched = append(res.Matched, rule.Label())
			return res
		}

		nested := ResolveChain(ctx, rule.chain, pc, opts)
		res.Goals = nested.Goals
		res.Matched = append(append(res.Matched, rule.Label()), nested.Matched...)
		res.Failures = append(res.Failures, nested.Failures...)
		return res
	}
	return res
}

// ResolveContributions evaluates every rule and unions the outcomes of those
// that match, in registration order. Rules are independent, so their guards
// are evaluated concurrently. No match yields goal.NoGoals.
func ResolveContributions(ctx context.Context, rules []Rule, pc *push.Context, opts Options) Result {
	type contribution struct {
		matched bool
		failure *PredicateFailure
	}
	outcomes := make([]contribution, len(rules))

	var g errgroup.Group
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			matched, failure := evaluateRule(ctx, rule, pc, opts)
			outcomes[i] = contribution{matched: matched, failure: failure}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Goals: goal.NoGoals}
	for i, rule := range rules {
		out := outcomes[i]
		if out.failure != nil {
			res.Failures = append(res.Failures, *out.failure)
			continue
		}
		if !out.matched {
			continue
		}
		if s, ok := rule.Goals(); ok {
			res.merge(Result{Goals: s, Matched: []string{rule.Label()}})
			continue
		}
		nested := ResolveChain(ctx, rule.chain, pc, opts)
		nested.Matched = append([]string{rule.Label()}, nested.Matched...)
		res.merge(nested)
	}
	if len(res.Matched) > 0 {
		res.Goals = goal.NewSet("Contributed goals", res.Goals.Goals()...)
	}
	return res
}

func evaluateRule(ctx context.Context, rule Rule, pc *push.Context, opts Options) (bool, *PredicateFailure) {
	v, err := rule.predicate.Explain(ctx, pc, opts.PredicateTimeout)
	if err == nil {
		return v.Matched, nil
	}

	failure := PredicateFailure{Rule: rule.Label(), Predicate: v.Cause, Err: err}
	opts.logger().Warn("Predicate evaluation failed, treating rule as not matching",
		"push_id", pc.ID(),
		"rule", rule.Label(),
		"predicate", v.Cause,
		"error", err)
	if opts.OnFailure != nil {
		opts.OnFailure(failure)
	}
	return false, &failure
}
