package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrianpk/sdm/internal/push"
)

// TestFunc is the body of a leaf predicate. It must not mutate anything and
// must be safe to call any number of times.
type TestFunc func(ctx context.Context, pc *push.Context) (bool, error)

// Kind is the shape of a predicate node.
type Kind int

const (
	KindLeaf Kind = iota
	KindAll
	KindAny
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	case KindNot:
		return "not"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Predicate is a boolean condition about a push. Leaves wrap a TestFunc;
// All, Any and Not compose other predicates.
type Predicate struct {
	kind     Kind
	label    string
	test     TestFunc
	operands []Predicate
}

// PredicateError reports a leaf check that could not complete.
type PredicateError struct {
	Predicate string
	Err       error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("predicate %q failed: %v", e.Predicate, e.Err)
}

func (e *PredicateError) Unwrap() error {
	return e.Err
}

// NewPredicate creates a leaf predicate.
func NewPredicate(label string, fn TestFunc) Predicate {
	return Predicate{kind: KindLeaf, label: label, test: fn}
}

// Always returns a leaf that is constantly v.
func Always(label string, v bool) Predicate {
	return NewPredicate(label, func(context.Context, *push.Context) (bool, error) {
		return v, nil
	})
}

// All is true when every operand is true. All() is true.
func All(ps ...Predicate) Predicate {
	return Predicate{kind: KindAll, label: joinLabels("all", ps), operands: clonePredicates(ps)}
}

// Any is true when at least one operand is true. Any() is false.
func Any(ps ...Predicate) Predicate {
	return Predicate{kind: KindAny, label: joinLabels("any", ps), operands: clonePredicates(ps)}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return Predicate{kind: KindNot, label: "not(" + p.label + ")", operands: []Predicate{p}}
}

func clonePredicates(ps []Predicate) []Predicate {
	out := make([]Predicate, len(ps))
	copy(out, ps)
	return out
}

func joinLabels(op string, ps []Predicate) string {
	labels := make([]string, len(ps))
	for i, p := range ps {
		labels[i] = p.label
	}
	return op + "(" + strings.Join(labels, ", ") + ")"
}

// Named returns a copy of p carrying a different label.
func (p Predicate) Named(label string) Predicate {
	p.label = label
	return p
}

// Kind returns the node shape.
func (p Predicate) Kind() Kind { return p.kind }

// Label returns the human-readable description.
func (p Predicate) Label() string { return p.label }

// Operands returns the children of a combinator.
func (p Predicate) Operands() []Predicate { return clonePredicates(p.operands) }

// Validate checks that every leaf has a test and every Not has one operand.
func (p Predicate) Validate() error {
	switch p.kind {
	case KindLeaf:
		if p.test == nil {
			return fmt.Errorf("predicate %q has no test", p.label)
		}
	case KindNot:
		if len(p.operands) != 1 {
			return fmt.Errorf("predicate %q: not takes exactly one operand", p.label)
		}
	case KindAll, KindAny:
	default:
		return fmt.Errorf("predicate %q: unknown kind %s", p.label, p.kind)
	}
	for _, op := range p.operands {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Verdict is the outcome of evaluating a predicate. Cause names the leaf (or
// empty combinator) that determined the value.
type Verdict struct {
	Matched bool
	Cause   string
}

// Evaluate runs p against pc without a per-leaf timeout.
func (p Predicate) Evaluate(ctx context.Context, pc *push.Context) (bool, error) {
	v, err := p.Explain(ctx, pc, 0)
	return v.Matched, err
}

// Explain evaluates p left to right, stopping as soon as the value is known.
// A failing leaf aborts evaluation with a *PredicateError; callers treat that
// as a non-match. A positive timeout bounds each leaf.
func (p Predicate) Explain(ctx context.Context, pc *push.Context, timeout time.Duration) (Verdict, error) {
	switch p.kind {
	case KindLeaf:
		return p.evalLeaf(ctx, pc, timeout)

	case KindAll:
		v := Verdict{Matched: true, Cause: p.label}
		for _, op := range p.operands {
			ov, err := op.Explain(ctx, pc, timeout)
			if err != nil {
				return Verdict{Cause: ov.Cause}, err
			}
			v.Cause = ov.Cause
			if !ov.Matched {
				return Verdict{Matched: false, Cause: ov.Cause}, nil
			}
		}
		return v, nil

	case KindAny:
		v := Verdict{Matched: false, Cause: p.label}
		for _, op := range p.operands {
			ov, err := op.Explain(ctx, pc, timeout)
			if err != nil {
				return Verdict{Cause: ov.Cause}, err
			}
			v.Cause = ov.Cause
			if ov.Matched {
				return Verdict{Matched: true, Cause: ov.Cause}, nil
			}
		}
		return v, nil

	case KindNot:
		if len(p.operands) != 1 {
			return Verdict{Cause: p.label}, &PredicateError{Predicate: p.label, Err: errors.New("not takes exactly one operand")}
		}
		ov, err := p.operands[0].Explain(ctx, pc, timeout)
		if err != nil {
			return Verdict{Cause: ov.Cause}, err
		}
		return Verdict{Matched: !ov.Matched, Cause: ov.Cause}, nil
	}
	return Verdict{Cause: p.label}, &PredicateError{Predicate: p.label, Err: fmt.Errorf("unknown kind %s", p.kind)}
}

func (p Predicate) evalLeaf(ctx context.Context, pc *push.Context, timeout time.Duration) (Verdict, error) {
	if p.test == nil {
		return Verdict{Cause: p.label}, &PredicateError{Predicate: p.label, Err: errors.New("no test")}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		ok  bool
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ok, err := p.test(ctx, pc)
		done <- outcome{ok: ok, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Verdict{Cause: p.label}, &PredicateError{Predicate: p.label, Err: out.err}
		}
		return Verdict{Matched: out.ok, Cause: p.label}, nil
	case <-ctx.Done():
		return Verdict{Cause: p.label}, &PredicateError{Predicate: p.label, Err: ctx.Err()}
	}
}
