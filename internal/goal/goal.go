// Package goal defines delivery goals and ordered goal sets.
//
// A Goal is an opaque unit of pipeline work. The resolution engine composes
// goals into sets but never looks inside them; only the execution layer does.
package goal

import (
	"fmt"
	"strings"
)

// Kind classifies what a goal does. Strategy selection keys off it.
type Kind string

const (
	KindReview   Kind = "review"
	KindReaction Kind = "reaction"
	KindBuild    Kind = "build"
	KindArtifact Kind = "artifact"
	KindDeploy   Kind = "deploy"
	KindEndpoint Kind = "endpoint"
	KindVerify   Kind = "verify"
	KindUndeploy Kind = "undeploy"
	KindDispose  Kind = "dispose"
	KindInfo     Kind = "info"
)

// Environment is the target a goal acts on, if any.
type Environment string

const (
	EnvNone       Environment = ""
	EnvLocal      Environment = "local"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Goal is a named unit of pipeline work. Name is its identity.
type Goal struct {
	Name        string
	Kind        Kind
	Environment Environment
	Description string
}

// String returns the goal name.
func (g Goal) String() string {
	return g.Name
}

// Set is an ordered, duplicate-free collection of goals.
// The zero value is an empty, unnamed set.
type Set struct {
	name  string
	goals []Goal
}

// NoGoals is the empty goal set. Resolving to it means no pipeline work.
var NoGoals = NewSet("No goals")

// NewSet creates a named goal set. Later duplicates of a goal name are dropped.
func NewSet(name string, goals ...Goal) Set {
	s := Set{name: name}
	for _, g := range goals {
		s = s.with(g)
	}
	return s
}

func (s Set) with(g Goal) Set {
	if s.Contains(g.Name) {
		return s
	}
	goals := make([]Goal, len(s.goals), len(s.goals)+1)
	copy(goals, s.goals)
	s.goals = append(goals, g)
	return s
}

// Name returns the set's display name.
func (s Set) Name() string {
	return s.name
}

// Goals returns a copy of the goals in order.
func (s Set) Goals() []Goal {
	out := make([]Goal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Names returns goal names in order.
func (s Set) Names() []string {
	out := make([]string, len(s.goals))
	for i, g := range s.goals {
		out[i] = g.Name
	}
	return out
}

// Len returns the number of goals.
func (s Set) Len() int {
	return len(s.goals)
}

// IsEmpty reports whether the set holds no goals.
func (s Set) IsEmpty() bool {
	return len(s.goals) == 0
}

// Contains reports whether a goal with the given name is present.
func (s Set) Contains(name string) bool {
	for _, g := range s.goals {
		if g.Name == name {
			return true
		}
	}
	return false
}

// Get returns the goal with the given name.
func (s Set) Get(name string) (Goal, bool) {
	for _, g := range s.goals {
		if g.Name == name {
			return g, true
		}
	}
	return Goal{}, false
}

// HasKind reports whether any goal in the set has kind k.
func (s Set) HasKind(k Kind) bool {
	for _, g := range s.goals {
		if g.Kind == k {
			return true
		}
	}
	return false
}

// Union returns s followed by the goals of other not already in s.
// The receiver's name is kept unless it is empty.
func (s Set) Union(other Set) Set {
	out := s
	if out.name == "" {
		out.name = other.name
	}
	for _, g := range other.goals {
		out = out.with(g)
	}
	return out
}

// Equal reports whether both sets hold the same goal names in the same order.
func (s Set) Equal(other Set) bool {
	if len(s.goals) != len(other.goals) {
		return false
	}
	for i := range s.goals {
		if s.goals[i].Name != other.goals[i].Name {
			return false
		}
	}
	return true
}

// String renders the set as "name [a, b, c]".
func (s Set) String() string {
	return fmt.Sprintf("%s [%s]", s.name, strings.Join(s.Names(), ", "))
}
