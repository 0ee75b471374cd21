package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adrianpk/sdm/internal/machine"
)

// Publisher is the part of *nats.Conn the listener needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// GoalMessage is one planned goal.
type GoalMessage struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Environment string `json:"environment,omitempty"`
}

// FailureMessage is one predicate that could not be evaluated.
type FailureMessage struct {
	Rule      string `json:"rule"`
	Predicate string `json:"predicate"`
	Error     string `json:"error"`
}

// Message is the JSON document published for each resolution.
type Message struct {
	ResolutionID string                    `json:"resolution_id"`
	Machine      string                    `json:"machine"`
	Event        string                    `json:"event"`
	PushID       string                    `json:"push_id"`
	Repo         string                    `json:"repo"`
	Branch       string                    `json:"branch"`
	SHA          string                    `json:"sha,omitempty"`
	GoalSet      string                    `json:"goal_set"`
	Goals        []GoalMessage             `json:"goals"`
	Matched      []string                  `json:"matched,omitempty"`
	Build        *machine.BuildSelection   `json:"build,omitempty"`
	Deployments  []machine.DeploySelection `json:"deployments,omitempty"`
	Failures     []FailureMessage          `json:"failures,omitempty"`
	Errors       []string                  `json:"errors,omitempty"`
	ResolvedAt   time.Time                 `json:"resolved_at"`
}

// NewMessage converts a resolution into its published form.
func NewMessage(r *machine.Resolution) Message {
	repo := r.Push.Repo()
	msg := Message{
		ResolutionID: r.ID,
		Machine:      r.Machine,
		Event:        string(r.Event),
		PushID:       r.Push.ID(),
		Repo:         repo.Slug(),
		Branch:       r.Push.Branch(),
		SHA:          r.Push.SHA(),
		GoalSet:      r.Goals.Name(),
		Goals:        make([]GoalMessage, 0, r.Goals.Len()),
		Matched:      r.Matched,
		Build:        r.Build,
		Deployments:  r.Deployments,
		ResolvedAt:   time.Now().UTC(),
	}
	for _, g := range r.Goals.Goals() {
		msg.Goals = append(msg.Goals, GoalMessage{
			Name:        g.Name,
			Kind:        string(g.Kind),
			Environment: string(g.Environment),
		})
	}
	for _, f := range r.Failures {
		msg.Failures = append(msg.Failures, FailureMessage{Rule: f.Rule, Predicate: f.Predicate, Error: f.Err.Error()})
	}
	for _, err := range r.StrategyErrors {
		msg.Errors = append(msg.Errors, err.Error())
	}
	return msg
}

// NATS publishes each resolution as JSON on <prefix>.<owner>.<repo>.
type NATS struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewNATS creates a publishing listener.
func NewNATS(pub Publisher, prefix string, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the subject a resolution for owner/name is published on.
func (n *NATS) Subject(owner, name string) string {
	return n.prefix + "." + token(owner) + "." + token(name)
}

// OnGoalsSet implements machine.GoalsSetListener.
func (n *NATS) OnGoalsSet(_ context.Context, r *machine.Resolution) error {
	data, err := json.Marshal(NewMessage(r))
	if err != nil {
		return fmt.Errorf("encode goals message: %w", err)
	}
	repo := r.Push.Repo()
	subject := n.Subject(repo.Owner, repo.Name)
	if err := n.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish goals to %s: %w", subject, err)
	}
	n.logger.Debug("Goals published", "subject", subject, "resolution_id", r.ID)
	return nil
}

// token makes s safe as a single NATS subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
