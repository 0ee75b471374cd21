package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/listener"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/machines"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ResolveOptions configure the resolve and dispose commands.
type ResolveOptions struct {
	Source   PushSource
	Disposal bool
	Format   string
}

// RunResolve plans goals for one push and prints them. Unresolved strategies
// are printed and returned as an error.
func RunResolve(ctx context.Context, cfg *config.Config, opts ResolveOptions, out io.Writer, logger *slog.Logger) error {
	store, closeStore, err := OpenFreezeStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := machines.New(machines.Options{Config: cfg, Freeze: store, Logger: logger})
	if err != nil {
		return err
	}

	pc, err := LoadPush(ctx, cfg, opts.Source)
	if err != nil {
		return err
	}

	var res *machine.Resolution
	var resolveErr error
	if opts.Disposal {
		res, resolveErr = m.ResolveDisposal(ctx, pc)
	} else {
		res, resolveErr = m.Resolve(ctx, pc)
	}

	if err := WriteResolution(out, res, opts.Format); err != nil {
		return err
	}
	return resolveErr
}

// WriteResolution prints a resolution in the given format.
func WriteResolution(out io.Writer, r *machine.Resolution, format string) error {
	switch format {
	case "", FormatText:
		writeText(out, r)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listener.NewMessage(r))
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeText(out io.Writer, r *machine.Resolution) {
	fmt.Fprintf(out, "Push:     %s (%s)\n", r.Push.ID(), r.Push.Branch())
	fmt.Fprintf(out, "Machine:  %s\n", r.Machine)
	fmt.Fprintf(out, "Goal set: %s\n", r.Goals.Name())
	if len(r.Matched) > 0 {
		fmt.Fprintf(out, "Matched:  %s\n", strings.Join(r.Matched, " > "))
	}

	if r.Goals.IsEmpty() {
		fmt.Fprintln(out, "\nNo goals.")
	} else {
		fmt.Fprintln(out, "\nGoals:")
		for _, g := range r.Goals.Goals() {
			fmt.Fprintf(out, "  - %-26s %s\n", g.Name, g.Description)
		}
	}

	if r.Build != nil {
		fmt.Fprintf(out, "\nBuild: %s (rule: %s)\n", r.Build.Plan.Builder, r.Build.Rule)
		for _, c := range r.Build.Plan.Commands {
			fmt.Fprintf(out, "  $ %s\n", strings.Join(c, " "))
		}
	}

	if len(r.Deployments) > 0 {
		fmt.Fprintln(out, "\nDeployments:")
		for _, d := range r.Deployments {
			fmt.Fprintf(out, "  - %s: %s %s (rule: %s)\n",
				strings.Join(d.Goals, ", "), d.Target.Deployer, d.Target.Location, d.Rule)
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, f := range r.Failures {
			fmt.Fprintf(out, "  - %s: %s: %v\n", f.Rule, f.Predicate, f.Err)
		}
	}

	if len(r.StrategyErrors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, err := range r.StrategyErrors {
			fmt.Fprintf(out, "  - %v\n", err)
		}
	}
}
