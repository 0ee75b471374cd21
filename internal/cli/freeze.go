package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/freeze"
)

// OpenFreezeStore opens the configured freeze store. The returned close
// function is never nil.
func OpenFreezeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (freeze.Store, func(), error) {
	switch cfg.Freeze.Store {
	case config.FreezeMemory:
		return freeze.NewMemoryStore(), func() {}, nil
	case config.FreezeFile:
		return freeze.NewFileStore(cfg.Freeze.Path, logger), func() {}, nil
	case config.FreezeNATS:
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("sdm"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		store, err := openKVStore(ctx, nc, cfg)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, nc.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown freeze store %q", cfg.Freeze.Store)
}

func openKVStore(ctx context.Context, nc *nats.Conn, cfg *config.Config) (*freeze.KVStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return freeze.OpenKVStore(ctx, js, cfg.Freeze.Bucket)
}

// FreezeAction is a freeze subcommand.
type FreezeAction string

const (
	FreezeOn     FreezeAction = "on"
	FreezeOff    FreezeAction = "off"
	FreezeStatus FreezeAction = "status"
)

// RunFreeze sets or reports the deployment freeze.
func RunFreeze(ctx context.Context, store freeze.Store, action FreezeAction, reason string, out io.Writer, logger *slog.Logger) error {
	by := currentUser()
	switch action {
	case FreezeOn:
		if err := freeze.Freeze(ctx, store, by, reason, logger); err != nil {
			return err
		}
	case FreezeOff:
		if err := freeze.Thaw(ctx, store, by, logger); err != nil {
			return err
		}
	case FreezeStatus:
	default:
		return fmt.Errorf("unknown freeze action %q", action)
	}

	s, err := store.State(ctx)
	if err != nil {
		return err
	}
	printFreezeState(out, s)
	return nil
}

func printFreezeState(out io.Writer, s freeze.State) {
	if !s.Frozen {
		fmt.Fprintln(out, "Deployments are not frozen")
		return
	}
	fmt.Fprint(out, "Deployments are frozen")
	if s.Reason != "" {
		fmt.Fprintf(out, ": %s", s.Reason)
	}
	if s.By != "" {
		fmt.Fprintf(out, " (by %s", s.By)
		if !s.At.IsZero() {
			fmt.Fprintf(out, " at %s", s.At.Format("2006-01-02 15:04 MST"))
		}
		fmt.Fprint(out, ")")
	}
	fmt.Fprintln(out)
}

func currentUser() string {
	if v := os.Getenv("SDM_USER"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
