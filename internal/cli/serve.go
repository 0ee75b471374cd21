package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/adrianpk/sdm/internal/config"
	"github.com/adrianpk/sdm/internal/freeze"
	"github.com/adrianpk/sdm/internal/listener"
	"github.com/adrianpk/sdm/internal/machine"
	"github.com/adrianpk/sdm/internal/machines"
	"github.com/adrianpk/sdm/internal/push"
)

// pushRequest is a push description with an optional disposal flag.
type pushRequest struct {
	push.Description
	Dispose bool `json:"dispose,omitempty"`
}

// HandlePush resolves one JSON push description and returns the encoded
// goals message. Strategy errors are carried in the message, not returned.
func HandlePush(ctx context.Context, cfg *config.Config, m *machine.Machine, data []byte) ([]byte, error) {
	var req pushRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode push: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pc, err := newConfiguredPush(cfg, req.Description)
	if err != nil {
		return nil, err
	}

	var res *machine.Resolution
	if req.Dispose {
		res, _ = m.ResolveDisposal(ctx, pc)
	} else {
		res, _ = m.Resolve(ctx, pc)
	}
	return json.Marshal(listener.NewMessage(res))
}

// RunServe subscribes to pushes on NATS, publishes resolved goals and serves
// Prometheus metrics until ctx is done.
func RunServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("sdm"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	var store freeze.Store
	var fileStore *freeze.FileStore
	switch cfg.Freeze.Store {
	case config.FreezeNATS:
		if store, err = openKVStore(ctx, nc, cfg); err != nil {
			return err
		}
	case config.FreezeFile:
		fileStore = freeze.NewFileStore(cfg.Freeze.Path, logger)
		store = fileStore
	default:
		store = freeze.NewMemoryStore()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := machines.New(machines.Options{
		Config:  cfg,
		Freeze:  store,
		Logger:  logger,
		Metrics: machine.NewMetrics(reg),
		Listeners: []machine.GoalsSetListener{
			listener.NewLogging(logger, slog.LevelDebug),
			listener.NewNATS(nc, cfg.NATS.GoalsSubject, logger),
		},
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if fileStore != nil {
		g.Go(func() error {
			return fileStore.Watch(ctx, nil)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		logger.Info("Serving metrics", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	sub, err := nc.Subscribe(cfg.NATS.PushSubject, func(msg *nats.Msg) {
		reply, err := HandlePush(ctx, cfg, m, msg.Data)
		if err != nil {
			logger.Warn("Rejected push", "subject", msg.Subject, "error", err)
			reply, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		if msg.Reply != "" {
			if err := msg.Respond(reply); err != nil {
				logger.Warn("Failed to reply", "subject", msg.Subject, "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", cfg.NATS.PushSubject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	logger.Info("SDM ready",
		"machine", m.Name(),
		"push_subject", cfg.NATS.PushSubject,
		"goals_subject", cfg.NATS.GoalsSubject,
		"packs", m.ExtensionPacks())

	return g.Wait()
}
