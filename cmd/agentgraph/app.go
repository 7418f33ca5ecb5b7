package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentgraph"
	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/checkpoint/natskv"
	"github.com/hupe1980/agentgraph/checkpoint/postgres"
	"github.com/hupe1980/agentgraph/checkpoint/sqlite"
	"github.com/hupe1980/agentgraph/config"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/metrics"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/model/anthropic"
	"github.com/hupe1980/agentgraph/model/openai"
	"github.com/hupe1980/agentgraph/resolver"
	"github.com/hupe1980/agentgraph/resolver/mcp"
	"github.com/hupe1980/agentgraph/retrieval"
	"github.com/hupe1980/agentgraph/runner"
	"github.com/hupe1980/agentgraph/tool"
	"github.com/hupe1980/agentgraph/toolcache"
)

// app holds every long-lived dependency of one command invocation.
type app struct {
	cfg     *config.Config
	logger  *logging.GraphLogger
	metrics *metrics.Metrics
	stops   *runner.StopRegistry
	graph   *agentgraph.AgentGraph

	closers []func() error
}

func newApp(ctx context.Context, flags *rootFlags, outputReview []string) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Log.Logging(nil)).WithComponent("agentgraph"),
		stops:  runner.NewStopRegistry(),
	}

	reg := prometheus.NewRegistry()
	a.metrics = metrics.New(reg)
	if flags.metricsAddr != "" {
		a.serveMetrics(flags.metricsAddr, reg)
	}

	cp, err := a.openCheckpointer(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	tools, err := a.newResolver()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.graph = agentgraph.New(newModels(cfg.Providers), tools, func(o *agentgraph.Options) {
		o.Checkpointer = cp
		o.MaxSteps = cfg.Runtime.MaxSteps
		o.OutputReview = outputReview
		o.TerminateOnReject = cfg.Runtime.TerminateOnReject
		o.ToolErrorsAsResults = cfg.Runtime.ToolErrorsAsResults
		o.ToolParallelism = cfg.Runtime.ToolParallelism
		o.EventBufferSize = cfg.Runtime.EventBufferSize
		o.Stops = a.stops
		o.Logger = a.logger
		o.Metrics = a.metrics
	})

	return a, nil
}

func newModels(p config.ProvidersConfig) *model.Registry {
	models := model.NewRegistry(p.Default)
	models.Register("openai", openai.Constructor(p.OpenAIAPIKey))
	models.Register("anthropic", anthropic.Constructor(p.AnthropicAPIKey))
	return models
}

func (a *app) openCheckpointer(ctx context.Context) (graph.Checkpointer, error) {
	c := a.cfg.Checkpoint

	switch c.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.DriverPostgres:
		s, err := postgres.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.DriverNATS:
		nc, err := nats.Connect(c.NatsURL, nats.Name("agentgraph"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })

		js, err := nc.JetStream()
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		return natskv.Open(js, c.Bucket)

	default:
		a.logger.Warn("checkpoint.memory", "hint", "runs cannot be resumed by a later process")
		return checkpoint.NewMemory(), nil
	}
}

func (a *app) newResolver() (*resolver.Resolver, error) {
	servers := make(mcp.StaticConnections, 0, len(a.cfg.MCP.Servers))
	for _, s := range a.cfg.MCP.Servers {
		servers = append(servers, mcp.Connection{
			Name:    s.Name,
			URL:     s.URL,
			Headers: s.Headers,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
		})
	}

	loader := mcp.NewLoader(servers, func(o *mcp.Options) {
		o.ClientVersion = Version
		o.Logger = a.logger.WithComponent("mcp")
	})
	a.closers = append(a.closers, loader.Close)

	cache := toolcache.New(func(o *toolcache.Options) {
		o.MaxCachedUsers = a.cfg.Cache.MaxCachedUsers
		o.MaxPersonalToolsPerUser = a.cfg.Cache.MaxPersonalToolsPerUser
		o.OnEvict = loader.Release
		o.Logger = a.logger.WithComponent("toolcache")
		o.Metrics = a.metrics
	})

	store, err := a.openRetriever()
	if err != nil {
		return nil, err
	}

	return resolver.New(builtinTools(), cache, func(o *resolver.Options) {
		o.Loader = loader
		o.Retriever = store
		o.RetrievalK = a.cfg.Retrieval.K
		o.HTTPClient = resty.New().SetTimeout(30 * time.Second)
		o.Logger = a.logger.WithComponent("resolver")
	}), nil
}

func (a *app) openRetriever() (tool.Retriever, error) {
	if a.cfg.Retrieval.Backend == "keyword" {
		return retrieval.NewKeywordStore(), nil
	}
	s, err := retrieval.New(func(o *retrieval.Options) {
		o.Path = a.cfg.Retrieval.Path
		o.Collection = a.cfg.Retrieval.Collection
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// builtinTools is the global tool registry of the command.
func builtinTools() *resolver.Registry {
	now := tool.NewFunctionTool("current_time", "Returns the current time in RFC 3339 format.", nil,
		func(context.Context, map[string]any) (any, error) {
			return time.Now().Format(time.RFC3339), nil
		})
	return resolver.NewRegistry(now)
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics.serve.failed", "addr", addr, "error", err.Error())
		}
	}()

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
