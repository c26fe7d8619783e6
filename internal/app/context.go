package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"growbook/internal/core"
	"growbook/internal/docstore"
	"growbook/internal/photos"
	"growbook/internal/photos/archive"
	"growbook/internal/principal"
)

// Option customises a Context.
type Option func(*contextOptions)

type contextOptions struct {
	logger     *slog.Logger
	store      docstore.Store
	archive    archive.Store
	analyzer   photos.Analyzer
	registerer prometheus.Registerer
	repoOpts   []core.Option
}

// WithLogger sets the logger; by default logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *contextOptions) { o.logger = l }
}

// WithStore uses an already open document store instead of opening one from
// config. The caller keeps ownership and closes it.
func WithStore(s docstore.Store) Option {
	return func(o *contextOptions) { o.store = s }
}

// WithPhotoArchive uses an already open photo archive.
func WithPhotoArchive(a archive.Store) Option {
	return func(o *contextOptions) { o.archive = a }
}

// WithAnalyzer overrides the analyzer built from analyzer.url.
func WithAnalyzer(a photos.Analyzer) Option {
	return func(o *contextOptions) { o.analyzer = a }
}

// WithPrometheusRegisterer sets where Prometheus collectors are registered
// when metrics=prometheus (prometheus.DefaultRegisterer otherwise).
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *contextOptions) { o.registerer = reg }
}

// WithRepositoryOptions appends repository options, e.g. a tracer.
func WithRepositoryOptions(opts ...core.Option) Option {
	return func(o *contextOptions) { o.repoOpts = append(o.repoOpts, opts...) }
}

// Context owns the process-wide handles: the document store, the photo
// archive and the observability sinks. It has no global state; construct one
// per process and pass it down.
type Context struct {
	cfg       Config
	logger    *slog.Logger
	store     docstore.Store
	ownsStore bool
	archive   archive.Store
	analyzer  photos.Analyzer
	metrics   core.MetricsRecorder
	repoOpts  []core.Option
	session   principal.Resolver
	trace     io.Closer
}

// NewServerContext builds a long-lived context. Repositories are obtained per
// request with the caller's resolver.
func NewServerContext(ctx context.Context, cfg Config, opts ...Option) (*Context, error) {
	return newContext(ctx, cfg, nil, opts)
}

// NewSessionContext builds a context bound to one principal, as used by the
// CLI. Passing a nil resolver to the repository accessors uses it.
func NewSessionContext(ctx context.Context, cfg Config, resolver principal.Resolver, opts ...Option) (*Context, error) {
	if resolver == nil {
		resolver = principal.Anonymous
	}
	return newContext(ctx, cfg, resolver, opts)
}

func newContext(ctx context.Context, cfg Config, session principal.Resolver, opts []Option) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := contextOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Context{cfg: cfg, logger: logger, session: session}

	metrics, err := newMetricsRecorder(cfg.Metrics, o.registerer)
	if err != nil {
		return nil, err
	}
	c.metrics = metrics

	c.store = o.store
	if c.store == nil {
		store, err := OpenDocumentStore(ctx, cfg)
		if err != nil {
			logger.Error("open document store failed", "driver", cfg.Storage.Driver, "error", err)
			return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
		}
		c.store, c.ownsStore = store, true
	}

	c.archive = o.archive
	if c.archive == nil {
		a, err := OpenPhotoArchive(ctx, cfg)
		if err != nil {
			_ = c.closeStore()
			return nil, fmt.Errorf("open %s photo archive: %w", cfg.Photo.Driver, err)
		}
		c.archive = a
	}

	c.analyzer = o.analyzer
	if c.analyzer == nil && cfg.Analyzer.URL != "" {
		c.analyzer = photos.NewHTTPAnalyzer(cfg.Analyzer.URL)
	}

	c.repoOpts = []core.Option{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}
	if cfg.Trace.File != "" {
		f, err := openTraceFile(cfg.Trace.File)
		if err != nil {
			_ = c.closeStore()
			return nil, err
		}
		c.trace = f
		c.repoOpts = append(c.repoOpts, core.WithTracer(core.NewJSONTracer(f)))
	}
	if metrics != nil {
		c.repoOpts = append(c.repoOpts, core.WithMetricsRecorder(metrics))
	}
	c.repoOpts = append(c.repoOpts, o.repoOpts...)

	logger.Debug("growbook context ready",
		"storage", string(c.store.Driver()),
		"photos", string(c.archive.Driver()),
		"metrics", cfg.Metrics,
		"trace", cfg.Trace.File != "")
	return c, nil
}

// openTraceFile opens path for appending, creating it and its directory.
func openTraceFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, nil
}

func newMetricsRecorder(kind string, reg prometheus.Registerer) (core.MetricsRecorder, error) {
	switch kind {
	case MetricsExpvar:
		return core.NewExpvarMetricsRecorder(""), nil
	case MetricsPrometheus:
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, nil
	}
}

// Config returns the configuration the context was built from.
func (c *Context) Config() Config { return c.cfg }

// Logger returns the context logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Store returns the document store handle.
func (c *Context) Store() docstore.Store { return c.store }

// PhotoArchive returns the photo archive handle.
func (c *Context) PhotoArchive() archive.Store { return c.archive }

// Metrics returns the configured recorder, nil when metrics are off.
func (c *Context) Metrics() core.MetricsRecorder { return c.metrics }

func (c *Context) resolver(r principal.Resolver) principal.Resolver {
	if r != nil {
		return r
	}
	return c.session
}

// Environments returns an environment repository for r, or for the session
// principal when r is nil.
func (c *Context) Environments(r principal.Resolver) *core.EnvironmentRepository {
	return core.NewEnvironmentRepository(c.store, c.resolver(r), c.repoOpts...)
}

// Plants returns a plant repository for r, or for the session principal when
// r is nil.
func (c *Context) Plants(r principal.Resolver) *core.PlantRepository {
	return core.NewPlantRepository(c.store, c.resolver(r), c.repoOpts...)
}

// Photos returns the photo service. Plant lookups go through a repository
// bound to r.
func (c *Context) Photos(r principal.Resolver) *photos.Service {
	opts := []photos.Option{photos.WithLogger(c.logger)}
	if c.analyzer != nil {
		opts = append(opts, photos.WithAnalyzer(c.analyzer))
	}
	if c.cfg.Photo.MaxBytes > 0 {
		opts = append(opts, photos.WithMaxBytes(c.cfg.Photo.MaxBytes))
	}
	return photos.NewService(c.archive, c.Plants(r), opts...)
}

// Ping checks the document store.
func (c *Context) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases the document store if the context opened it, and the trace
// file.
func (c *Context) Close() error {
	err := c.closeStore()
	if c.trace != nil {
		if cerr := c.trace.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close trace file: %w", cerr))
		}
		c.trace = nil
	}
	c.logger.Debug("growbook context closed", "error", err)
	return err
}

func (c *Context) closeStore() error {
	if !c.ownsStore || c.store == nil {
		return nil
	}
	c.ownsStore = false
	if err := c.store.Close(); err != nil && !errors.Is(err, docstore.ErrUnavailable) {
		return fmt.Errorf("close %s store: %w", c.store.Driver(), err)
	}
	return nil
}
