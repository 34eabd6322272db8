// Package plugin assembles the building blocks of a plugin into one
// component tree.
//
// A [Plugin] is the root component. It owns, in order, the logging
// service, the hook handler, the dependency checker and the notice
// handler, and the storage backend their stores live on. Everything is
// configured from a [config.PluginConfig]:
//
//	cfg := config.MustLoad[config.PluginConfig](config.New().WithEnvPrefix("PLUGIN"))
//	p, err := plugin.New(ctx, cfg,
//	    plugin.WithChecks(dependencies.SettingCheck("permalinks", host.Permalinks, true).AsSoft()),
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	if err := p.Boot(ctx); err != nil {
//	    return err
//	}
//
// Initialize cascades to every child and then performs setup. Run, reset
// and output also cascade, so one call on the plugin drives the whole
// tree.
package plugin

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/auth"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/dependencies"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/hooks"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/logging"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/notices"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/storage"
)

// Storage scopes used by the plugin's own stores.
const (
	DependenciesScope = "dependencies"
	NoticesScope      = "notices"
)

// HostVersionCheck is the name of the check added when
// [config.PluginConfig.MinHostVersion] is set.
const HostVersionCheck = "host_version"

// VersionShortcode renders "<name> <version>", or only the version with
// the attribute format="short".
const VersionShortcode = "plugin_version"

// Option configures a [Plugin].
type Option func(*options)

type options struct {
	factory    *logging.Factory
	writer     io.Writer
	registry   *hooks.Registry
	authorizer *auth.Authorizer
	checks     []dependencies.Check
	publisher  notices.Publisher
	storage    []storage.Option
}

// WithLogFactory sets the factory the logger is resolved from. The
// default is [logging.NewFactory].
func WithLogFactory(f *logging.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogWriter sets where log records go. The default is os.Stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithRegistry sets the hook registry, typically one shared with the
// host. The default is a new registry.
func WithRegistry(r *hooks.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithAuthorizer sets the authorizer used for notice capabilities and for
// deciding who may dismiss soft checks. The default grants
// [auth.DefaultRoleCapabilities].
func WithAuthorizer(a *auth.Authorizer) Option {
	return func(o *options) { o.authorizer = a }
}

// WithChecks adds dependency checks.
func WithChecks(checks ...dependencies.Check) Option {
	return func(o *options) { o.checks = append(o.checks, checks...) }
}

// WithPublisher sets where notices go on output.
func WithPublisher(p notices.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithStorageOptions passes options to every store, such as
// [storage.WithTracerProvider].
func WithStorageOptions(opts ...storage.Option) Option {
	return func(o *options) { o.storage = append(o.storage, opts...) }
}

// Plugin is the root component of a plugin.
type Plugin struct {
	*lifecycle.Component

	cfg        config.PluginConfig
	backend    *storage.Backend
	authorizer *auth.Authorizer
	logging    *logging.Service
	hooks      *hooks.Handler
	checker    *dependencies.Checker
	notices    *notices.Handler
}

// New validates cfg, connects the storage backend and builds the
// component tree. Nothing is initialized yet; call [Plugin.Boot].
// The caller must call [Plugin.Close] when New succeeds.
func New(ctx context.Context, cfg config.PluginConfig, opts ...Option) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = hooks.NewRegistry()
	}
	if o.authorizer == nil {
		o.authorizer = auth.NewAuthorizer(auth.DefaultRoleCapabilities())
	}

	backend, err := storage.Connect(ctx, cfg.Storage, o.storage...)
	if err != nil {
		return nil, err
	}
	p, err := build(cfg, backend, o)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return p, nil
}

func build(cfg config.PluginConfig, backend *storage.Backend, o options) (*Plugin, error) {
	p := &Plugin{cfg: cfg, backend: backend, authorizer: o.authorizer}

	var err error
	if p.logging, err = logging.NewService(o.factory, cfg.Logging, o.writer); err != nil {
		return nil, err
	}
	logger := slog.New(p.logging.Handler()).With("plugin", cfg.Name)

	if p.hooks, err = hooks.NewHandler(o.registry, logger); err != nil {
		return nil, err
	}

	checks := o.checks
	if cfg.MinHostVersion != "" {
		checks = append([]dependencies.Check{
			dependencies.VersionCheck(HostVersionCheck, cfg.HostVersion, cfg.MinHostVersion),
		}, checks...)
	}
	dismissals, err := storage.New[dependencies.Dismissal](backend, DependenciesScope)
	if err != nil {
		return nil, err
	}
	if p.checker, err = dependencies.NewChecker(dismissals,
		dependencies.WithChecks(checks...),
		dependencies.WithPrivileged(o.authorizer.Privileged(auth.CapManageOptions)),
		dependencies.WithLogger(logger),
	); err != nil {
		return nil, err
	}

	dismissed, err := storage.New[[]string](backend, NoticesScope)
	if err != nil {
		return nil, err
	}
	noticeOpts := []notices.Option{notices.WithAuthorizer(o.authorizer), notices.WithLogger(logger)}
	if o.publisher != nil {
		noticeOpts = append(noticeOpts, notices.WithPublisher(o.publisher))
	}
	if p.notices, err = notices.NewHandler(o.registry, dismissed, noticeOpts...); err != nil {
		return nil, err
	}

	base, err := lifecycle.NewComponentBuilder(cfg.Name).
		WithLogger(logger).
		WithSetupOnInitialize().
		WithOnSetup(p.setup).
		WithPropagation(lifecycle.ActionRun, lifecycle.ActionReset, lifecycle.ActionOutput).
		Build()
	if err != nil {
		return nil, err
	}
	p.Component = base
	for _, child := range []any{p.logging, p.hooks, p.checker, p.notices} {
		if err := p.AddChild(child); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// setup queues the plugin's own hooks. They reach the registry when the
// hook handler runs.
func (p *Plugin) setup(context.Context) error {
	return p.hooks.AddShortcode(hooks.Shortcode{
		Tag:       VersionShortcode,
		Component: p.cfg.Name,
		Callback:  "version",
		Fn:        p.versionShortcode,
	})
}

func (p *Plugin) versionShortcode(_ context.Context, attrs map[string]string, _ string) string {
	if strings.EqualFold(attrs["format"], "short") {
		return p.cfg.Version
	}
	return p.cfg.Name + " " + p.cfg.Version
}

// Boot initializes the tree, which also performs setup, and then runs it.
func (p *Plugin) Boot(ctx context.Context) error {
	if err := p.Initialize(ctx); err != nil {
		return err
	}
	return p.Run(ctx)
}

// Close releases the storage backend. It is safe to call more than once.
func (p *Plugin) Close() error {
	if err := p.backend.Close(); err != nil {
		return sserr.Wrapf(err, sserr.CodeUnavailableDependency,
			"plugin: closing %s storage", p.backend.Driver())
	}
	return nil
}

// Config returns the configuration the plugin was built from.
func (p *Plugin) Config() config.PluginConfig { return p.cfg }

// Logger returns the plugin's logger. It discards records until the
// plugin is initialized.
func (p *Plugin) Logger() *slog.Logger { return p.logging.Logger() }

// Log writes msg through the logging service, redacting its sensitive
// parts when the configuration asks for it.
func (p *Plugin) Log(ctx context.Context, level slog.Level, msg *logging.MessageBuilder) {
	p.logging.Log(ctx, level, msg)
}

// Hooks returns the hook handler.
func (p *Plugin) Hooks() *hooks.Handler { return p.hooks }

// Registry returns the hook registry.
func (p *Plugin) Registry() *hooks.Registry { return p.hooks.Registry() }

// Checker returns the dependency checker.
func (p *Plugin) Checker() *dependencies.Checker { return p.checker }

// Notices returns the notice handler.
func (p *Plugin) Notices() *notices.Handler { return p.notices }

// Authorizer returns the authorizer.
func (p *Plugin) Authorizer() *auth.Authorizer { return p.authorizer }

// Backend returns the storage backend.
func (p *Plugin) Backend() *storage.Backend { return p.backend }
