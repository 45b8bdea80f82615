// Package container wires core bujji services using go.uber.org/dig.
package container

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/dig"

	"github.com/MithilSaiReddy/bujji/internal/agent"
	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/cron"
	"github.com/MithilSaiReddy/bujji/internal/heartbeat"
	"github.com/MithilSaiReddy/bujji/internal/logger"
	"github.com/MithilSaiReddy/bujji/internal/memory"
	"github.com/MithilSaiReddy/bujji/internal/providers"
	"github.com/MithilSaiReddy/bujji/internal/schema"
	"github.com/MithilSaiReddy/bujji/internal/session"
	"github.com/MithilSaiReddy/bujji/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg        *config.Config
	log        *logger.Logger
	provider   *providers.Client
	msgBus     *bus.MessageBus
	registry   *tools.Registry
	sessions   *session.Manager
	dispatcher *bus.Dispatcher
	cronSvc    *cron.Service
	heartbeat  *heartbeat.Service
	watcher    *tools.Watcher
	userMemory *memory.Document
}

func (c *Container) Config() *config.Config        { return c.cfg }
func (c *Container) Logger() *logger.Logger        { return c.log }
func (c *Container) Provider() *providers.Client   { return c.provider }
func (c *Container) MessageBus() *bus.MessageBus   { return c.msgBus }
func (c *Container) Registry() *tools.Registry     { return c.registry }
func (c *Container) Sessions() *session.Manager    { return c.sessions }
func (c *Container) Dispatcher() *bus.Dispatcher   { return c.dispatcher }
func (c *Container) CronService() *cron.Service    { return c.cronSvc }
func (c *Container) Heartbeat() *heartbeat.Service { return c.heartbeat }
func (c *Container) Watcher() *tools.Watcher       { return c.watcher }
func (c *Container) UserMemory() *memory.Document  { return c.userMemory }
func (c *Container) Close()                        { c.sessions.Close() }

// backgroundRunner breaks the cycle cron tool → registry → sessions → cron:
// the cron tool needs the job store while the registry is built, the
// scheduler needs the sessions only once it runs.
type backgroundRunner struct{ sessions *session.Manager }

func (r *backgroundRunner) RunBackground(ctx context.Context, id, text string) (string, error) {
	if r.sessions == nil {
		return "", fmt.Errorf("sessions not ready")
	}
	return r.sessions.RunBackground(ctx, id, text)
}

// New builds and wires all core services from cfg.
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		func() *logger.Logger { return log },
		newProvider,
		newMessageBus,
		newUserMemory,
		newCommandGuard,
		newBackgroundRunner,
		newCronService,
		newManifestSource,
		newToolRegistry,
		newAssembler,
		newSessionStore,
		newSessionManager,
		newDispatcher,
		newHeartbeat,
		newWatcher,
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider *providers.Client,
		msgBus *bus.MessageBus,
		registry *tools.Registry,
		sessions *session.Manager,
		dispatcher *bus.Dispatcher,
		cronSvc *cron.Service,
		hb *heartbeat.Service,
		watcher *tools.Watcher,
		userMemory *memory.Document,
	) {
		result = &Container{
			cfg:        cfg,
			log:        log,
			provider:   provider,
			msgBus:     msgBus,
			registry:   registry,
			sessions:   sessions,
			dispatcher: dispatcher,
			cronSvc:    cronSvc,
			heartbeat:  hb,
			watcher:    watcher,
			userMemory: userMemory,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

// NewProvider resolves the configured LLM backend.
func NewProvider(cfg *config.Config, log *logger.Logger) (*providers.Client, error) {
	return newProvider(cfg, log)
}

func newProvider(cfg *config.Config, log *logger.Logger) (*providers.Client, error) {
	active, ok := cfg.MatchProvider()
	if !ok {
		return nil, fmt.Errorf("no LLM provider with an API key configured, edit %s", config.ConfigPath())
	}
	return providers.New(providers.Params{
		APIKey:       active.APIKey,
		APIBase:      active.APIBase,
		ExtraHeaders: active.ExtraHeaders,
		DefaultModel: active.Model,
		ProviderName: active.Name,
		Logger:       log.Component("provider"),
	}), nil
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newUserMemory(cfg *config.Config) (*memory.Document, error) {
	ws := cfg.WorkspacePath()
	if err := memory.EnsureWorkspace(ws); err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}
	return memory.UserDocument(ws), nil
}

func newCommandGuard(cfg *config.Config) (*tools.CommandGuard, error) {
	return tools.NewCommandGuard(cfg.Tools.Exec.ExtraDeny, cfg.Agents.Defaults.RestrictToWorkspace)
}

func newBackgroundRunner() *backgroundRunner { return &backgroundRunner{} }

func newCronService(cfg *config.Config, runner *backgroundRunner, log *logger.Logger) *cron.Service {
	return cron.NewService(
		cfg.CronPath(),
		runner,
		cfg.Gateway.Cron.Session,
		time.Duration(cfg.Gateway.Cron.TickSeconds)*time.Second,
		log.Component("cron"),
	)
}

func newManifestSource(cfg *config.Config, guard *tools.CommandGuard) *tools.ManifestSource {
	return tools.NewManifestSource(
		cfg.ToolsDir(),
		cfg.WorkspacePath(),
		guard,
		time.Duration(cfg.Tools.Exec.Timeout)*time.Second,
	)
}

func newToolRegistry(
	cfg *config.Config,
	guard *tools.CommandGuard,
	userMemory *memory.Document,
	cronSvc *cron.Service,
	manifests *tools.ManifestSource,
	log *logger.Logger,
) (*tools.Registry, error) {
	registry := tools.NewRegistry(
		log.Component("tools"),
		tools.WithMaxOutput(cfg.Tools.MaxOutputChars),
		tools.WithCallTimeout(time.Duration(cfg.Tools.Exec.Timeout)*time.Second),
		tools.WithSource(manifests),
	)
	err := registry.RegisterAll(tools.Builtins(tools.BuiltinDeps{
		Workspace:           cfg.WorkspacePath(),
		RestrictToWorkspace: cfg.Agents.Defaults.RestrictToWorkspace,
		Tools:               cfg.Tools,
		Memory:              userMemory,
		Guard:               guard,
		Cron:                cronSvc,
	})...)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func newAssembler(cfg *config.Config, registry *tools.Registry, log *logger.Logger) *agent.Assembler {
	skills := agent.NewSkillCache(cfg.SkillsDir(), log.Component("skills"))
	return agent.NewAssembler(cfg.WorkspacePath(), skills, registry)
}

func newSessionStore(cfg *config.Config, log *logger.Logger) (*session.Store, error) {
	return session.NewStore(cfg.SessionsDir(), log.Component("sessions"))
}

func newSessionManager(
	cfg *config.Config,
	store *session.Store,
	provider *providers.Client,
	registry *tools.Registry,
	assembler *agent.Assembler,
	runner *backgroundRunner,
	log *logger.Logger,
) *session.Manager {
	defaults := cfg.Agents.Defaults
	deps := agent.Deps{
		Provider:  provider,
		Registry:  registry,
		Assembler: assembler,
		Settings: schema.NewAgentSettings(
			provider.DefaultModel(),
			defaults.MaxToolIter,
			defaults.Temperature,
			defaults.MaxTokens,
		),
		Workspace: cfg.WorkspacePath(),
		Config:    cfg,
		Log:       log.Component("agent"),
	}
	factory := func(id string, history schema.Messages) *agent.Loop {
		return agent.NewLoop(id, deps, history)
	}
	m := session.NewManager(store, factory, defaults.MaxHistory, log.Component("sessions"))
	runner.sessions = m
	return m
}

func newDispatcher(b *bus.MessageBus, sessions *session.Manager, log *logger.Logger) *bus.Dispatcher {
	return bus.NewDispatcher(b, sessions, log.Component("dispatcher"))
}

func newHeartbeat(cfg *config.Config, sessions *session.Manager, log *logger.Logger) *heartbeat.Service {
	hb := cfg.Gateway.Heartbeat
	return heartbeat.NewService(
		cfg.WorkspacePath(),
		sessions,
		time.Duration(hb.IntervalMinutes)*time.Minute,
		hb.Session,
		log.Component("heartbeat"),
	)
}

func newWatcher(cfg *config.Config, registry *tools.Registry, log *logger.Logger) *tools.Watcher {
	return tools.NewWatcher(registry, cfg.ToolsDir(), log.Component("watcher"))
}

// NewRegistry builds the tool registry alone, for commands that list or
// inspect tools without talking to an LLM.
func NewRegistry(cfg *config.Config, log *logger.Logger) (*tools.Registry, error) {
	userMemory, err := newUserMemory(cfg)
	if err != nil {
		return nil, err
	}
	guard, err := newCommandGuard(cfg)
	if err != nil {
		return nil, err
	}
	cronSvc := newCronService(cfg, newBackgroundRunner(), log)
	return newToolRegistry(cfg, guard, userMemory, cronSvc, newManifestSource(cfg, guard), log)
}
