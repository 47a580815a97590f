package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/agents"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/validator"
	"github.com/aretw0/concierge/pkg/adapters/browser"
	"github.com/aretw0/concierge/pkg/adapters/file"
	"github.com/aretw0/concierge/pkg/adapters/gcal"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	llm "github.com/aretw0/concierge/pkg/adapters/openai"
	"github.com/aretw0/concierge/pkg/adapters/opensearch"
	"github.com/aretw0/concierge/pkg/adapters/profile"
	"github.com/aretw0/concierge/pkg/adapters/redis"
	"github.com/aretw0/concierge/pkg/adapters/sqlite"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/registry"
)

// ProfileEnvPrefix marks environment variables that feed the user profile.
const ProfileEnvPrefix = "CONCIERGE_PROFILE_"

// Stack is a fully wired concierge and the resources it owns.
type Stack struct {
	Engine  *concierge.Engine
	Store   ports.StateStore
	Journal *observability.Journal
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases the store connections and the browser.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// buildOptions overrides parts of the stack, mostly for tests.
type buildOptions struct {
	logWriter  io.Writer
	registerer prometheus.Registerer
	decider    ports.Decider
	services   *agents.Services
	profile    ports.ProfileSource
	hooks      []domain.LifecycleHooks
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithLogWriter redirects the application log (stderr by default).
func WithLogWriter(w io.Writer) BuildOption {
	return func(o *buildOptions) { o.logWriter = w }
}

// WithRegisterer enables Prometheus metrics on the given registry.
func WithRegisterer(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) { o.registerer = reg }
}

// WithDecider replaces the chat model decider.
func WithDecider(d ports.Decider) BuildOption {
	return func(o *buildOptions) { o.decider = d }
}

// WithServices replaces the effect services.
func WithServices(s agents.Services) BuildOption {
	return func(o *buildOptions) { o.services = &s }
}

// WithProfile replaces the configured profile sources.
func WithProfile(p ports.ProfileSource) BuildOption {
	return func(o *buildOptions) { o.profile = p }
}

// WithHooks installs extra lifecycle hooks (e.g. the HTTP stream manager).
func WithHooks(hooks domain.LifecycleHooks) BuildOption {
	return func(o *buildOptions) { o.hooks = append(o.hooks, hooks) }
}

// Build wires the concierge from configuration.
func Build(cfg config.Config, opts ...BuildOption) (*Stack, error) {
	o := buildOptions{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.NewWithWriter(o.logWriter, logging.ParseLevel(cfg.LogLevel), "text")
	stack := &Stack{Logger: logger}

	store, locker, err := stack.openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	store, err = secureStore(store, cfg.Security)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	stack.Store = store

	profileSrc := o.profile
	if profileSrc == nil {
		profileSrc = profileSource(cfg.Profile)
	}

	decider := o.decider
	if decider == nil {
		decider = llm.New(
			llm.Config{APIKey: cfg.Model.APIKey, Model: cfg.Model.Name, BaseURL: cfg.Model.BaseURL},
			llm.WithTemperature(cfg.Model.Temperature),
			llm.WithLogger(logger),
		)
	}

	services := o.services
	if services == nil {
		s := stack.services(cfg, profileSrc, logger)
		services = &s
	}

	graph, err := agents.Graph()
	if err == nil {
		err = validator.ValidateGraph(graph)
	}
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	reg := registry.NewRegistry()
	agents.Register(reg, *services)
	if missing := agents.Unbound(graph, reg); len(missing) > 0 {
		logger.Warn("capabilities without an effect", "capabilities", missing)
	}

	stack.Journal = observability.NewJournal(observability.DefaultJournalSize, 0)
	engineOpts := []concierge.Option{
		concierge.WithLogger(logger),
		concierge.WithProfileSource(profileSrc),
		concierge.WithMaxSteps(cfg.MaxSteps),
		concierge.WithGates(cfg.RequireApproval),
		concierge.WithLifecycleHooks(observability.AuditHooks(logger)),
		concierge.WithLifecycleHooks(stack.Journal.Hooks()),
	}
	if o.registerer != nil {
		stack.Metrics, err = observability.NewMetrics(o.registerer)
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, concierge.WithLifecycleHooks(stack.Metrics.Hooks()))
	}
	for _, h := range o.hooks {
		engineOpts = append(engineOpts, concierge.WithLifecycleHooks(h))
	}
	if locker != nil {
		engineOpts = append(engineOpts, concierge.WithLocker(locker, cfg.Store.LockTTL))
	}

	stack.Engine, err = concierge.New(graph, decider, reg, store, engineOpts...)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("error initializing concierge: %w", err)
	}
	return stack, nil
}

func (s *Stack) openStore(cfg config.StoreConfig) (ports.StateStore, ports.RunLocker, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), nil, nil
	case "file":
		return file.New(cfg.Path), nil, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil, nil
	case "redis":
		opts, err := backend.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid store.redis_url: %w", err)
		}
		client := backend.NewClient(opts)
		s.closers = append(s.closers, client.Close)
		return redis.NewFromClient(client, redis.WithTTL(cfg.TTL)), redis.NewLocker(client, "concierge:"), nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// secureStore wraps the store with PII masking, then encryption.
func secureStore(store ports.StateStore, cfg config.SecurityConfig) (ports.StateStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

// profileSource layers the inline values, the profile file and the environment.
func profileSource(cfg config.ProfileConfig) ports.ProfileSource {
	sources := profile.Merged{profile.Static(cfg.Values)}
	if cfg.File != "" {
		sources = append(sources, profile.NewFile(cfg.File))
	}
	return append(sources, profile.Env{Prefix: ProfileEnvPrefix})
}

func (s *Stack) services(cfg config.Config, profileSrc ports.ProfileSource, logger *slog.Logger) agents.Services {
	searchCfg := opensearch.Config{
		Endpoint: cfg.Search.Endpoint,
		Index:    cfg.Search.Index,
		Region:   cfg.Search.Region,
		Username: cfg.Search.Username,
		Password: cfg.Search.Password,
	}
	if cfg.Search.AccessKeyID != "" {
		searchCfg.Credentials = opensearch.StaticCredentials(cfg.Search.AccessKeyID, cfg.Search.SecretAccessKey)
	}
	events := opensearch.New(searchCfg, opensearch.WithLogger(logger))

	cal := gcal.New(gcal.Config{
		CalendarID:      cfg.Calendar.ID,
		CredentialsFile: cfg.Calendar.CredentialsFile,
	}, gcal.WithLogger(logger))

	rodCfg := browser.DefaultRodConfig()
	rodCfg.ControlURL = cfg.Browser.ControlURL
	rodCfg.Headless = cfg.Browser.Headless
	rod := browser.NewRodBrowser(rodCfg)
	s.closers = append(s.closers, rod.Close)

	plannerModel := cfg.Browser.PlannerModel
	if plannerModel == "" {
		plannerModel = cfg.Model.Name
	}
	planner := browser.NewLLMPlanner(
		llm.NewClient(llm.Config{APIKey: cfg.Model.APIKey, Model: plannerModel, BaseURL: cfg.Model.BaseURL}),
		plannerModel,
	)
	registrar := browser.NewRegistrar(rod, planner, profileSrc,
		browser.WithMaxTurns(cfg.Browser.MaxTurns),
		browser.WithLogger(logger),
	)

	return agents.Services{Events: events, Calendar: cal, Registrar: registrar}
}
