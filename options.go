package settings

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	logger     *slog.Logger
	registry   *Registry
	evaluator  Evaluator
	evalLogger EvaluatorLogger
	emitter    *activity.Emitter
	onFailure  func(Failure)
	clock      func() time.Time
	actorID    string
}

func applyOptions(opts []Option) managerConfig {
	cfg := managerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = NewExprEvaluator(ExprWithFunctionRegistry(DefaultFunctions()))
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = SlogEvaluatorLogger(cfg.logger)
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

// WithLogger sets the logger used for failures and rule evaluations.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *managerConfig) {
		cfg.logger = logger
	}
}

// WithRegistry supplies module descriptors: field rules and defaults.
func WithRegistry(registry *Registry) Option {
	return func(cfg *managerConfig) {
		cfg.registry = registry
	}
}

// WithEvaluator replaces the default expr evaluator used for field rules.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *managerConfig) {
		cfg.evaluator = e
	}
}

// WithEvaluatorLogger records each rule evaluation.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *managerConfig) {
		if logger == nil {
			logger = noopEvaluatorLogger{}
		}
		cfg.evalLogger = logger
	}
}

// WithActivityEmitter emits settings.updated and settings.rejected events.
func WithActivityEmitter(emitter *activity.Emitter) Option {
	return func(cfg *managerConfig) {
		cfg.emitter = emitter
	}
}

// WithFailureHandler is called for every Set that did not take effect.
func WithFailureHandler(fn func(Failure)) Option {
	return func(cfg *managerConfig) {
		cfg.onFailure = fn
	}
}

// WithClock overrides the time source used for rules and activity events.
func WithClock(clock func() time.Time) Option {
	return func(cfg *managerConfig) {
		cfg.clock = clock
	}
}

// WithActor tags activity events with the acting player or process.
func WithActor(id string) Option {
	return func(cfg *managerConfig) {
		cfg.actorID = id
	}
}
