package settings

import (
	"errors"
	"fmt"
	"time"
)

// RuleContext carries the inputs available to a field rule.
type RuleContext struct {
	Module   string
	Key      string
	Value    any
	Settings map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Settings == nil {
		ctx.Settings = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx RuleContext) field() string {
	switch {
	case ctx.Module == "" && ctx.Key == "":
		return "unknown"
	case ctx.Module == "":
		return ctx.Key
	default:
		return ctx.Module + "." + ctx.Key
	}
}

// bindings lists the variables every engine exposes to a rule.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"value":    ctx.Value,
		"key":      ctx.Key,
		"module":   ctx.Module,
		"settings": ctx.Settings,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}

// Evaluator executes rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	predicate bool
}

// Predicate asks the engine to reject, at compile time, rules whose result
// type is known not to be a bool. Engines without static types ignore it.
func Predicate() CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.predicate = true
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	var cfg compileConfig
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// CheckRule evaluates rule and requires a boolean true result. A non-boolean
// result is an error.
func CheckRule(evaluator Evaluator, ctx RuleContext, rule string) (bool, error) {
	if evaluator == nil {
		return false, ErrNoEvaluator
	}
	out, err := evaluator.Evaluate(ctx, rule)
	if err != nil {
		return false, err
	}
	passed, ok := out.(bool)
	if !ok {
		return false, ruleError(evaluatorEngineName(evaluator), rule, ctx,
			fmt.Errorf("rule must return a bool, got %T", out))
	}
	return passed, nil
}

// CompileRules compiles every field rule in registry and returns the failures
// joined, each naming its module and key.
func CompileRules(evaluator Evaluator, registry *Registry) error {
	if evaluator == nil {
		return ErrNoEvaluator
	}
	if registry == nil {
		return nil
	}
	var errs []error
	for _, d := range registry.Descriptors() {
		for _, f := range d.Fields {
			if f.Rule == "" {
				continue
			}
			if _, err := evaluator.Compile(f.Rule, Predicate()); err != nil {
				errs = append(errs, ruleError(evaluatorEngineName(evaluator), f.Rule, RuleContext{Module: d.Name, Key: f.Key}, err))
			}
		}
	}
	return errors.Join(errs...)
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	default:
		return "custom"
	}
}

// NewEvaluator returns the evaluator for engine ("expr", "cel" or "js").
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js":
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("settings: unknown rule engine %q", engine)
	}
}
