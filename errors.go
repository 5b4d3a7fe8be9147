package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCorruptBlob marks persisted module data that does not decode to a mapping.
	ErrCorruptBlob = errors.New("settings: corrupt module blob")
	// ErrInvalidModule indicates an empty module name.
	ErrInvalidModule = errors.New("settings: module name must be provided")
	// ErrInvalidKey indicates an empty setting key.
	ErrInvalidKey = errors.New("settings: key must be provided")
	// ErrValidation indicates a registry rule rejected a value.
	ErrValidation = errors.New("settings: value rejected")
	// ErrTypeMismatch indicates a value whose kind differs from the field type.
	ErrTypeMismatch = errors.New("settings: value has the wrong type")
	// ErrListenerNotComparable indicates a listener that cannot be stored in a set.
	ErrListenerNotComparable = errors.New("settings: listener must be comparable")
	// ErrDuplicateModule indicates a descriptor registered twice.
	ErrDuplicateModule = errors.New("settings: module already registered")
	// ErrNoEvaluator indicates a rule was configured without an evaluator.
	ErrNoEvaluator = errors.New("settings: evaluator not configured")
)

// ValidationError reports why a write to Module.Key was refused. Err is nil
// when the rule simply returned false; otherwise it is an ErrTypeMismatch or
// the *EvaluationError of a rule that could not run.
type ValidationError struct {
	Module string
	Key    string
	Rule   string
	Value  Value
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("settings: %s.%s: value %s rejected: %v", e.Module, e.Key, e.Value, e.Err)
	}
	return fmt.Sprintf("settings: %s.%s: value %s rejected by rule %q", e.Module, e.Key, e.Value, e.Rule)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Rule phases reported by EvaluationError.
const (
	PhaseCompile  = "compile"
	PhaseEvaluate = "evaluate"
)

// EvaluationError is a rule that failed to compile or run. Module and Key
// are empty when the rule was compiled outside of a write.
type EvaluationError struct {
	Engine string
	Rule   string
	Phase  string
	Module string
	Key    string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	rule := "<empty>"
	if e.Rule != "" {
		rule = fmt.Sprintf("%q", e.Rule)
	}
	return fmt.Sprintf("settings: %s %s of rule %s on %s: %v", e.Engine, e.Phase, rule, e.target(), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *EvaluationError) target() string {
	switch {
	case e.Module == "" && e.Key == "":
		return "unbound field"
	case e.Module == "":
		return e.Key
	default:
		return e.Module + "." + e.Key
	}
}

// engineError reports a failure of the engine itself, outside any rule.
func engineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s evaluator: %w", engine, err)
}

func compileError(engine, rule string, err error) error {
	if err == nil {
		return nil
	}
	return &EvaluationError{Engine: engine, Rule: rule, Phase: PhaseCompile, Err: err}
}

// ruleError attributes err to the field in ctx. An EvaluationError from an
// earlier stage keeps its phase and gains the missing details.
func ruleError(engine, rule string, ctx RuleContext, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		if evalErr.Module == "" && evalErr.Key == "" {
			evalErr.Module, evalErr.Key = ctx.Module, ctx.Key
		}
		return evalErr
	}
	return &EvaluationError{
		Engine: engine,
		Rule:   rule,
		Phase:  PhaseEvaluate,
		Module: ctx.Module,
		Key:    ctx.Key,
		Err:    err,
	}
}
