package settings

import (
	"errors"
	"strings"
	"testing"
)

func TestRuleErrorNamesTheField(t *testing.T) {
	base := errors.New("boom")
	err := ruleError("expr", "value && missing", RuleContext{Module: "chat", Key: "font_size"}, base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Phase != PhaseEvaluate || evalErr.Module != "chat" || evalErr.Key != "font_size" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected base error to unwrap")
	}
	want := `settings: expr evaluate of rule "value && missing" on chat.font_size: boom`
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRuleErrorCompletesCompileFailures(t *testing.T) {
	compiled := compileError("cel", "value >= (", errors.New("syntax"))
	err := ruleError("expr", "ignored", RuleContext{Module: "hud", Key: "scale"}, compiled)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "cel" || evalErr.Rule != "value >= (" || evalErr.Phase != PhaseCompile {
		t.Fatalf("compile details must be kept, got %+v", evalErr)
	}
	if evalErr.Module != "hud" || evalErr.Key != "scale" {
		t.Fatalf("field must be filled, got %+v", evalErr)
	}
	if !strings.Contains(compileError("js", "", errors.New("x")).Error(), "<empty> on unbound field") {
		t.Fatalf("unexpected message for an unbound empty rule")
	}
}

func TestEngineErrorKeepsPrefixedErrors(t *testing.T) {
	prefixed := errors.New("settings: already described")
	if got := engineError("cel", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as-is, got %v", got)
	}
	if got := engineError("cel", errors.New("raw")); got.Error() != "settings: cel evaluator: raw" {
		t.Fatalf("unexpected wrapped message %q", got.Error())
	}
	if engineError("cel", nil) != nil || ruleError("cel", "", RuleContext{}, nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestValidationErrorMessages(t *testing.T) {
	refused := &ValidationError{Module: "chat", Key: "font_size", Rule: "value <= 32", Value: Int(40)}
	if got := refused.Error(); got != `settings: chat.font_size: value 40 rejected by rule "value <= 32"` {
		t.Fatalf("unexpected message %q", got)
	}
	mismatch := &ValidationError{Module: "chat", Key: "font_size", Value: Number(14.5), Err: ErrTypeMismatch}
	if !errors.Is(mismatch, ErrValidation) || !errors.Is(mismatch, ErrTypeMismatch) {
		t.Fatalf("expected both sentinels to match %v", mismatch)
	}
}
