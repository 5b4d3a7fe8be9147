package settings

import (
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes one rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Field    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogEvaluatorLogger writes evaluation events at debug level, or warn on
// failure.
func SlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		attrs := []any{
			"engine", event.Engine,
			"expr", event.Expr,
			"field", event.Field,
			"duration", event.Duration,
		}
		if event.Err != nil {
			logger.Warn("rule evaluation failed", append(attrs, "error", event.Err)...)
			return
		}
		logger.Debug("rule evaluated", attrs...)
	})
}
