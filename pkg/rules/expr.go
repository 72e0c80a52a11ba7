package rules

import (
	"context"
	"errors"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
)

// ExpressionOption configures expression validators.
type ExpressionOption func(*expressionConfig)

type expressionConfig struct {
	cache ProgramCache
}

// WithProgramCache overrides the package level program cache.
func WithProgramCache(cache ProgramCache) ExpressionOption {
	return func(cfg *expressionConfig) {
		if cache != nil {
			cfg.cache = cache
		}
	}
}

func newExpressionConfig(opts []ExpressionOption) expressionConfig {
	cfg := expressionConfig{cache: defaultCache}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Compile builds a validator for the named engine ("expr" when empty).
func Compile(engine, name, expression, message string, opts ...ExpressionOption) (Validator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return Expr(name, expression, message, opts...)
	case EngineCEL:
		return CEL(name, expression, message, opts...)
	default:
		return Validator{}, wrapExpressionError(engine, name, expression, ErrUnknownEngine)
	}
}

// Expr builds a validator from an expr-lang expression. The expression sees
// `value` (the field value) and `values` (the form snapshot); other fields are
// reached through `values`, e.g. `values.password`. A true result (or empty string) passes; false fails with
// message; a non-empty string result is used as the failure message.
func Expr(name, expression, message string, opts ...ExpressionOption) (Validator, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return Validator{}, wrapExpressionError(EngineExpr, name, expression, errors.New("expression must not be empty"))
	}
	cfg := newExpressionConfig(opts)
	program, err := loadOrCompileExpr(cfg.cache, expression)
	if err != nil {
		return Validator{}, wrapExpressionError(EngineExpr, name, expression, err)
	}

	return Validator{
		Name: strings.TrimSpace(name),
		Fn: func(ctx context.Context, value any, values map[string]any) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			result, err := exprlang.Run(program, exprEnvironment(value, values))
			if err != nil {
				return "", wrapExpressionError(EngineExpr, name, expression, err)
			}
			out, err := resultMessage(result, message)
			if err != nil {
				return "", wrapExpressionError(EngineExpr, name, expression, err)
			}
			return out, nil
		},
	}, nil
}

func loadOrCompileExpr(cache ProgramCache, expression string) (*exprvm.Program, error) {
	key := cacheKey(EngineExpr, expression)
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression, exprlang.Env(exprEnvironment(nil, nil)))
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// exprEnvironment declares the only two variables; builtins such as
// `values` or `count` would otherwise shadow them.
func exprEnvironment(value any, values map[string]any) map[string]any {
	if values == nil {
		values = map[string]any{}
	}
	return map[string]any{"value": value, "values": values}
}
