package rules

import (
	"context"
	"errors"
	"strings"

	celgo "github.com/google/cel-go/cel"
)

// CEL builds a validator from a CEL expression. The expression sees `value`
// (dyn) and `values` (map(string, dyn)). Results are interpreted like Expr.
func CEL(name, expression, message string, opts ...ExpressionOption) (Validator, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return Validator{}, wrapExpressionError(EngineCEL, name, expression, errors.New("expression must not be empty"))
	}
	cfg := newExpressionConfig(opts)
	program, err := loadOrCompileCEL(cfg.cache, expression)
	if err != nil {
		return Validator{}, wrapExpressionError(EngineCEL, name, expression, err)
	}

	return Validator{
		Name: strings.TrimSpace(name),
		Fn: func(ctx context.Context, value any, values map[string]any) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if values == nil {
				values = map[string]any{}
			}
			out, _, err := program.Eval(map[string]any{
				"value":  value,
				"values": values,
			})
			if err != nil {
				return "", wrapExpressionError(EngineCEL, name, expression, err)
			}
			result, err := resultMessage(out.Value(), message)
			if err != nil {
				return "", wrapExpressionError(EngineCEL, name, expression, err)
			}
			return result, nil
		},
	}, nil
}

func loadOrCompileCEL(cache ProgramCache, expression string) (celgo.Program, error) {
	key := cacheKey(EngineCEL, expression)
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	env, err := celgo.NewEnv(
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("values", celgo.MapType(celgo.StringType, celgo.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}
