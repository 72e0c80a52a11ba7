package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValidateFunc is a custom validator. It returns an empty string when value
// is valid and the failure message otherwise. values is the full form
// snapshot. Validators may block (for example a remote availability check)
// and must honour ctx.
type ValidateFunc func(ctx context.Context, value any, values map[string]any) (string, error)

// Validator is a named custom validator.
type Validator struct {
	Name string
	Fn   ValidateFunc
}

// Func wraps fn as a named validator.
func Func(name string, fn ValidateFunc) Validator {
	return Validator{Name: strings.TrimSpace(name), Fn: fn}
}

// Predicate builds a validator that fails with message when ok returns false.
func Predicate(name, message string, ok func(value any) bool) Validator {
	return Validator{
		Name: strings.TrimSpace(name),
		Fn: func(_ context.Context, value any, _ map[string]any) (string, error) {
			if ok == nil || ok(value) {
				return "", nil
			}
			if message == "" {
				message = "value is not valid"
			}
			return message, nil
		},
	}
}

// resultMessage interprets an expression result: true or "" means valid,
// false means invalid with the fallback message, a non-empty string is the
// failure message itself.
func resultMessage(result any, fallback string) (string, error) {
	switch typed := result.(type) {
	case bool:
		if typed {
			return "", nil
		}
		if fallback == "" {
			fallback = "value is not valid"
		}
		return fallback, nil
	case string:
		return typed, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected bool or string result, got %T", result)
	}
}

// ToFloat converts numeric values (and numeric strings) to float64.
func ToFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
