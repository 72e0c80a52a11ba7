package rules

import (
	"errors"
	"fmt"
)

// ErrUnknownEngine is returned by Compile for unsupported expression engines.
var ErrUnknownEngine = errors.New("rules: unknown expression engine")

// ExpressionError captures the expression metadata alongside the originating
// compile or evaluation error.
type ExpressionError struct {
	Engine    string
	Validator string
	Expr      string
	Err       error
}

func (e *ExpressionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rules: %s validator %q expr=%q: %v", e.Engine, e.Validator, e.Expr, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapExpressionError(engine, name, expression string, err error) error {
	if err == nil {
		return nil
	}
	var exprErr *ExpressionError
	if errors.As(err, &exprErr) {
		return err
	}
	return &ExpressionError{Engine: engine, Validator: name, Expr: expression, Err: err}
}
