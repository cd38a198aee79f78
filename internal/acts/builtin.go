package acts

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Builtin action kinds every tile worker dispatches out of the box.
// The symbol-addressed kinds expect the target symbol as the first
// value; pass and print operate on the raw value list.
const (
	ActionPass           = "pass"
	ActionPrint          = "print"
	ActionSetAttr        = "setattr"
	ActionPrintValue     = "print_value"
	ActionCall           = "call"
	ActionCallArgs       = "call_args"
	ActionCallKwargs     = "call_kwargs"
	ActionCallArgsKwargs = "call_args_kwargs"
	ActionStop           = "stop"
)

// DefaultTable wires the builtin kinds against a target registry and
// marks ActionStop as the shutdown kind.
func DefaultTable(targets *Targets) (*Table, error) {
	table := NewTable()
	builtins := map[string]Handler{
		ActionPass: func([]any) error { return nil },
		ActionPrint: func(values []any) error {
			log.Info().Interface("values", values).Msg("action_print")
			return nil
		},
		ActionSetAttr: func(values []any) error {
			target, rest, err := resolveTarget(targets, ActionSetAttr, values)
			if err != nil {
				return err
			}
			if len(rest) != 2 {
				return fmt.Errorf("setattr expects [symbol, field, value], got %d values", len(values))
			}
			field, err := stringValue(ActionSetAttr, "field", rest[0])
			if err != nil {
				return err
			}
			return target.SetField(field, rest[1])
		},
		ActionPrintValue: func(values []any) error {
			target, rest, err := resolveTarget(targets, ActionPrintValue, values)
			if err != nil {
				return err
			}
			if len(rest) != 1 {
				return fmt.Errorf("print_value expects [symbol, field], got %d values", len(values))
			}
			field, err := stringValue(ActionPrintValue, "field", rest[0])
			if err != nil {
				return err
			}
			v, err := target.Field(field)
			if err != nil {
				return err
			}
			log.Info().Str("field", field).Interface("value", v).Msg("action_print_value")
			return nil
		},
		ActionCall: func(values []any) error {
			return invokeTarget(targets, ActionCall, values, func(rest []any) ([]any, map[string]any, error) {
				if len(rest) != 0 {
					return nil, nil, fmt.Errorf("call expects [symbol, method], got extra values")
				}
				return nil, nil, nil
			})
		},
		ActionCallArgs: func(values []any) error {
			return invokeTarget(targets, ActionCallArgs, values, func(rest []any) ([]any, map[string]any, error) {
				return rest, nil, nil
			})
		},
		ActionCallKwargs: func(values []any) error {
			return invokeTarget(targets, ActionCallKwargs, values, func(rest []any) ([]any, map[string]any, error) {
				if len(rest) != 1 {
					return nil, nil, fmt.Errorf("call_kwargs expects [symbol, method, kwargs]")
				}
				kwargs, err := mapValue(ActionCallKwargs, rest[0])
				if err != nil {
					return nil, nil, err
				}
				return nil, kwargs, nil
			})
		},
		ActionCallArgsKwargs: func(values []any) error {
			return invokeTarget(targets, ActionCallArgsKwargs, values, func(rest []any) ([]any, map[string]any, error) {
				if len(rest) != 2 {
					return nil, nil, fmt.Errorf("call_args_kwargs expects [symbol, method, args, kwargs]")
				}
				args, err := listValue(ActionCallArgsKwargs, rest[0])
				if err != nil {
					return nil, nil, err
				}
				kwargs, err := mapValue(ActionCallArgsKwargs, rest[1])
				if err != nil {
					return nil, nil, err
				}
				return args, kwargs, nil
			})
		},
		ActionStop: func([]any) error { return nil },
	}
	for kind, h := range builtins {
		if err := table.Register(kind, h); err != nil {
			return nil, fmt.Errorf("acts: register builtin %q: %w", kind, err)
		}
	}
	if err := table.SetTerminate(ActionStop); err != nil {
		return nil, err
	}
	return table, nil
}

// resolveTarget peels the leading symbol off the value list.
func resolveTarget(targets *Targets, kind string, values []any) (Target, []any, error) {
	if targets == nil {
		return nil, nil, fmt.Errorf("%s: no target registry", kind)
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%s expects a target symbol as the first value", kind)
	}
	symbol, err := stringValue(kind, "symbol", values[0])
	if err != nil {
		return nil, nil, err
	}
	target, ok := targets.Get(symbol)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTarget, symbol)
	}
	return target, values[1:], nil
}

// invokeTarget shares the method-call plumbing across the call kinds.
func invokeTarget(targets *Targets, kind string, values []any, split func(rest []any) (args []any, kwargs map[string]any, err error)) error {
	target, rest, err := resolveTarget(targets, kind, values)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("%s expects a method name after the symbol", kind)
	}
	method, err := stringValue(kind, "method", rest[0])
	if err != nil {
		return err
	}
	args, kwargs, err := split(rest[1:])
	if err != nil {
		return err
	}
	if _, err := target.Invoke(method, args, kwargs); err != nil {
		return err
	}
	return nil
}

func stringValue(kind, field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s %s must be a string, got %T", kind, field, v)
	}
	return s, nil
}

func mapValue(kind string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s kwargs must be a map, got %T", kind, v)
	}
	return m, nil
}

func listValue(kind string, v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s args must be a list, got %T", kind, v)
	}
	return l, nil
}
