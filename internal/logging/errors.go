package logging

import (
	"github.com/samber/oops"
)

// ErrorAttrs returns key–value pairs describing err for structured logs.
// Errors built with oops contribute their code and context.
func ErrorAttrs(err error) []any {
	if err == nil {
		return nil
	}
	args := []any{"error", err.Error()}

	o, ok := oops.AsOops(err)
	if !ok {
		return args
	}
	if code := o.Code(); code != nil {
		args = append(args, "code", code)
	}
	for k, v := range o.Context() {
		args = append(args, k, v)
	}
	return args
}
