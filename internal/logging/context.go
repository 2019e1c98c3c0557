package logging

import "context"

type attrsKey struct{}

// ContextWith returns a copy of ctx carrying extra key–value pairs. Both
// backends add them to every entry logged with that context, so request
// scoped fields such as the request id or the acting user are set once.
func ContextWith(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := FromContext(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// FromContext returns the pairs stored by ContextWith.
func FromContext(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	args, _ := ctx.Value(attrsKey{}).([]any)
	return args
}

// withContext prepends the context pairs to args.
func withContext(ctx context.Context, args []any) []any {
	extra := FromContext(ctx)
	if len(extra) == 0 {
		return args
	}
	out := make([]any, 0, len(extra)+len(args))
	out = append(out, extra...)
	return append(out, args...)
}
