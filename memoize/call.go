package memoize

// CallContext carries the arguments of one invocation of a wrapped function.
// The same context is handed to both the Keyer and the FingerprintFunc, so a
// polymorphic fingerprint function can pick out the parameter it monitors
// (by position or by name) and ignore the rest.
type CallContext struct {
	// Args are the positional argument values, in call order.
	Args []any

	// Named are the named argument values. Naming is order-independent:
	// two calls with the same name→value pairs are the same call.
	Named map[string]any
}

// Call builds a CallContext from positional arguments only.
func Call(args ...any) CallContext {
	return CallContext{Args: args}
}

// WithNamed returns a copy of the context with the named value set.
func (c CallContext) WithNamed(name string, value any) CallContext {
	named := make(map[string]any, len(c.Named)+1)
	for k, v := range c.Named {
		named[k] = v
	}
	named[name] = value
	c.Named = named
	return c
}

// Arg returns the positional argument at pos, or (nil, false) when out of range.
func (c CallContext) Arg(pos int) (any, bool) {
	if pos < 0 || pos >= len(c.Args) {
		return nil, false
	}
	return c.Args[pos], true
}

// StringArg returns the positional argument at pos as a string.
// Returns ("", false) when the argument is absent or not a string.
func (c CallContext) StringArg(pos int) (string, bool) {
	v, ok := c.Arg(pos)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
