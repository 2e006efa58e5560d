package tmpl

import "strings"

// Value is either a single string or a list of strings.
type Value struct {
	str    string
	list   []string
	isList bool
}

func String(s string) Value {
	return Value{str: s}
}

func List(items ...string) Value {
	return Value{list: append([]string(nil), items...), isList: true}
}

func (v Value) IsList() bool {
	return v.isList
}

// Items returns the list items, a non-blank string is a list of itself.
func (v Value) Items() []string {
	if v.isList {
		return v.list
	}
	if strings.TrimSpace(v.str) == "" {
		return nil
	}
	return []string{v.str}
}

// String renders the value, lists are joined with commas.
func (v Value) String() string {
	if v.isList {
		return strings.Join(v.list, ",")
	}
	return v.str
}

// Truthy is true for a non-blank string or a non-empty list.
func (v Value) Truthy() bool {
	if v.isList {
		return len(v.list) > 0
	}
	return strings.TrimSpace(v.str) != ""
}

// Context maps dotted paths (`.Query.Q`, `.Config.username`) to values. It is never mutated
// after construction, With returns a copy so a context can be shared between requests.
type Context struct {
	values map[string]Value
}

func normalizePath(path string) string {
	return strings.TrimPrefix(path, ".")
}

// NewContext builds a context out of path -> value, the leading dot of a path is optional.
func NewContext(values map[string]Value) Context {
	out := make(map[string]Value, len(values))
	for path, v := range values {
		out[normalizePath(path)] = v
	}
	return Context{values: out}
}

// With returns a copy of the context with the given paths set.
func (c Context) With(values map[string]Value) Context {
	out := make(map[string]Value, len(c.values)+len(values))
	for path, v := range c.values {
		out[path] = v
	}
	for path, v := range values {
		out[normalizePath(path)] = v
	}
	return Context{values: out}
}

func (c Context) Lookup(path string) (Value, bool) {
	v, ok := c.values[normalizePath(path)]
	return v, ok
}
