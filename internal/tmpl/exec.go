package tmpl

import (
	"fmt"
	"strings"
)

type state struct {
	tmpl *Template
	ctx  Context
	dot  *string
}

func (s state) lookup(pos int, path string) (Value, error) {
	if path == "" {
		if s.dot == nil {
			return Value{}, &Error{Template: s.tmpl.src, Pos: pos, Err: fmt.Errorf("%w: . outside of range", ErrUndefinedVariable)}
		}
		return String(*s.dot), nil
	}
	v, ok := s.ctx.Lookup(path)
	if !ok {
		return Value{}, &Error{Template: s.tmpl.src, Pos: pos, Err: fmt.Errorf("%w: .%s", ErrUndefinedVariable, path)}
	}
	return v, nil
}

func (s state) walk(out *strings.Builder, nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			out.WriteString(n.text)
		case varNode:
			v, err := s.lookup(n.pos, n.path)
			if err != nil {
				return err
			}
			out.WriteString(v.String())
		case ifNode:
			v, err := s.lookup(n.pos, n.cond)
			if err != nil {
				return err
			}
			branch := n.els
			if v.Truthy() {
				branch = n.then
			}
			err = s.walk(out, branch)
			if err != nil {
				return err
			}
		case rangeNode:
			v, err := s.lookup(n.pos, n.over)
			if err != nil {
				return err
			}
			for _, item := range v.Items() {
				inner := s
				inner.dot = &item
				err = inner.walk(out, n.body)
				if err != nil {
					return err
				}
			}
		case joinNode:
			v, err := s.lookup(n.pos, n.path)
			if err != nil {
				return err
			}
			out.WriteString(strings.Join(v.Items(), n.sep))
		case reReplaceNode:
			v, err := s.lookup(n.pos, n.path)
			if err != nil {
				return err
			}
			out.WriteString(n.pattern.ReplaceAllString(v.String(), n.replacement))
		default:
			panic(fmt.Sprintf("tmpl: unknown node %T", n))
		}
	}
	return nil
}

// Execute renders the template, on error nothing is returned.
func (t *Template) Execute(ctx Context) (string, error) {
	var out strings.Builder
	err := state{tmpl: t, ctx: ctx}.walk(&out, t.root)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// Render parses and executes a template in one go.
func Render(src string, ctx Context) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}
	t, err := Parse(src)
	if err != nil {
		return "", err
	}
	return t.Execute(ctx)
}
