package tmpl

import (
	"fmt"
	"regexp"
)

type node interface{}

type textNode struct {
	text string
}

// varNode substitutes a path, an empty path is the current range item.
type varNode struct {
	pos  int
	path string
}

type ifNode struct {
	pos       int
	cond      string
	then, els []node
}

type rangeNode struct {
	pos  int
	over string
	body []node
}

type joinNode struct {
	pos  int
	path string
	sep  string
}

type reReplaceNode struct {
	pos         int
	path        string
	pattern     *regexp.Regexp
	replacement string
}

// Template is a parsed template, it is safe for concurrent use.
type Template struct {
	src  string
	root []node
}

type parser struct {
	src      string
	segments []segment
	i        int
}

// Parse turns the source into a tree, nested if/range blocks are allowed.
func Parse(src string) (*Template, error) {
	segments, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, segments: segments}
	root, terminator, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if terminator != nil {
		return nil, p.fail(terminator.pos, fmt.Errorf("%w: unexpected {{%s}}", ErrSyntax, terminator.tokens[0].value))
	}
	return &Template{src: src, root: root}, nil
}

func (p *parser) fail(pos int, err error) error {
	return &Error{Template: p.src, Pos: pos, Err: err}
}

func pathName(t token) string {
	return normalizePath(t.value)
}

// parseList reads nodes until EOF or an `else`/`end` action which is returned unconsumed.
func (p *parser) parseList() ([]node, *segment, error) {
	var nodes []node
	for p.i < len(p.segments) {
		seg := p.segments[p.i]
		if !seg.isAction {
			nodes = append(nodes, textNode{text: seg.text})
			p.i++
			continue
		}

		head := seg.tokens[0]
		if head.kind == tokenWord && (head.value == "else" || head.value == "end") {
			return nodes, &p.segments[p.i], nil
		}
		p.i++

		n, err := p.parseAction(seg)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil, nil
}

func (p *parser) parseAction(seg segment) (node, error) {
	tokens := seg.tokens
	head := tokens[0]

	if head.kind == tokenPath {
		if len(tokens) != 1 {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: more than one operand", ErrUnsupportedExpression))
		}
		return varNode{pos: seg.pos, path: pathName(head)}, nil
	}
	if head.kind != tokenWord {
		return nil, p.fail(seg.pos, fmt.Errorf("%w: literal outside of a function", ErrUnsupportedExpression))
	}

	switch head.value {
	case "if":
		if len(tokens) != 2 || tokens[1].kind != tokenPath {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: if only accepts a single variable", ErrUnsupportedExpression))
		}
		then, terminator, err := p.parseList()
		if err != nil {
			return nil, err
		}
		n := ifNode{pos: seg.pos, cond: pathName(tokens[1]), then: then}
		if terminator == nil {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: if without end", ErrSyntax))
		}
		if terminator.tokens[0].value == "else" {
			if len(terminator.tokens) != 1 {
				return nil, p.fail(terminator.pos, fmt.Errorf("%w: else only stands alone", ErrUnsupportedExpression))
			}
			p.i++
			n.els, terminator, err = p.parseList()
			if err != nil {
				return nil, err
			}
			if terminator == nil || terminator.tokens[0].value != "end" {
				return nil, p.fail(seg.pos, fmt.Errorf("%w: if without end", ErrSyntax))
			}
		}
		if len(terminator.tokens) != 1 {
			return nil, p.fail(terminator.pos, fmt.Errorf("%w: end takes no operands", ErrSyntax))
		}
		p.i++
		return n, nil

	case "range":
		if len(tokens) != 2 || tokens[1].kind != tokenPath {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: range only accepts a single variable", ErrUnsupportedExpression))
		}
		body, terminator, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if terminator == nil || terminator.tokens[0].value != "end" || len(terminator.tokens) != 1 {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: range without end", ErrSyntax))
		}
		p.i++
		return rangeNode{pos: seg.pos, over: pathName(tokens[1]), body: body}, nil

	case "join":
		if len(tokens) != 3 || tokens[1].kind != tokenPath || tokens[2].kind != tokenString {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: usage is join .Path \"sep\"", ErrSyntax))
		}
		return joinNode{pos: seg.pos, path: pathName(tokens[1]), sep: tokens[2].value}, nil

	case "re_replace":
		if len(tokens) != 4 || tokens[1].kind != tokenPath || tokens[2].kind != tokenString || tokens[3].kind != tokenString {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: usage is re_replace .Path \"pattern\" \"replacement\"", ErrSyntax))
		}
		pattern, err := regexp.Compile(tokens[2].value)
		if err != nil {
			return nil, p.fail(seg.pos, fmt.Errorf("%w: %w", ErrSyntax, err))
		}
		return reReplaceNode{
			pos:         seg.pos,
			path:        pathName(tokens[1]),
			pattern:     pattern,
			replacement: tokens[3].value,
		}, nil
	}

	return nil, p.fail(seg.pos, fmt.Errorf("%w: %s", ErrUnsupportedExpression, head.value))
}
