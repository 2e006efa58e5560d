// Package selector reads single string values out of markup as described by a
// definition.SelectorBlock and runs them through the filter chain.
package selector

import (
	"errors"
	"strings"

	"trackscrape/internal/components/assert"
	"trackscrape/internal/components/chrono"
	"trackscrape/internal/components/telemetry"
	"trackscrape/internal/definition"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_date_unparsable = "filter-date"
	report_value_undecoded = "filter-urldecode"
)

// TextRenderer renders the `text` and `default` values of a block, usually through the
// template engine with the fields extracted so far.
type TextRenderer func(text string) (string, error)

type Pipeline struct {
	clock  chrono.API
	tel    telemetry.API
	render TextRenderer
}

func NewPipeline(clock chrono.API, tel telemetry.API) Pipeline {
	assert.NotNil(clock)
	assert.NotNil(tel)
	return Pipeline{clock: clock, tel: tel}
}

// WithRenderer returns a copy of the pipeline that renders literal values with fn.
func (p Pipeline) WithRenderer(fn TextRenderer) Pipeline {
	p.render = fn
	return p
}

func (p Pipeline) renderText(text string) (string, error) {
	if p.render == nil {
		return text, nil
	}
	return p.render(text)
}

// Extract reads one value out of node. A block with `text` ignores the node. Values are
// always passed through the block's filters.
func (p Pipeline) Extract(node *goquery.Selection, block definition.SelectorBlock) (string, error) {
	value, err := p.raw(node, block)
	if err != nil {
		if block.Optional && !isFilterError(err) {
			return p.renderText(block.Default)
		}
		return "", err
	}
	return p.ApplyFilters(value, block.Filters)
}

func isFilterError(err error) bool {
	var selErr *Error
	return errors.As(err, &selErr) && selErr.Filter != ""
}

func (p Pipeline) raw(node *goquery.Selection, block definition.SelectorBlock) (string, error) {
	if block.Text != "" {
		return p.renderText(block.Text)
	}

	selection := node
	if block.Selector != "" {
		var err error
		selection, err = Resolve(node, block.Selector)
		if err != nil {
			return "", err
		}
	}

	if block.Remove != "" {
		selection = selection.Clone()
		selection.Find(block.Remove).Remove()
	}

	if len(block.Case) > 0 {
		for _, c := range block.Case {
			if selection.Is(c.Key) || selection.Find(c.Key).Length() > 0 {
				return c.Value, nil
			}
		}
		return "", &Error{Selector: block.Selector, Err: ErrNoCaseMatched}
	}

	if block.Attribute != "" {
		value, ok := selection.Attr(block.Attribute)
		if !ok {
			return "", &Error{Selector: block.Selector, Err: ErrAttributeNotFound}
		}
		return strings.TrimSpace(value), nil
	}

	return strings.TrimSpace(selection.Text()), nil
}

// Resolve finds the first match of selector below node, falling back to node itself when
// it matches. A `:root` prefix searches the whole document instead.
func Resolve(node *goquery.Selection, selector string) (*goquery.Selection, error) {
	rest, rooted := definition.StripRoot(selector)
	scope := node
	if rooted {
		scope = Root(node)
		if rest == "" {
			return scope, nil
		}
	}

	found := scope.Find(rest).First()
	if found.Length() > 0 {
		return found, nil
	}
	if !rooted && scope.Is(rest) {
		return scope.First(), nil
	}
	return nil, &Error{Selector: selector, Err: ErrSelectorNotFound}
}

// Root returns the document node the selection belongs to.
func Root(node *goquery.Selection) *goquery.Selection {
	if node.Length() == 0 {
		return node
	}
	n := node.Get(0)
	for n.Parent != nil {
		n = n.Parent
	}
	return goquery.NewDocumentFromNode(n).Selection
}
