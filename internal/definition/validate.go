package definition

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// RootPrefix re-anchors a selector at the document root instead of the current row.
const RootPrefix = ":root"

// StripRoot removes the root prefix, it reports whether the prefix was present.
func StripRoot(selector string) (string, bool) {
	trimmed := strings.TrimSpace(selector)
	if !strings.HasPrefix(trimmed, RootPrefix) {
		return trimmed, false
	}
	return strings.TrimSpace(trimmed[len(RootPrefix):]), true
}

func checkSelector(selector string) error {
	if selector == "" {
		return nil
	}
	rest, rooted := StripRoot(selector)
	if rooted && rest == "" {
		return nil
	}
	_, err := cascadia.Compile(rest)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSelector, selector, err)
	}
	return nil
}

// WalkSelectors calls fn for every SelectorBlock of the definition, `where` is its dotted path.
// It stops at the first error.
func (d *Definition) WalkSelectors(fn func(where string, block SelectorBlock) error) error {
	if d.Login != nil {
		for _, input := range d.Login.SelectorInputs {
			err := fn("login.selectorinputs."+input.Name, input.Block)
			if err != nil {
				return err
			}
		}
		for i, e := range d.Login.Error {
			if e.Message == nil {
				continue
			}
			err := fn(fmt.Sprintf("login.error[%d].message", i), *e.Message)
			if err != nil {
				return err
			}
		}
	}
	if d.Ratio != nil {
		err := fn("ratio", d.Ratio.SelectorBlock)
		if err != nil {
			return err
		}
	}
	for i, e := range d.Search.Error {
		if e.Message == nil {
			continue
		}
		err := fn(fmt.Sprintf("search.error[%d].message", i), *e.Message)
		if err != nil {
			return err
		}
	}
	if d.Search.Rows.DateHeaders != nil {
		err := fn("search.rows.dateheaders", *d.Search.Rows.DateHeaders)
		if err != nil {
			return err
		}
	}
	for _, field := range d.Search.Fields {
		err := fn("search.fields."+field.Name, field.Block)
		if err != nil {
			return err
		}
	}
	return nil
}

func checkBlock(block SelectorBlock) error {
	err := checkSelector(block.Selector)
	if err != nil {
		return err
	}
	err = checkSelector(block.Remove)
	if err != nil {
		return err
	}
	for _, c := range block.Case {
		err = checkSelector(c.Key)
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the mandatory blocks and that every selector compiles.
func (d *Definition) Validate() error {
	fail := func(where string, err error) error {
		return &Error{Site: d.Key(), Where: where, Err: err}
	}

	if d.Key() == "" {
		return fail("id", fmt.Errorf("%w: id or site is required", ErrMissingBlock))
	}
	if len(d.Links) == 0 {
		return fail("links", fmt.Errorf("%w: at least one link is required", ErrMissingBlock))
	}
	for _, setting := range d.Settings {
		switch setting.Type {
		case SETTING_TEXT, SETTING_PASSWORD, SETTING_CHECKBOX, SETTING_SELECT, SETTING_INFO, "":
		default:
			return fail("settings."+setting.Name, fmt.Errorf("%w: setting type %q", ErrInvalidValue, setting.Type))
		}
	}

	if d.Login != nil {
		switch d.Login.Method {
		case LOGIN_POST, LOGIN_GET, LOGIN_FORM:
			if d.Login.Path == "" {
				return fail("login.path", fmt.Errorf("%w: login path is required for method %s", ErrMissingBlock, d.Login.Method))
			}
		case LOGIN_COOKIE:
		case "":
			return fail("login.method", fmt.Errorf("%w: login method is required", ErrMissingBlock))
		default:
			return fail("login.method", fmt.Errorf("%w: login method %q", ErrInvalidValue, d.Login.Method))
		}
		err := checkSelector(d.Login.Form)
		if err != nil {
			return fail("login.form", err)
		}
		for i, e := range d.Login.Error {
			if e.Selector == "" {
				return fail(fmt.Sprintf("login.error[%d]", i), fmt.Errorf("%w: error selector is required", ErrMissingBlock))
			}
			err = checkSelector(e.Selector)
			if err != nil {
				return fail(fmt.Sprintf("login.error[%d]", i), err)
			}
		}
		if d.Login.Test != nil {
			err = checkSelector(d.Login.Test.Selector)
			if err != nil {
				return fail("login.test", err)
			}
		}
	}

	if d.Search.Rows.Selector == "" {
		return fail("search.rows", fmt.Errorf("%w: rows selector is required", ErrMissingBlock))
	}
	err := checkSelector(d.Search.Rows.Selector)
	if err != nil {
		return fail("search.rows", err)
	}
	if d.Search.Rows.After < 0 {
		return fail("search.rows.after", fmt.Errorf("%w: after must not be negative", ErrInvalidValue))
	}
	if len(d.Search.Fields) == 0 {
		return fail("search.fields", fmt.Errorf("%w: at least one field is required", ErrMissingBlock))
	}
	for i, e := range d.Search.Error {
		err = checkSelector(e.Selector)
		if err != nil {
			return fail(fmt.Sprintf("search.error[%d]", i), err)
		}
	}

	return d.WalkSelectors(func(where string, block SelectorBlock) error {
		err := checkBlock(block)
		if err != nil {
			return fail(where, err)
		}
		return nil
	})
}
