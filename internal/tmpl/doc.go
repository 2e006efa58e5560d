// Package tmpl implements the small template language of site definitions: variable
// substitution, `if`/`else`/`end`, `range`/`end` and the `join` and `re_replace` helpers.
// Everything else is rejected with ErrUnsupportedExpression.
package tmpl
