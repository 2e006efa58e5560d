package tmpl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testContext() Context {
	return NewContext(map[string]Value{
		".Query.Q":         String("foo"),
		".Config.x":        String("yes"),
		".Config.blank":    String("  "),
		".Config.sitelink": String("https://tracker.example/"),
		".Cats":            List("1", "2"),
		".Empty":           List(),
		".Keywords":        String("the.show s01"),
		".Outer":           List("a", "b"),
	})
}

func TestRender(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{name: "plain text", template: "no actions here", expected: "no actions here"},
		{name: "substitution", template: "{{.Query.Q}}", expected: "foo"},
		{name: "substitution with spaces", template: "q={{ .Query.Q }}&x=1", expected: "q=foo&x=1"},
		{name: "conditional true", template: "{{if .Config.x}}A{{else}}B{{end}}", expected: "A"},
		{name: "conditional blank", template: "{{if .Config.blank}}A{{else}}B{{end}}", expected: "B"},
		{name: "conditional without else", template: "[{{ if .Config.blank }}A{{ end }}]", expected: "[]"},
		{name: "conditional on list", template: "{{if .Empty}}A{{else}}B{{end}}", expected: "B"},
		{name: "range", template: "{{range .Cats}}[{{.}}]{{end}}", expected: "[1][2]"},
		{name: "range empty", template: "x{{range .Empty}}[{{.}}]{{end}}y", expected: "xy"},
		{name: "range with outer variable", template: "{{range .Cats}}{{.Query.Q}}{{.}};{{end}}", expected: "foo1;foo2;"},
		{
			name:     "nested range in conditional",
			template: "{{if .Config.x}}{{range .Cats}}c{{.}}{{end}}{{else}}none{{end}}",
			expected: "c1c2",
		},
		{
			name:     "nested ranges",
			template: "{{range .Outer}}{{range .Cats}}{{.}}{{end}}|{{end}}",
			expected: "12|12|",
		},
		{name: "list substitution", template: "{{.Cats}}", expected: "1,2"},
		{name: "join", template: `{{ join .Cats "+" }}`, expected: "1+2"},
		{name: "re_replace", template: `{{ re_replace .Keywords "[^a-z0-9]+" "%" }}`, expected: "the%show%s01"},
		{name: "trim markers", template: "a  {{- .Query.Q -}}  \n b", expected: "afoob"},
		{name: "dash is not a trim marker without space", template: "{{.Config.sitelink}}x", expected: "https://tracker.example/x"},
		{name: "braces inside strings", template: `{{ join .Cats "}}" }}`, expected: "1}}2"},
	}

	ctx := testContext()
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			out, err := Render(test.template, ctx)
			require.NoError(t, err)
			require.Equal(t, test.expected, out)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		err      error
	}{
		{name: "undefined variable", template: "{{.Query.Missing}}", err: ErrUndefinedVariable},
		{name: "undefined in conditional", template: "{{if .Nope}}A{{end}}", err: ErrUndefinedVariable},
		{name: "dot outside of range", template: "{{.}}", err: ErrUndefinedVariable},
		{name: "comparison", template: "{{if eq .Config.x \"yes\"}}A{{end}}", err: ErrUnsupportedExpression},
		{name: "and", template: "{{if and .Config.x .Query.Q}}A{{end}}", err: ErrUnsupportedExpression},
		{name: "else if", template: "{{if .Config.x}}A{{else if .Query.Q}}B{{end}}", err: ErrUnsupportedExpression},
		{name: "pipeline", template: "{{ .Query.Q | printf }}", err: ErrUnsupportedExpression},
		{name: "unknown function", template: "{{ printf .Query.Q }}", err: ErrUnsupportedExpression},
		{name: "number literal", template: "{{ 1 }}", err: ErrUnsupportedExpression},
		{name: "unclosed action", template: "{{ .Query.Q ", err: ErrSyntax},
		{name: "missing end", template: "{{if .Config.x}}A", err: ErrSyntax},
		{name: "stray end", template: "A{{end}}", err: ErrSyntax},
		{name: "bad regex", template: `{{ re_replace .Query.Q "(" "" }}`, err: ErrSyntax},
	}

	ctx := testContext()
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			out, err := Render(test.template, ctx)
			require.ErrorIs(t, err, test.err)
			require.Empty(t, out)

			var tmplErr *Error
			require.ErrorAs(t, err, &tmplErr)
			require.Equal(t, test.template, tmplErr.Template)
		})
	}
}

func TestContextIsCopied(t *testing.T) {
	base := NewContext(map[string]Value{"Query.Q": String("foo")})
	derived := base.With(map[string]Value{".Query.Q": String("bar"), ".Extra": String("1")})

	out, err := Render("{{.Query.Q}}", base)
	require.NoError(t, err)
	require.Equal(t, "foo", out)

	out, err = Render("{{.Query.Q}}{{.Extra}}", derived)
	require.NoError(t, err)
	require.Equal(t, "bar1", out)

	_, err = Render("{{.Extra}}", base)
	require.ErrorIs(t, err, ErrUndefinedVariable)
}

func TestParseOnce(t *testing.T) {
	parsed, err := Parse("{{range .Cats}}cat[]={{.}}&{{end}}")
	require.NoError(t, err)

	first, err := parsed.Execute(NewContext(map[string]Value{"Cats": List("5")}))
	require.NoError(t, err)
	require.Equal(t, "cat[]=5&", first)

	second, err := parsed.Execute(NewContext(map[string]Value{"Cats": List("7", "8")}))
	require.NoError(t, err)
	require.Equal(t, "cat[]=7&cat[]=8&", second)
}
