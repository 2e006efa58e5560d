package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSample(t *testing.T) {
	def, err := ParseFile("testdata/sample.yml")
	require.NoError(t, err)

	require.Equal(t, "sampletracker", def.Key())
	require.Equal(t, "https://sample.example/", def.BaseURL())
	require.Equal(t, 2.0, def.RequestDelay)
	require.True(t, def.HasLogin())
	require.True(t, def.SupportsMode("tv-search"))
	require.False(t, def.SupportsMode("movie-search"))

	require.Len(t, def.Caps.CategoryMappings, 2)
	require.Equal(t, "TV/HD", def.Caps.CategoryMappings[1].Cat)
	require.True(t, def.Caps.CategoryMappings[1].Default)

	freeleech, ok := def.Setting("freeleech")
	require.True(t, ok)
	require.Equal(t, SETTING_CHECKBOX, freeleech.Type)
	require.Equal(t, "false", freeleech.Default)

	sort, ok := def.Setting("sort")
	require.True(t, ok)
	require.Equal(t, Pairs{{Key: "time", Value: "created"}, {Key: "seeders", Value: "seeders"}}, sort.Options)

	require.Equal(t, LOGIN_FORM, def.Login.Method)
	keeplogged, ok := def.Login.Inputs.Get("keeplogged")
	require.True(t, ok)
	require.Equal(t, "1", keeplogged)
	require.Equal(t, "div.error p", def.Login.Error[0].Message.Selector)
	require.Equal(t, "index.php", def.Login.Test.Path)

	header, ok := def.Search.Headers.Get("X-Requested-With")
	require.True(t, ok)
	require.Equal(t, "XMLHttpRequest", header)

	require.Equal(t, "$raw", def.Search.Inputs[0].Key)
	require.Equal(t, []SearchPath{{Path: "torrents.php"}}, def.SearchPaths())
	require.Equal(t, []string{"[^a-zA-Z0-9]+", " "}, def.Search.KeywordsFilters[0].Args)
	require.Equal(t, 1, def.Search.Rows.After)

	names := make([]string, 0, len(def.Search.Fields))
	for _, field := range def.Search.Fields {
		names = append(names, field.Name)
	}
	require.Equal(t, []string{
		"category", "title", "download", "size", "date",
		"seeders", "leechers", "downloadvolumefactor", "uploadvolumefactor",
	}, names)

	category, ok := def.Search.Fields.Get("category")
	require.True(t, ok)
	require.Equal(t, []Filter{{Name: "querystring", Args: []string{"filter_cat"}}}, category.Filters)

	dvf, ok := def.Search.Fields.Get("downloadvolumefactor")
	require.True(t, ok)
	require.Equal(t, Pairs{{Key: `img[alt="Freeleech"]`, Value: "0"}, {Key: "*", Value: "1"}}, dvf.Case)

	uvf, ok := def.Search.Fields.Get("uploadvolumefactor")
	require.True(t, ok)
	require.Equal(t, "1", uvf.Text)
}

func TestFilterArgs(t *testing.T) {
	testCases := []struct {
		name     string
		document string
		expected []string
	}{
		{name: "absent", document: "name: tolower", expected: nil},
		{name: "string", document: "name: append\nargs: \" GB\"", expected: []string{" GB"}},
		{name: "integer", document: "name: split\nargs: [\"|\", -1]", expected: []string{"|", "-1"}},
		{name: "null", document: "name: trim\nargs: ~", expected: nil},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			filter, err := decodeFilter(test.document)
			require.NoError(t, err)
			require.Equal(t, test.expected, filter.Args)
		})
	}
}

func TestValidate(t *testing.T) {
	minimal := func() Definition {
		return Definition{
			Site:  "minimal",
			Links: []string{"https://minimal.example"},
			Search: Search{
				Path: "browse",
				Rows: Rows{Selector: "tr.row"},
				Fields: Fields{
					{Name: "title", Block: SelectorBlock{Selector: "td.name"}},
				},
			},
		}
	}

	testCases := []struct {
		name   string
		mutate func(d *Definition)
		where  string
		err    error
	}{
		{name: "valid", mutate: func(d *Definition) {}},
		{
			name:   "no key",
			mutate: func(d *Definition) { d.Site = "" },
			where:  "id",
			err:    ErrMissingBlock,
		},
		{
			name:   "no links",
			mutate: func(d *Definition) { d.Links = nil },
			where:  "links",
			err:    ErrMissingBlock,
		},
		{
			name:   "no rows selector",
			mutate: func(d *Definition) { d.Search.Rows.Selector = "" },
			where:  "search.rows",
			err:    ErrMissingBlock,
		},
		{
			name:   "no fields",
			mutate: func(d *Definition) { d.Search.Fields = nil },
			where:  "search.fields",
			err:    ErrMissingBlock,
		},
		{
			name:   "unknown login method",
			mutate: func(d *Definition) { d.Login = &Login{Method: "oauth", Path: "login"} },
			where:  "login.method",
			err:    ErrInvalidValue,
		},
		{
			name:   "cookie login without path",
			mutate: func(d *Definition) { d.Login = &Login{Method: LOGIN_COOKIE} },
		},
		{
			name: "broken field selector",
			mutate: func(d *Definition) {
				d.Search.Fields[0].Block.Selector = "td[name"
			},
			where: "search.fields.title",
			err:   ErrInvalidSelector,
		},
		{
			name: "root anchored selector",
			mutate: func(d *Definition) {
				d.Search.Fields[0].Block.Selector = ":root div.header > h1"
			},
		},
		{
			name: "broken case selector",
			mutate: func(d *Definition) {
				d.Search.Fields[0].Block.Case = Pairs{{Key: "img[", Value: "1"}}
			},
			where: "search.fields.title",
			err:   ErrInvalidSelector,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			def := minimal()
			test.mutate(&def)
			err := def.Validate()
			if test.err == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, test.err)
			var defErr *Error
			require.True(t, errors.As(err, &defErr))
			require.Equal(t, test.where, defErr.Where)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	sample, err := os.ReadFile("testdata/sample.yml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.yml"), sample, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("site: broken\nlinks: [https://b.example]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	defs, err := LoadDir(dir)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingBlock)
	require.Len(t, defs, 1)
	require.Contains(t, defs, "sampletracker")
}

func TestSearchPaths(t *testing.T) {
	def := Definition{Search: Search{Path: "browse.php"}}
	require.Equal(t, []SearchPath{{Path: "browse.php"}}, def.SearchPaths())
	require.True(t, def.SupportsMode("search"))
	require.False(t, def.HasLogin())
}
