package categories

import (
	"testing"

	"trackscrape/internal/definition"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name     string
		expected int
		ok       bool
	}{
		{name: "TV/HD", expected: 5040, ok: true},
		{name: "tv/hd", expected: 5040, ok: true},
		{name: "2000", expected: 2000, ok: true},
		{name: "Movie/HD", expected: 2040, ok: true},
		{name: "Audio/Audiobooks", expected: 3030, ok: true},
		{name: "Knitting", ok: false},
		{name: "9999", ok: false},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			category, ok := Resolve(test.name)
			require.Equal(t, test.ok, ok)
			if ok {
				require.Equal(t, test.expected, category.ID)
			}
		})
	}
}

func TestMapper(t *testing.T) {
	mapper, err := NewMapper("sample", definition.Capabilities{
		Categories: definition.Pairs{{Key: "1", Value: "Movies"}},
		CategoryMappings: []definition.CategoryMapping{
			{ID: "5", Cat: "TV/HD", Desc: "TV HD", Default: true},
			{ID: "6", Cat: "TV/SD", Desc: "TV SD"},
			{ID: "7", Cat: "TV/HD", Desc: "TV Packs"},
			{ID: "9", Cat: "Movies/HD", Desc: "Movies HD"},
		},
	})
	require.NoError(t, err)
	require.Len(t, mapper.Mappings(), 5)

	require.Equal(t, []int{5040}, mapper.MapTrackerCat("5"))
	require.Equal(t, []int{5040}, mapper.MapTrackerCat(" 7 "))
	require.Nil(t, mapper.MapTrackerCat("42"))
	require.Equal(t, []int{5030}, mapper.MapTrackerCatDesc("tv sd"))

	require.Equal(t, []string{"5", "7"}, mapper.MapToTracker([]int{5040}))
	require.Equal(t, []string{"5", "6", "7"}, mapper.MapToTracker([]int{5000}))
	require.Equal(t, []string{"1", "9", "6"}, mapper.MapToTracker([]int{2000, 5030}))
	require.Equal(t, []string{"5"}, mapper.Defaults())
}

func TestMapperUnknownCategory(t *testing.T) {
	_, err := NewMapper("sample", definition.Capabilities{
		CategoryMappings: []definition.CategoryMapping{{ID: "3", Cat: "Knitting"}},
	})
	require.ErrorIs(t, err, definition.ErrInvalidValue)

	var defErr *definition.Error
	require.ErrorAs(t, err, &defErr)
	require.Equal(t, "caps.categorymappings.3", defErr.Where)
}
