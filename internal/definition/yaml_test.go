package definition

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeFilter(document string) (Filter, error) {
	var filter Filter
	err := yaml.Unmarshal([]byte(document), &filter)
	return filter, err
}

func TestPairsOrder(t *testing.T) {
	var pairs Pairs
	err := yaml.Unmarshal([]byte("z: 1\na: two\nm: [x, y]\nn: ~\n"), &pairs)
	require.NoError(t, err)
	require.Equal(t, Pairs{
		{Key: "z", Value: "1"},
		{Key: "a", Value: "two"},
		{Key: "m", Value: "x, y"},
		{Key: "n", Value: ""},
	}, pairs)
}

func TestFilterWithoutName(t *testing.T) {
	var filter Filter
	err := yaml.Unmarshal([]byte("args: 1"), &filter)
	require.Error(t, err)
}

func TestFilterNestedArgs(t *testing.T) {
	var filter Filter
	err := yaml.Unmarshal([]byte("name: replace\nargs: [[a], b]"), &filter)
	require.Error(t, err)
}
