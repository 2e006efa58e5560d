package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	node, err := html.Parse(strings.NewReader(`<div>Hello <b>tracker</b> world</div>`))
	require.NoError(t, err)
	require.Equal(t, "Hello tracker world", GetText(node))
}

func TestNormalizeSpace(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  Some\n\tRelease   Name ", expected: "Some Release Name"},
		{input: "plain", expected: "plain"},
		{input: "\u0000x\u0007y", expected: "xy"},
		{input: "   ", expected: ""},
	}
	for _, row := range table {
		require.Equal(t, row.expected, NormalizeSpace(row.input))
	}
}

func TestDecodeDeclaredEncoding(t *testing.T) {
	// "Привет" in windows-1251
	body := []byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2}
	decoded, err := Decode(body, "windows-1251", "")
	require.NoError(t, err)
	require.Equal(t, "Привет", string(decoded))
}

func TestDecodeSniffed(t *testing.T) {
	decoded, err := Decode([]byte("<html><body>plain</body></html>"), "", "text/html; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, "<html><body>plain</body></html>", string(decoded))
}

func TestDecodeUnknownEncoding(t *testing.T) {
	_, err := Decode([]byte("x"), "not-an-encoding", "")
	require.Error(t, err)
}
