package paddle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCharset(t *testing.T) {
	cs, err := ReadCharset(strings.NewReader("\uFEFFA\n\n B \nC\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, cs.Tokens)
	assert.Equal(t, 3, cs.Size())

	_, err = ReadCharset(strings.NewReader("\n  \n"))
	assert.Error(t, err)
}

func TestCharset_Token(t *testing.T) {
	cs := &Charset{Tokens: []string{"A", "B"}}
	tests := []struct {
		class int
		want  string
	}{
		{0, ""},
		{1, "A"},
		{2, "B"},
		{3, " "},
		{4, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cs.Token(tt.class), "class %d", tt.class)
	}
	assert.Equal(t, "AB A", cs.Decode([]int{1, 2, 3, 1}))

	var nilSet *Charset
	assert.Empty(t, nilSet.Token(1))
}

func TestLoadCharset(t *testing.T) {
	_, err := LoadCharset("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "keys.txt")
	_, err = LoadCharset(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("0\n1\n2\n"), 0o600))
	cs, err := LoadCharset(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cs.Token(3))
}
