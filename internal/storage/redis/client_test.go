package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	opts, err := ParseURL("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 0, opts.DB)

	opts, err = ParseURL("redis://:secret@cache:6380/3")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = ParseURL("redis://host:6379/notadb")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "pipeline:task:abc", Key("task", "abc"))
	assert.Equal(t, "pipeline:seq", Key("seq"))
}
