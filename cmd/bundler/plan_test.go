package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndices(t *testing.T) {
	got, err := parseIndices([]string{"3", "5-7", " 9 "})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 6, 7, 9}, got)

	for _, bad := range [][]string{nil, {"x"}, {"7-5"}, {"-1"}, {"250-256"}, {"1-x"}} {
		_, err := parseIndices(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/op")

	got, err := expandHome("~/.config/solana/id.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/op", ".config/solana/id.json"), got)

	got, err = expandHome("/keys/id.json")
	require.NoError(t, err)
	assert.Equal(t, "/keys/id.json", got)

	_, err = expandHome("")
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	_, err := parseKey("pool", "")
	assert.ErrorContains(t, err, "pool is required")

	_, err = parseKey("pool", "not-base58!")
	assert.Error(t, err)

	pk, err := parseKey("pool", "Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE")
	require.NoError(t, err)
	assert.Equal(t, "Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE", pk.String())
}
