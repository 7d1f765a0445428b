package forks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	require.Equal(t, Regolith, Next(Bedrock))
	require.Equal(t, Holocene, Next(Granite))
	require.Equal(t, None, Next(Latest))
}

func TestFrom(t *testing.T) {
	require.Equal(t, []Name{Granite, Holocene}, From(Granite))
	require.Panics(t, func() { From("isthmus") })
}

func TestIsValid(t *testing.T) {
	for _, f := range All {
		require.True(t, IsValid(f), f)
	}
	require.False(t, IsValid("jovian"))
	require.False(t, IsValid(None))
}
