package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSwitch(t *testing.T) {
	v, err := parseSwitch("debug", "")
	require.NoError(t, err)
	require.Nil(t, v)

	for _, in := range []string{"on", "true", "1"} {
		v, err := parseSwitch("debug", in)
		require.NoError(t, err)
		require.True(t, *v)
	}
	v, err = parseSwitch("maintenance", "off")
	require.NoError(t, err)
	require.False(t, *v)

	_, err = parseSwitch("maintenance", "maybe")
	require.EqualError(t, err, `-maintenance must be on or off, got "maybe"`)

	require.Equal(t, "on", onOff(true))
	require.Equal(t, "off", onOff(false))
}
