package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToLowerWithTrim(t *testing.T) {
	require.Equal(t, "mainnet", ToLowerWithTrim("  MainNet "))
	require.Equal(t, "regtest", ToLowerWithTrim("regtest"))
	require.Equal(t, "", ToLowerWithTrim("   "))
}
