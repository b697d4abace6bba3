package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	require.Equal(t, 1500*time.Millisecond, d.Duration)

	require.Error(t, d.UnmarshalText([]byte("not a duration")))
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	in := NewDuration(2 * time.Second)

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.Equal(t, `"2s"`, string(data))

	var out Duration
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestDuration_YAML(t *testing.T) {
	var out struct {
		Backoff Duration `yaml:"backoff"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("backoff: 250ms\n"), &out))
	require.Equal(t, 250*time.Millisecond, out.Backoff.Duration)
}
