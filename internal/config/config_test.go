package config

import (
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(discard{})
	return fs
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestParse_Defaults(t *testing.T) {
	cfg, err := parseWithFlagSet(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Folders)
	assert.Equal(t, 100*time.Millisecond, cfg.Tick)
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh)
	assert.Equal(t, 10, cfg.MinSize)
	assert.Equal(t, 500, cfg.MaxSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_Flags(t *testing.T) {
	cfg, err := parseWithFlagSet(newFlagSet(), []string{
		"-folders", "3", "-tick", "10ms", "-min-size", "1", "-max-size", "9", "-ws", ":9000", "-ui",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Folders)
	assert.Equal(t, 10*time.Millisecond, cfg.Tick)
	assert.Equal(t, 1, cfg.MinSize)
	assert.Equal(t, 9, cfg.MaxSize)
	assert.Equal(t, ":9000", cfg.WSAddr)
	assert.True(t, cfg.UI)
}

func TestParse_EnvFallback(t *testing.T) {
	t.Setenv("FOLDERSIM_FOLDERS", "7")
	t.Setenv("FOLDERSIM_TICK", "20ms")
	t.Setenv("FOLDERSIM_LOG_LEVEL", "warn")

	cfg, err := parseWithFlagSet(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Folders)
	assert.Equal(t, 20*time.Millisecond, cfg.Tick)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParse_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("FOLDERSIM_FOLDERS", "7")

	cfg, err := parseWithFlagSet(newFlagSet(), []string{"-folders", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Folders)
}

func TestParse_BadEnv(t *testing.T) {
	t.Setenv("FOLDERSIM_TICK", "soon")

	_, err := parseWithFlagSet(newFlagSet(), nil)
	assert.True(t, errors.Is(err, errInvalid))
}

func TestValidate(t *testing.T) {
	base, err := parseWithFlagSet(newFlagSet(), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no folders", func(c *Config) { c.Folders = 0 }},
		{"too many folders", func(c *Config) { c.Folders = 65 }},
		{"zero tick", func(c *Config) { c.Tick = 0 }},
		{"zero idle wait", func(c *Config) { c.IdleWait = 0 }},
		{"negative idle wait", func(c *Config) { c.IdleWait = -time.Second }},
		{"idle wait below floor", func(c *Config) { c.IdleWait = time.Nanosecond }},
		{"zero min size", func(c *Config) { c.MinSize = 0 }},
		{"inverted sizes", func(c *Config) { c.MinSize, c.MaxSize = 50, 10 }},
		{"no files", func(c *Config) { c.MaxFiles = 0 }},
		{"negative clients", func(c *Config) { c.Clients = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), errInvalid)
		})
	}
}

func TestOptionsMapping(t *testing.T) {
	cfg, err := parseWithFlagSet(newFlagSet(), []string{"-folders", "4", "-max-files", "3", "-seed", "9"})
	require.NoError(t, err)

	so := cfg.SimOptions()
	assert.Equal(t, 4, so.Folders)
	assert.Equal(t, cfg.Tick, so.TickInterval)

	g := cfg.GeneratorOptions()
	assert.Equal(t, 3, g.MaxFiles)
	assert.Equal(t, int64(9), g.Seed)
}

func TestParse_RejectsTinyIdleWait(t *testing.T) {
	_, err := parseWithFlagSet(newFlagSet(), []string{"-idle-wait", "1ns"})
	assert.ErrorIs(t, err, errInvalid)

	cfg, err := parseWithFlagSet(newFlagSet(), []string{"-idle-wait", "1ms"})
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, cfg.IdleWait)
	assert.Equal(t, time.Millisecond, cfg.SimOptions().IdleWait)
}
