package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	cfg := Load("")
	assert.Equal(t, 5, cfg.TickMS)
	assert.Equal(t, "roundrobin", cfg.Policy)
	assert.Equal(t, 2, cfg.Cores)

	cfg = Load("does-not-exist.yml")
	assert.Equal(t, 5, cfg.TickMS)
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
tick_ms: -3
ticks: 50
cores: 4
policy: lottery
tasks:
  - name: housekeeping
    work_ticks: 10
  - name: rt
    period: 8
    core: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Load(path)
	assert.Equal(t, 5, cfg.TickMS) // clamped
	assert.Equal(t, 50, cfg.Ticks)
	assert.Equal(t, 4, cfg.Cores)
	assert.Equal(t, "roundrobin", cfg.Policy) // unknown policy falls back

	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, "housekeeping", cfg.Tasks[0].Name)
	assert.Nil(t, cfg.Tasks[0].Period)
	require.NotNil(t, cfg.Tasks[1].Period)
	assert.Equal(t, uint32(8), *cfg.Tasks[1].Period)
	require.NotNil(t, cfg.Tasks[1].Core)
	assert.Equal(t, 2, *cfg.Tasks[1].Core)
}
