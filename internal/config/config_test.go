package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/battlearena/arena-server-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "arena-admin", cfg.Auth.AdminIdentity)
	assert.Equal(t, uint64(1_000_000), cfg.Game.GenesisSupply)
	assert.Equal(t, uint64(10), cfg.Game.BattleReward)
	assert.Equal(t, uint64(50), cfg.Game.TrainExperience)
	assert.Equal(t, time.Minute, cfg.Game.RestRegenInterval)
	assert.Equal(t, []uint64{1, 4, 7, 25}, cfg.Game.StarterSpecies)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  http:
    address: ":9090"
logging:
  level: debug
  format: json
game:
  battle_reward: 25
  starter_species: [1, 7]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTP.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, uint64(25), cfg.Game.BattleReward)
	assert.Equal(t, []uint64{1, 7}, cfg.Game.StarterSpecies)
	// Defaults still apply for untouched keys.
	assert.Equal(t, ":8081", cfg.Server.WebSocket.Address)
	assert.Equal(t, uint64(1_000_000), cfg.Game.GenesisSupply)
}

func TestLoadRejectsInvalidConstants(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
game:
  train_stamina_cost: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}
