package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the arena server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	HTTP            HTTPConfig      `mapstructure:"http"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

// WebSocketConfig configures the event feed listener.
type WebSocketConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures optional postgres persistence. An empty URL
// runs the engine fully in memory.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// AuthConfig seeds the authorizer.
type AuthConfig struct {
	AdminIdentity string `mapstructure:"admin_identity"`
	// AdminTokenHash is a bcrypt hash of the bearer token accepted on
	// administrative endpoints. Empty disables admin HTTP access.
	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

// GameConfig holds the tunable game and economy constants.
type GameConfig struct {
	GenesisSupply     uint64        `mapstructure:"genesis_supply"`
	BattleReward      uint64        `mapstructure:"battle_reward"`
	TrainExperience   uint64        `mapstructure:"train_experience"`
	TrainStaminaCost  int           `mapstructure:"train_stamina_cost"`
	BattleStaminaCost int           `mapstructure:"battle_stamina_cost"`
	RestRegenInterval time.Duration `mapstructure:"rest_regen_interval"`
	RestRegenAmount   int           `mapstructure:"rest_regen_amount"`
	StarterSpecies    []uint64      `mapstructure:"starter_species"`
}

// Load reads configuration from the given file path, applying defaults and
// ARENA_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.websocket.address", ":8081")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)

	v.SetDefault("auth.admin_identity", "arena-admin")
	v.SetDefault("auth.admin_token_hash", "")

	v.SetDefault("game.genesis_supply", uint64(1_000_000))
	v.SetDefault("game.battle_reward", uint64(10))
	v.SetDefault("game.train_experience", uint64(50))
	v.SetDefault("game.train_stamina_cost", 10)
	v.SetDefault("game.battle_stamina_cost", 10)
	v.SetDefault("game.rest_regen_interval", time.Minute)
	v.SetDefault("game.rest_regen_amount", 5)
	v.SetDefault("game.starter_species", []uint64{1, 4, 7, 25})
}

func (c *Config) validate() error {
	if c.Auth.AdminIdentity == "" {
		return fmt.Errorf("auth.admin_identity must not be empty")
	}
	if c.Game.TrainStaminaCost <= 0 {
		return fmt.Errorf("game.train_stamina_cost must be positive")
	}
	if c.Game.BattleStaminaCost <= 0 {
		return fmt.Errorf("game.battle_stamina_cost must be positive")
	}
	if c.Game.RestRegenAmount <= 0 {
		return fmt.Errorf("game.rest_regen_amount must be positive")
	}
	if c.Game.RestRegenInterval <= 0 {
		return fmt.Errorf("game.rest_regen_interval must be positive")
	}
	if len(c.Game.StarterSpecies) == 0 {
		return fmt.Errorf("game.starter_species must not be empty")
	}
	return nil
}
