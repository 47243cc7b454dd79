package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Lobby   LobbyConfig   `mapstructure:"lobby"`
	Sync    SyncConfig    `mapstructure:"sync"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI       string `mapstructure:"uri"`
	Database  string `mapstructure:"database"`
	GamesColl string `mapstructure:"games_collection"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URI      string `mapstructure:"uri"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig holds the settings for signed player session tokens.
// Tokens bind a player to a game; they do not protect the game code
// itself, which stays guessable on purpose.
type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration int    `mapstructure:"expiration"` // in hours
}

// RulesConfig holds the tunable table rules. Defaults reproduce the
// classic behavior; jail sentence lengths are deliberately exposed so
// tables can play shorter or longer sentences.
type RulesConfig struct {
	InitialBalance      int `mapstructure:"initial_balance"`
	PassStartBonus      int `mapstructure:"pass_start_bonus"`
	LandStartBonus      int `mapstructure:"land_start_bonus"`
	HouseCost           int `mapstructure:"house_cost"`
	JailFee             int `mapstructure:"jail_fee"`
	ShortJailSentence   int `mapstructure:"short_jail_sentence"`
	LongJailSentence    int `mapstructure:"long_jail_sentence"`
	SmallGameMaxPlayers int `mapstructure:"small_game_max_players"`
}

// LobbyConfig holds lobby and lifecycle configuration
type LobbyConfig struct {
	MaxPlayers            int `mapstructure:"max_players"`
	MaxBots               int `mapstructure:"max_bots"`
	MinimumPlayersToStart int `mapstructure:"minimum_players_to_start"`
	DisconnectionTimeout  int `mapstructure:"disconnection_timeout"` // in seconds
	IdleGameExpiry        int `mapstructure:"idle_game_expiry"`      // in hours
}

// SyncConfig holds state-synchronization configuration
type SyncConfig struct {
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	BotThinkDelay    time.Duration `mapstructure:"bot_think_delay"`
}

// Load reads configuration from a file or environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/boulevard-backend")

	// Environment variables
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; we'll just use environment and defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)

	// MongoDB defaults
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "boulevard")
	viper.SetDefault("mongodb.games_collection", "games")

	// Redis defaults
	viper.SetDefault("redis.uri", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Session token defaults
	viper.SetDefault("session.secret", "replace-with-secure-secret")
	viper.SetDefault("session.expiration", 24)

	// Table rule defaults
	viper.SetDefault("rules.initial_balance", 1500)
	viper.SetDefault("rules.pass_start_bonus", 200)
	viper.SetDefault("rules.land_start_bonus", 250)
	viper.SetDefault("rules.house_cost", 50)
	viper.SetDefault("rules.jail_fee", 50)
	viper.SetDefault("rules.short_jail_sentence", 2)
	viper.SetDefault("rules.long_jail_sentence", 3)
	viper.SetDefault("rules.small_game_max_players", 3)

	// Lobby defaults
	viper.SetDefault("lobby.max_players", 8)
	viper.SetDefault("lobby.max_bots", 3)
	viper.SetDefault("lobby.minimum_players_to_start", 2)
	viper.SetDefault("lobby.disconnection_timeout", 180) // 3 minutes
	viper.SetDefault("lobby.idle_game_expiry", 24)

	// Sync defaults
	viper.SetDefault("sync.snapshot_interval", 5*time.Second)
	viper.SetDefault("sync.bot_think_delay", 1200*time.Millisecond)
}
