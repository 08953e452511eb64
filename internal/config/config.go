package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig    `mapstructure:"server"`
	Security     SecurityConfig  `mapstructure:"security"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	RPCRateLimit RateLimitConfig `mapstructure:"rpc_rate_limit"`
	RPC          RPCConfig       `mapstructure:"rpc"`
	Presale      PresaleConfig   `mapstructure:"presale"`
	Logging      LoggingConfig   `mapstructure:"logging"`
	Storage      StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SecurityConfig struct {
	AdminPassword  string        `mapstructure:"admin_password"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window"`
	MaxRequests   int           `mapstructure:"max_requests"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RPCConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PresaleConfig struct {
	TreasuryWallet string        `mapstructure:"treasury_wallet"`
	ValidAmounts   []float64     `mapstructure:"valid_amounts"`
	TargetSOL      float64       `mapstructure:"target_sol"`
	ScanInterval   time.Duration `mapstructure:"scan_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxBatches     int           `mapstructure:"max_batches"`
	StatsCacheTTL  time.Duration `mapstructure:"stats_cache_ttl"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

type StorageConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	ContributionsDir string `mapstructure:"contributions_dir"`
	LogsDir          string `mapstructure:"logs_dir"`
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate loads the configuration, creating a default config file with a
// generated admin password when none exists yet.
func LoadOrCreate() (*Config, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "./config.yaml"
	}

	if _, err := os.Stat(configFile); err == nil {
		cfg, err := Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		return cfg, nil
	}

	fmt.Println("\nConfig file not found, creating default config...")

	cfg := &Config{}
	setDefaults(cfg)

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate admin password: %w", err)
	}
	cfg.Security.AdminPassword = password
	fmt.Printf("\nGenerated admin password: %s\n", password)
	fmt.Println("  IMPORTANT: save this password, it is required for the admin dashboard.")

	if err := SaveConfig(cfg); err != nil {
		fmt.Printf("\nWarning: failed to save config file: %v\n", err)
		fmt.Println("  Continuing with in-memory config...")
	} else {
		fmt.Println("\nConfig file created: config.yaml")
	}

	return cfg, nil
}

// SaveConfig writes the configuration back to the config file.
func SaveConfig(cfg *Config) error {
	viper.Set("server", cfg.Server)
	viper.Set("security", cfg.Security)
	viper.Set("rate_limit", cfg.RateLimit)
	viper.Set("rpc_rate_limit", cfg.RPCRateLimit)
	viper.Set("rpc", cfg.RPC)
	viper.Set("presale", cfg.Presale)
	viper.Set("logging", cfg.Logging)
	viper.Set("storage", cfg.Storage)

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPath = "./config.yaml"
	}

	return viper.WriteConfigAs(configPath)
}

// generatePassword returns a random URL-safe password.
func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Security.TokenTTL == 0 {
		cfg.Security.TokenTTL = 24 * time.Hour
	}

	// Login brute-force budget: 5 attempts per 15 minutes per client.
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 15 * time.Minute
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 5
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = time.Hour
	}

	// The RPC proxy serves normal wallet traffic, so its budget is much
	// looser than the login one.
	if cfg.RPCRateLimit.Window == 0 {
		cfg.RPCRateLimit.Window = time.Minute
	}
	if cfg.RPCRateLimit.MaxRequests == 0 {
		cfg.RPCRateLimit.MaxRequests = 60
	}
	if cfg.RPCRateLimit.SweepInterval == 0 {
		cfg.RPCRateLimit.SweepInterval = time.Hour
	}

	if len(cfg.RPC.Endpoints) == 0 {
		cfg.RPC.Endpoints = []string{
			"https://api.mainnet-beta.solana.com",
			"https://rpc.ankr.com/solana",
			"https://solana.api.onfinality.io/public",
		}
	}
	if cfg.RPC.Timeout == 0 {
		cfg.RPC.Timeout = 30 * time.Second
	}

	if len(cfg.Presale.ValidAmounts) == 0 {
		cfg.Presale.ValidAmounts = []float64{0.25, 0.5, 1.0, 2.0}
	}
	if cfg.Presale.TargetSOL == 0 {
		cfg.Presale.TargetSOL = 24.25
	}
	if cfg.Presale.ScanInterval == 0 {
		cfg.Presale.ScanInterval = 5 * time.Minute
	}
	if cfg.Presale.BatchSize == 0 {
		cfg.Presale.BatchSize = 50
	}
	if cfg.Presale.MaxBatches == 0 {
		cfg.Presale.MaxBatches = 20
	}
	if cfg.Presale.StatsCacheTTL == 0 {
		cfg.Presale.StatsCacheTTL = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/presale-api.log"
	}
	cfg.Logging.ConsoleOutput = true
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.ContributionsDir == "" {
		cfg.Storage.ContributionsDir = "./data/contributions"
	}
	if cfg.Storage.LogsDir == "" {
		cfg.Storage.LogsDir = "./logs"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if err := validateRateLimit("rate_limit", cfg.RateLimit); err != nil {
		return err
	}
	if err := validateRateLimit("rpc_rate_limit", cfg.RPCRateLimit); err != nil {
		return err
	}
	if len(cfg.RPC.Endpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	return nil
}

func validateRateLimit(name string, cfg RateLimitConfig) error {
	if cfg.Window <= 0 {
		return fmt.Errorf("invalid %s window: %s", name, cfg.Window)
	}
	if cfg.MaxRequests <= 0 {
		return fmt.Errorf("invalid %s max requests: %d", name, cfg.MaxRequests)
	}
	// A non-positive interval would panic inside time.NewTicker when the
	// sweeper starts.
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("invalid %s sweep interval: %s", name, cfg.SweepInterval)
	}
	return nil
}
