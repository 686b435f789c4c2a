package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds backend connection configuration
type ServerConfig struct {
	URL   string `mapstructure:"url"`   // Backend base URL
	Token string `mapstructure:"token"` // Bearer token
}

// CacheConfig holds local asset cache configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // Empty = memory-only
}

// ReaderConfig holds reading preferences
type ReaderConfig struct {
	WordsPerLocation int    `mapstructure:"words_per_location"`
	WordsPerMinute   int    `mapstructure:"words_per_minute"`
	DebounceSeconds  int    `mapstructure:"debounce_seconds"`
	Theme            string `mapstructure:"theme"`
	FontFamily       string `mapstructure:"font_family"`
	FontSizePct      int    `mapstructure:"font_size_pct"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		Reader: ReaderConfig{
			WordsPerLocation: 250,
			WordsPerMinute:   225,
			DebounceSeconds:  3,
			Theme:            "light",
			FontFamily:       "Georgia",
			FontSizePct:      120,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "readagain", "readagain.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "readagain", "readagain.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "readagain")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "readagain")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "readagain", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "readagain", "cache")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("READAGAIN")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.token", cfg.Server.Token)

	viper.Set("cache.dir", cfg.Cache.Dir)

	viper.Set("reader.words_per_location", cfg.Reader.WordsPerLocation)
	viper.Set("reader.words_per_minute", cfg.Reader.WordsPerMinute)
	viper.Set("reader.debounce_seconds", cfg.Reader.DebounceSeconds)
	viper.Set("reader.theme", cfg.Reader.Theme)
	viper.Set("reader.font_family", cfg.Reader.FontFamily)
	viper.Set("reader.font_size_pct", cfg.Reader.FontSizePct)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the server URL and token are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}
