package notesql

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the notesql kernel configuration
type Config struct {
	SecretsDir string         `yaml:"secrets_dir"`
	Log        LogConfig      `yaml:"log"`
	Packages   PackagesConfig `yaml:"packages"`
	Sidecar    SidecarConfig  `yaml:"sidecar"`
	Query      QueryConfig    `yaml:"query"`
}

// LogConfig represents structured logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Path  string `yaml:"path"`  // empty means stderr
}

// PackagesConfig controls on-the-fly driver package installation
type PackagesConfig struct {
	// InstallCommand is the command template used to install a missing
	// package; "{package}" is replaced with the package name.
	InstallCommand string `yaml:"install_command"`
	// AllowAutoinstall overrides the per-datasource autoinstall flag when
	// set. Pointer to distinguish between unset and false.
	AllowAutoinstall *bool `yaml:"allow_autoinstall"`
}

// SidecarConfig represents the file-sync sidecar endpoint
type SidecarConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Version        string        `yaml:"version"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// QueryConfig represents statement execution settings
type QueryConfig struct {
	Timeout int `yaml:"timeout"` // seconds, 0 means no timeout
	MaxRows int `yaml:"max_rows"`
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Check if config file exists
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		// Return default configuration if file doesn't exist
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&config)

	// Expand environment variables
	expandConfigEnvVars(&config)

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if config.Log.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[config.Log.Level] {
			return fmt.Errorf("%w: invalid log level '%s': must be one of debug, info, warn, error", ErrConfigValidation, config.Log.Level)
		}
	}

	if config.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must be non-negative, got %d", ErrConfigValidation, config.Query.Timeout)
	}

	if config.Query.MaxRows < 0 {
		return fmt.Errorf("%w: query.max_rows must be non-negative, got %d", ErrConfigValidation, config.Query.MaxRows)
	}

	if config.Sidecar.RequestTimeout < 0 {
		return fmt.Errorf("%w: sidecar.request_timeout must be non-negative, got %s", ErrConfigValidation, config.Sidecar.RequestTimeout)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		SecretsDir: "/vault/secrets",
		Log: LogConfig{
			Level: "info",
		},
		Packages: PackagesConfig{
			InstallCommand: "pip install {package}",
		},
		Sidecar: SidecarConfig{
			BaseURL:        "http://localhost:7000/api",
			Version:        "v0",
			RequestTimeout: 60 * time.Second,
			DialTimeout:    500 * time.Millisecond,
		},
		Query: QueryConfig{
			Timeout: 0,
			MaxRows: 0,
		},
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.SecretsDir == "" {
		config.SecretsDir = "/vault/secrets"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Packages.InstallCommand == "" {
		config.Packages.InstallCommand = "pip install {package}"
	}

	if config.Sidecar.BaseURL == "" {
		config.Sidecar.BaseURL = "http://localhost:7000/api"
	}

	if config.Sidecar.Version == "" {
		config.Sidecar.Version = "v0"
	}

	if config.Sidecar.RequestTimeout == 0 {
		config.Sidecar.RequestTimeout = 60 * time.Second
	}

	if config.Sidecar.DialTimeout == 0 {
		config.Sidecar.DialTimeout = 500 * time.Millisecond
	}
}

func loadEnvFiles() error {
	// Try to load .env file from current directory
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	// Pattern for ${VAR} format
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		return os.Getenv(varName)
	})

	// Pattern for $VAR format (word boundaries)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars recursively expands environment variables in config
func expandConfigEnvVars(config *Config) {
	config.SecretsDir = expandEnvVars(config.SecretsDir)
	config.Log.Path = expandEnvVars(config.Log.Path)
	config.Packages.InstallCommand = expandEnvVars(config.Packages.InstallCommand)
	config.Sidecar.BaseURL = expandEnvVars(config.Sidecar.BaseURL)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
