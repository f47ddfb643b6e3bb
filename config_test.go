package notesql

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestConfigLoading(t *testing.T) {
	t.Run("LoadDefaultConfig", func(t *testing.T) {
		// Test loading default config when file doesn't exist
		config, err := LoadConfig("nonexistent.yaml")
		assert.NoError(t, err)
		assert.NotZero(t, config)
		assert.Equal(t, "/vault/secrets", config.SecretsDir)
		assert.Equal(t, "info", config.Log.Level)
		assert.Equal(t, "pip install {package}", config.Packages.InstallCommand)
		assert.Equal(t, "http://localhost:7000/api", config.Sidecar.BaseURL)
		assert.Equal(t, "v0", config.Sidecar.Version)
		assert.Equal(t, 60*time.Second, config.Sidecar.RequestTimeout)
		assert.Equal(t, 500*time.Millisecond, config.Sidecar.DialTimeout)
		assert.Equal(t, 0, config.Query.Timeout)
		assert.Equal(t, 0, config.Query.MaxRows)
	})

	t.Run("LoadConfigFromFile", func(t *testing.T) {
		// Create temporary config file
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "test_config.yaml")

		configContent := `
secrets_dir: ./secrets
log:
  level: debug
  path: /tmp/kernel.log
packages:
  install_command: "uv pip install {package}"
  allow_autoinstall: false
sidecar:
  base_url: http://sidecar.internal:7000/api
  version: v1
  request_timeout: 30s
query:
  timeout: 120
  max_rows: 5000
`

		err := os.WriteFile(configPath, []byte(configContent), 0644)
		assert.NoError(t, err)

		config, err := LoadConfig(configPath)
		assert.NoError(t, err)
		assert.Equal(t, "./secrets", config.SecretsDir)
		assert.Equal(t, "debug", config.Log.Level)
		assert.Equal(t, "/tmp/kernel.log", config.Log.Path)
		assert.Equal(t, "uv pip install {package}", config.Packages.InstallCommand)
		assert.NotZero(t, config.Packages.AllowAutoinstall)
		assert.False(t, *config.Packages.AllowAutoinstall)
		assert.Equal(t, "http://sidecar.internal:7000/api", config.Sidecar.BaseURL)
		assert.Equal(t, "v1", config.Sidecar.Version)
		assert.Equal(t, 30*time.Second, config.Sidecar.RequestTimeout)
		assert.Equal(t, 120, config.Query.Timeout)
		assert.Equal(t, 5000, config.Query.MaxRows)
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "partial.yaml")

		configContent := `
log:
  level: warn
`

		err := os.WriteFile(configPath, []byte(configContent), 0644)
		assert.NoError(t, err)

		config, err := LoadConfig(configPath)
		assert.NoError(t, err)
		assert.Equal(t, "warn", config.Log.Level)
		assert.Equal(t, "/vault/secrets", config.SecretsDir)
		assert.Equal(t, "pip install {package}", config.Packages.InstallCommand)
		assert.Equal(t, "v0", config.Sidecar.Version)
		assert.Equal(t, 60*time.Second, config.Sidecar.RequestTimeout)
		assert.Zero(t, config.Packages.AllowAutoinstall)
	})
}

func TestEnvironmentVariableExpansion(t *testing.T) {
	t.Run("ExpandEnvVars", func(t *testing.T) {
		// Set test environment variables
		t.Setenv("TEST_SECRET_ROOT", "/run/secrets")
		t.Setenv("TEST_SIDECAR_HOST", "sidecar.internal")

		// Test ${VAR} format
		result := expandEnvVars("${TEST_SECRET_ROOT}/datasources")
		assert.Equal(t, "/run/secrets/datasources", result)

		// Test $VAR format
		result = expandEnvVars("http://$TEST_SIDECAR_HOST:7000/api")
		assert.Equal(t, "http://sidecar.internal:7000/api", result)
	})

	t.Run("ExpandConfigEnvVars", func(t *testing.T) {
		// Set test environment variables
		t.Setenv("SECRETS_DIR", "/run/secrets")
		t.Setenv("SIDECAR_PORT", "7700")

		config := &Config{
			SecretsDir: "${SECRETS_DIR}",
			Sidecar: SidecarConfig{
				BaseURL: "http://localhost:${SIDECAR_PORT}/api",
			},
		}

		expandConfigEnvVars(config)

		assert.Equal(t, "/run/secrets", config.SecretsDir)
		assert.Equal(t, "http://localhost:7700/api", config.Sidecar.BaseURL)
	})

	t.Run("ExpandsInsideLoadedFile", func(t *testing.T) {
		t.Setenv("KERNEL_LOG_DIR", "/var/log/kernel")

		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "env.yaml")

		configContent := `
log:
  path: ${KERNEL_LOG_DIR}/notesql.log
`

		err := os.WriteFile(configPath, []byte(configContent), 0644)
		assert.NoError(t, err)

		config, err := LoadConfig(configPath)
		assert.NoError(t, err)
		assert.Equal(t, "/var/log/kernel/notesql.log", config.Log.Path)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := getDefaultConfig()

	assert.Equal(t, "/vault/secrets", config.SecretsDir)
	assert.Equal(t, "info", config.Log.Level)
	assert.Zero(t, config.Packages.AllowAutoinstall)
	assert.Equal(t, 0, config.Query.Timeout)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("FillsEmptyFields", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)

		assert.Equal(t, "/vault/secrets", config.SecretsDir)
		assert.Equal(t, "info", config.Log.Level)
		assert.Equal(t, "pip install {package}", config.Packages.InstallCommand)
		assert.Equal(t, "http://localhost:7000/api", config.Sidecar.BaseURL)
		assert.Equal(t, 60*time.Second, config.Sidecar.RequestTimeout)
		assert.Equal(t, 500*time.Millisecond, config.Sidecar.DialTimeout)
	})

	t.Run("KeepsExplicitValues", func(t *testing.T) {
		config := &Config{
			SecretsDir: "/custom/secrets",
			Log:        LogConfig{Level: "error"},
			Sidecar:    SidecarConfig{RequestTimeout: 5 * time.Second},
		}
		applyDefaults(config)

		assert.Equal(t, "/custom/secrets", config.SecretsDir)
		assert.Equal(t, "error", config.Log.Level)
		assert.Equal(t, 5*time.Second, config.Sidecar.RequestTimeout)
	})
}
