package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eegrasp/graspci/internal/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "graspci.yaml"

// envFiles are loaded in order; values already present in the environment win.
var envFiles = []string{".env", ".env.local"}

// Load reads, expands, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewError(errors.CategoryConfig, "configuration file not found").
				WithContext("path", path).
				WithCause(err).
				UserAction().
				Build()
		}
		return nil, errors.ConfigError("failed to read configuration").WithCause(err).WithContext("path", path).Build()
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := loadEnvFiles(); err != nil {
			return nil, err
		}
		return Default()
	}
	return Load(path)
}

// Parse expands ${VAR} references in data and decodes it into a validated Config.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}
	applyDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration built purely from defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	example := Config{
		Forge:   ForgeConfig{Token: "${GITHUB_TOKEN}", Repository: "${GITHUB_REPOSITORY}"},
		Release: ReleaseConfig{Token: "${PYPI_API_TOKEN}"},
	}
	applyDefaults(&example)

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.InternalError("failed to marshal example configuration").WithCause(err).Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.FileSystemError("failed to create configuration directory").WithCause(err).WithContext("path", dir).Build()
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.FileSystemError("failed to write configuration").WithCause(err).WithContext("path", path).Build()
	}
	return nil
}

// Resolve returns p joined to the project root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

func loadEnvFiles() error {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.ConfigError(fmt.Sprintf("failed to load %s", f)).WithCause(err).WithContext("path", f).Build()
		}
	}
	return nil
}
