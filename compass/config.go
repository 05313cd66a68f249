package compass

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's YAML configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	DownloadDir string `yaml:"download_dir"`
	CatalogPath string `yaml:"catalog_path,omitempty"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`

	// Tool integration toggles, applied after successful downloads.
	IntegrateOllama   bool `yaml:"integrate_ollama"`
	IntegrateLMStudio bool `yaml:"integrate_lmstudio"`

	// BenchmarkURL is the local inference server used by the benchmark
	// endpoint.
	BenchmarkURL string `yaml:"benchmark_url,omitempty"`
}

// DefaultConfig returns a config with sensible defaults rooted under the
// user's home directory.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Listen:            "127.0.0.1:8585",
		DownloadDir:       filepath.Join(home, "models"),
		LogLevel:          "info",
		DataDir:           filepath.Join(home, ".modelcompass"),
		IntegrateOllama:   true,
		IntegrateLMStudio: false,
		BenchmarkURL:      "http://localhost:11434",
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Listen == "" {
		config.Listen = "127.0.0.1:8585"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.DownloadDir == "" {
		config.DownloadDir = DefaultConfig().DownloadDir
	}
	if config.DataDir == "" {
		config.DataDir = DefaultConfig().DataDir
	}
	return config, nil
}

// Save writes the config as YAML with 0644 permissions.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
