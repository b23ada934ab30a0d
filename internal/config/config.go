// ABOUTME: Configuration loading and parsing for coven-sessions
// ABOUTME: Supports YAML files with environment variable expansion and XDG defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-sessions configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig holds the metadata database location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TranscriptsConfig holds the location of the read-only transcript tree
type TranscriptsConfig struct {
	Root string `yaml:"root"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file exists. The
// database lives in the shared coven data directory next to its sibling
// tools, and the transcript root points at the tree the agent CLI writes.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(defaultDataPath(), "sessions.db"),
		},
		Transcripts: TranscriptsConfig{
			Root: defaultTranscriptsRoot(),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Transcripts.Root == "" {
		return fmt.Errorf("transcripts.root is required")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// defaultDataPath returns the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func defaultDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

// defaultTranscriptsRoot returns the transcript tree written by the agent
// CLI, one directory per project under ~/.claude/projects.
func defaultTranscriptsRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "projects" // fallback
	}
	return filepath.Join(homeDir, ".claude", "projects")
}
