// Package config loads the server's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tomschdev/proto-lindt-ext/internal/validation"
)

const (
	DEFAULT_LINTER_COMMAND = "api-linter"

	DEFAULT_LINTER_TIMEOUT         = 30 * time.Second
	DEFAULT_SUGGESTION_RETRY_LIMIT = 5 * time.Second
)

type Config struct {
	Linter      LinterConfig      `yaml:"linter"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Validation  ValidationConfig  `yaml:"validation"`
}

type LinterConfig struct {
	//Executable name or path, defaults to DEFAULT_LINTER_COMMAND.
	Command string `yaml:"command"`

	//Arguments inserted before the linted file's path.
	Args []string `yaml:"args"`

	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

func (c LinterConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DEFAULT_LINTER_TIMEOUT
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// SuggestionsConfig configures the remote fix-suggestion service,
// enrichment is disabled when the endpoint is empty.
type SuggestionsConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"auth_token"`

	//Total retry budget for one suggestion request.
	MaxRetrySeconds float64 `yaml:"max_retry_seconds"`
}

func (c SuggestionsConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c SuggestionsConfig) MaxRetryDuration() time.Duration {
	if c.MaxRetrySeconds <= 0 {
		return DEFAULT_SUGGESTION_RETRY_LIMIT
	}
	return time.Duration(c.MaxRetrySeconds * float64(time.Second))
}

type ValidationConfig struct {
	//Fallback cap on enriched findings, used when the client provides no
	//per-document configuration.
	MaxProblems *int `yaml:"max_problems"`

	DebounceMilliseconds int `yaml:"debounce_milliseconds"`

	//True publishes an empty diagnostic set when the linter invocation
	//fails, false leaves the previous diagnostics displayed.
	ClearOnLinterFailure bool `yaml:"clear_on_linter_failure"`
}

func (c ValidationConfig) DefaultSettings() validation.DocumentSettings {
	maxProblems := validation.DEFAULT_MAX_PROBLEMS
	if c.MaxProblems != nil {
		maxProblems = *c.MaxProblems
	}
	return validation.DocumentSettings{MaxProblems: maxProblems}
}

func (c ValidationConfig) DebounceDuration() time.Duration {
	if c.DebounceMilliseconds <= 0 {
		return 0 //the orchestrator applies its own default
	}
	return time.Duration(c.DebounceMilliseconds) * time.Millisecond
}

func Default() Config {
	return Config{
		Linter: LinterConfig{Command: DEFAULT_LINTER_COMMAND},
	}
}

// Load reads and checks the configuration at $path. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if config.Linter.Command == "" {
		config.Linter.Command = DEFAULT_LINTER_COMMAND
	}

	if err := config.check(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) check() error {
	if c.Validation.MaxProblems != nil && *c.Validation.MaxProblems < 0 {
		return errors.New("invalid configuration: validation.max_problems is negative")
	}
	if c.Validation.DebounceMilliseconds < 0 {
		return errors.New("invalid configuration: validation.debounce_milliseconds is negative")
	}
	if c.Suggestions.AuthToken != "" && c.Suggestions.Endpoint == "" {
		return errors.New("invalid configuration: suggestions.auth_token is set but suggestions.endpoint is empty")
	}
	return nil
}
