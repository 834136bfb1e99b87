package sampler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileSection is one model entry of a configuration file.
type fileSection struct {
	ModelID           string   `json:"model_id" yaml:"model_id" toml:"model_id"`
	BaseURL           string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey            string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	Backend           string   `json:"backend" yaml:"backend" toml:"backend"`
	Temperature       *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens         int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Stop              any      `json:"stop" yaml:"stop" toml:"stop"`
	PromptTokenCost   float64  `json:"prompt_token_cost" yaml:"prompt_token_cost" toml:"prompt_token_cost"`
	ResponseTokenCost float64  `json:"response_token_cost" yaml:"response_token_cost" toml:"response_token_cost"`
	Cache             bool     `json:"cache" yaml:"cache" toml:"cache"`
	TimeoutSeconds    float64  `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxTries          int      `json:"max_tries" yaml:"max_tries" toml:"max_tries"`
	MaxElapsedSeconds float64  `json:"max_elapsed_seconds" yaml:"max_elapsed_seconds" toml:"max_elapsed_seconds"`
	RetryAllErrors    bool     `json:"retry_all_errors" yaml:"retry_all_errors" toml:"retry_all_errors"`
}

// LoadConfig reads the section named modelName from a configuration file.
// The file maps model names to sections, for example:
//
//	{"vllm": {"model_id": "meta-llama/Llama-2-7b-chat-hf", "base_url": "http://localhost:8000/v1"}}
//
// Supported extensions: .json, .yaml/.yml, .toml. The returned Config has
// DetectEnv set and has already been validated.
func LoadConfig(path, modelName string) (Config, error) {
	if path == "" {
		return Config{}, &ConfigError{Field: "path", Reason: "empty config path"}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Field: "path", Reason: "cannot read config file", Err: err}
	}
	sections := map[string]fileSection{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &sections)
	case ".json":
		err = json.Unmarshal(b, &sections)
	case ".toml":
		err = toml.Unmarshal(b, &sections)
	default:
		return Config{}, &ConfigError{Field: "path", Reason: fmt.Sprintf("unsupported config extension %q", ext)}
	}
	if err != nil {
		return Config{}, &ConfigError{Field: "path", Reason: "cannot parse config file", Err: err}
	}
	sec, ok := sections[modelName]
	if !ok {
		return Config{}, &ConfigError{
			Field:  modelName,
			Reason: fmt.Sprintf("no such model section (have %s)", strings.Join(sectionNames(sections), ", ")),
		}
	}
	cfg, err := sec.toConfig()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s fileSection) toConfig() (Config, error) {
	stop, err := stopList(s.Stop)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		ModelID:           s.ModelID,
		BaseURL:           s.BaseURL,
		APIKey:            s.APIKey,
		Backend:           Backend(strings.ToLower(s.Backend)),
		Temperature:       s.Temperature,
		MaxTokens:         s.MaxTokens,
		Stop:              stop,
		PromptTokenCost:   s.PromptTokenCost,
		ResponseTokenCost: s.ResponseTokenCost,
		Cache:             s.Cache,
		Timeout:           seconds(s.TimeoutSeconds),
		Retry: RetryPolicy{
			MaxTries:   s.MaxTries,
			MaxElapsed: seconds(s.MaxElapsedSeconds),
		},
		DetectEnv: true,
	}
	if s.RetryAllErrors {
		cfg.Retry.Retryable = RetryAll
	}
	return cfg, nil
}

// stopList accepts a single stop string or a list of strings.
func stopList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &ConfigError{Field: "stop", Reason: fmt.Sprintf("entries must be strings, got %T", item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &ConfigError{Field: "stop", Reason: fmt.Sprintf("must be a string or list of strings, got %T", v)}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sectionNames(sections map[string]fileSection) []string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
