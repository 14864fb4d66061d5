package yandex

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultBaseURL         = "https://rest-assistant.api.cloud.yandex.net"
	defaultModel           = "yandexgpt-lite/latest"
	defaultTemperature     = 0.5
	defaultMaxPromptTokens = 7000
	defaultTTLDays         = 30
	defaultPollTimeout     = 10 * time.Minute
)

// Config holds the assistant platform client configuration.
type Config struct {
	// BaseURL is the platform REST endpoint.
	BaseURL string `yaml:"base_url"`

	// FolderID is the cloud folder owning all created resources.
	FolderID string `yaml:"folder_id"`

	// APIKey authenticates requests via the Api-Key header.
	APIKey string `yaml:"api_key"`

	// Model is the generation model, either a short name resolved against
	// FolderID ("yandexgpt-lite/latest") or a full gpt:// URI.
	Model string `yaml:"model"`

	// Temperature for answer generation. Defaults to 0.5.
	Temperature *float64 `yaml:"temperature"`

	// MaxPromptTokens bounds prompt truncation. Defaults to 7000.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`

	// TTLDays is the idle expiration for assistants and threads.
	TTLDays int `yaml:"ttl_days"`

	// PollTimeout is the overall budget for waiting on runs and index
	// operations. Defaults to 10m.
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature == nil {
		t := defaultTemperature
		c.Temperature = &t
	}
	if c.MaxPromptTokens == 0 {
		c.MaxPromptTokens = defaultMaxPromptTokens
	}
	if c.TTLDays == 0 {
		c.TTLDays = defaultTTLDays
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = defaultPollTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.FolderID == "" {
		errs = append(errs, errors.New("yandex: folder_id is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("yandex: api_key is required"))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		errs = append(errs, fmt.Errorf("yandex: temperature must be in [0,1], got %v", *c.Temperature))
	}
	return errors.Join(errs...)
}

// modelURI resolves the configured model to a full gpt:// URI.
func (c *Config) modelURI() string {
	if len(c.Model) > 6 && c.Model[:6] == "gpt://" {
		return c.Model
	}
	return fmt.Sprintf("gpt://%s/%s", c.FolderID, c.Model)
}
