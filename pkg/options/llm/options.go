// Package llmopts provides options for LLM provider configuration.
package llmopts

import (
	"fmt"
	"time"

	"github.com/kart-io/fixgenie/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions configures one LLM provider (embedding or chat side).
type ProviderOptions struct {
	// Provider is the registered provider name (gemini, ...).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the provider API key.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// TaskType is the embedding task type hint.
	TaskType string `json:"task-type" mapstructure:"task-type"`

	// Dimension is the embedding vector dimension.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Temperature for generation.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Timeout is the request timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the maximum retry count.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewProviderOptions creates defaults for the Gemini provider.
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "gemini",
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Dimension:   768,
		Temperature: 0.1,
		Timeout:     120 * time.Second,
		MaxRetries:  3,
	}
}

// ToConfigMap converts the options into the provider factory config map.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"task_type":   o.TaskType,
		"temperature": o.Temperature,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags to the flagset.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	prefix := options.Join(prefixes...)
	fs.StringVar(&o.Provider, prefix+"provider", o.Provider, "LLM provider name.")
	fs.StringVar(&o.BaseURL, prefix+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, prefix+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, prefix+"model", o.Model, "Model name.")
	fs.StringVar(&o.TaskType, prefix+"task-type", o.TaskType, "Embedding task type.")
	fs.IntVar(&o.Dimension, prefix+"dimension", o.Dimension, "Embedding vector dimension.")
	fs.Float64Var(&o.Temperature, prefix+"temperature", o.Temperature, "Generation temperature.")
	fs.DurationVar(&o.Timeout, prefix+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, prefix+"max-retries", o.MaxRetries, "Maximum retries.")
}

// Validate validates the options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("llm model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive"))
	}
	return errs
}
