package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMethod         = "POST"
	defaultTimeoutSeconds = 5
)

type configFile struct {
	Webhooks []WebhookConfig `json:"webhooks" yaml:"webhooks"`
}

// WebhookConfig is one webhook sink declared in the config file.
type WebhookConfig struct {
	ID             string            `json:"id" yaml:"id"`
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        *bool             `json:"enabled" yaml:"enabled"`
}

// EnabledValue returns the enabled flag defaulting to true.
func (cfg WebhookConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}

// LoadWebhooks reads webhook sink definitions from a YAML/JSON file.
// Disabled entries are dropped here; callers only ever see active sinks.
func LoadWebhooks(path string) ([]WebhookConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("webhooks file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read webhooks file: %w", err)
	}

	file, err := parseWebhooks(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Webhooks) == 0 {
		return nil, errors.New("webhooks file contains no webhook entries")
	}

	seen := make(map[string]struct{}, len(file.Webhooks))
	out := make([]WebhookConfig, 0, len(file.Webhooks))
	for i := range file.Webhooks {
		cfg := sanitizeWebhookConfig(file.Webhooks[i])
		if err := validateWebhookConfig(cfg); err != nil {
			return nil, fmt.Errorf("webhooks[%d]: %w", i, err)
		}
		if _, exists := seen[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate webhook id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}

	return out, nil
}

func parseWebhooks(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file configFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}

	return configFile{}, errors.New("webhooks file format not recognized (expected YAML or JSON)")
}

func sanitizeWebhookConfig(cfg WebhookConfig) WebhookConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = defaultMethod
	}
	cfg.Headers = sanitizeHeaders(cfg.Headers)
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	return cfg
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateWebhookConfig(cfg WebhookConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required for webhook %q", cfg.ID)
	}
	return nil
}
