package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dgellow/oauth-bench/internal/log"
)

// Defaults applied to fields left empty in the config file
const (
	DefaultConnectTimeout    = 5 * time.Second
	DefaultTimeout           = 15 * time.Second
	DefaultSessionTTL        = 10 * time.Minute
	DefaultCleanupInterval   = time.Minute
	DefaultSessionCollection = "oauth_bench_sessions"
	DefaultResultsCollection = "oauth_bench_results"
	DefaultSheetName         = "Sheet1"
	DefaultCSVPath           = "benchmark_results.csv"
	DefaultAddr              = ":8000"
	DefaultServerName        = "OAuth Benchmark"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := applyDefaults(&config); err != nil {
		return Config{}, err
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok {
		return nil
	}

	for name, p := range providers {
		provider, ok := p.(map[string]any)
		if !ok {
			return fmt.Errorf("providers.%s must be an object", name)
		}
		for _, secret := range []string{"clientSecret", "refreshToken", "accessToken"} {
			value, exists := provider[secret]
			if !exists {
				continue
			}
			if _, isString := value.(string); isString {
				return fmt.Errorf("providers.%s.%s must use environment variable reference for security", name, secret)
			}
			if refMap, isMap := value.(map[string]any); isMap {
				if _, hasEnv := refMap["$env"]; !hasEnv {
					return fmt.Errorf("providers.%s.%s must use {\"$env\": \"VAR_NAME\"} format", name, secret)
				}
			}
		}
	}
	return nil
}

func applyDefaults(config *Config) error {
	if config.Server.Addr == "" {
		config.Server.Addr = DefaultAddr
	}
	if config.Server.Name == "" {
		config.Server.Name = DefaultServerName
	}

	if config.HTTP.ConnectTimeout == 0 {
		config.HTTP.ConnectTimeout = DefaultConnectTimeout
	}
	if config.HTTP.Timeout == 0 {
		config.HTTP.Timeout = DefaultTimeout
	}

	s := &config.Sessions
	if s.Storage == "" {
		s.Storage = StorageMemory
	}
	if s.TTL == 0 {
		s.TTL = DefaultSessionTTL
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = DefaultCleanupInterval
	}
	if s.Storage == StorageFirestore && s.FirestoreCollection == "" {
		s.FirestoreCollection = DefaultSessionCollection
	}

	for name, p := range config.Providers {
		if p == nil || p.RedirectURI != "" || config.Server.BaseURL == "" {
			continue
		}
		redirect, err := url.JoinPath(config.Server.BaseURL, "auth", name, "callback")
		if err != nil {
			return fmt.Errorf("building redirect URI for %s: %w", name, err)
		}
		p.RedirectURI = redirect
	}

	for i := range config.Sinks {
		sink := &config.Sinks[i]
		switch sink.Kind {
		case SinkSheets:
			if sink.SheetName == "" {
				sink.SheetName = DefaultSheetName
			}
		case SinkFirestore:
			if sink.Collection == "" {
				sink.Collection = DefaultResultsCollection
			}
		case SinkCSV:
			if sink.Path == "" {
				sink.Path = DefaultCSVPath
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if _, err := url.Parse(config.Server.BaseURL); err != nil {
		return fmt.Errorf("server.baseURL is invalid: %w", err)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if config.HTTP.ConnectTimeout < 0 || config.HTTP.Timeout < 0 {
		return fmt.Errorf("http timeouts cannot be negative")
	}

	if err := validateSessions(&config.Sessions); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	if len(config.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for name, p := range config.Providers {
		if err := validateProvider(name, p); err != nil {
			return err
		}
	}

	for i, sink := range config.Sinks {
		if err := validateSink(sink); err != nil {
			return fmt.Errorf("sinks[%d]: %w", i, err)
		}
	}

	return nil
}

func validateSessions(s *SessionConfig) error {
	if s.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}
	if s.CleanupInterval < 0 {
		return fmt.Errorf("cleanupInterval cannot be negative")
	}
	if s.TTL > 0 && s.CleanupInterval > s.TTL {
		log.LogWarn("Session cleanup interval is greater than session TTL")
	}

	switch s.Storage {
	case StorageMemory:
	case StorageRedis:
		if s.Redis == nil || s.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when using redis storage")
		}
	case StorageFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unsupported storage %q (memory, redis, or firestore)", s.Storage)
	}
	return nil
}

func validateProvider(name string, p *ProviderConfig) error {
	if !slices.Contains(SupportedProviders, name) {
		return fmt.Errorf("unsupported provider %q (supported: %s)", name, strings.Join(SupportedProviders, ", "))
	}
	if p == nil {
		return fmt.Errorf("provider %s has no configuration", name)
	}
	if p.ClientID == "" {
		return fmt.Errorf("provider %s: clientId is required", name)
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("provider %s: clientSecret is required", name)
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("provider %s: redirectUri is required", name)
	}
	return nil
}

func validateSink(sink SinkConfig) error {
	switch sink.Kind {
	case SinkSheets:
		if sink.CredentialsFile == "" {
			return fmt.Errorf("credentialsFile is required for sheets sink")
		}
		if sink.SpreadsheetID == "" && sink.SpreadsheetName == "" {
			return fmt.Errorf("spreadsheetId or spreadsheetName is required for sheets sink")
		}
	case SinkFirestore:
		if sink.GCPProject == "" {
			return fmt.Errorf("gcpProject is required for firestore sink")
		}
	case SinkCSV:
		if sink.Path == "" {
			return fmt.Errorf("path is required for csv sink")
		}
	default:
		return fmt.Errorf("unsupported sink kind %q (sheets, firestore, or csv)", sink.Kind)
	}
	return nil
}
