package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SupportedVersionPrefix is the config version accepted by Load
const SupportedVersionPrefix = "v0.0.1-DEV_EDITION"

// Provider names accepted under "providers"
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderGitHub   = "github"
)

// SupportedProviders lists the provider keys in display order
var SupportedProviders = []string{ProviderGoogle, ProviderFacebook, ProviderGitHub}

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the state registry backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageRedis     StorageKind = "redis"
	StorageFirestore StorageKind = "firestore"
)

// SinkKind selects where benchmark records are written
type SinkKind string

const (
	SinkSheets    SinkKind = "sheets"
	SinkFirestore SinkKind = "firestore"
	SinkCSV       SinkKind = "csv"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

// HTTPConfig bounds every outbound call made while benchmarking
type HTTPConfig struct {
	ConnectTimeout time.Duration `json:"connectTimeout"`
	Timeout        time.Duration `json:"timeout"`
}

// RedisConfig is used when sessions.storage is "redis"
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password Secret `json:"password"`
	DB       int    `json:"db"`
}

// SessionConfig configures the state registry
type SessionConfig struct {
	Storage             StorageKind   `json:"storage"`
	TTL                 time.Duration `json:"ttl"`
	CleanupInterval     time.Duration `json:"cleanupInterval"`
	Redis               *RedisConfig  `json:"redis,omitempty"`
	GCPProject          string        `json:"gcpProject,omitempty"`
	FirestoreDatabase   string        `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string        `json:"firestoreCollection,omitempty"`
}

// ProviderConfig holds the OAuth client registration for one provider.
// Empty endpoint URLs fall back to the provider's well-known endpoints.
type ProviderConfig struct {
	ClientID     string   `json:"clientId"`
	ClientSecret Secret   `json:"clientSecret"`
	AuthURL      string   `json:"authUrl,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty"`
	UserInfoURL  string   `json:"userinfoUrl,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	RedirectURI  string   `json:"redirectUri,omitempty"`

	// Used only by the standalone benchmark: Google refreshes, GitHub and
	// Facebook call user info with a long-lived access token.
	RefreshToken Secret `json:"refreshToken,omitempty"`
	AccessToken  Secret `json:"accessToken,omitempty"`
}

// SinkConfig describes one benchmark record destination
type SinkConfig struct {
	Kind SinkKind `json:"kind"`

	// sheets
	CredentialsFile string `json:"credentialsFile,omitempty"`
	SpreadsheetID   string `json:"spreadsheetId,omitempty"`
	SpreadsheetName string `json:"spreadsheetName,omitempty"`
	SheetName       string `json:"sheetName,omitempty"`

	// firestore
	GCPProject        string `json:"gcpProject,omitempty"`
	FirestoreDatabase string `json:"firestoreDatabase,omitempty"`
	Collection        string `json:"collection,omitempty"`

	// csv
	Path string `json:"path,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Server    ServerConfig               `json:"server"`
	HTTP      HTTPConfig                 `json:"http"`
	Sessions  SessionConfig              `json:"sessions"`
	Providers map[string]*ProviderConfig `json:"providers"`
	Sinks     []SinkConfig               `json:"sinks"`
}

// RawConfigValue is a value that was either a literal string or an env reference.
// Only used during parsing.
type RawConfigValue struct {
	value   string
	fromEnv bool
}

// ParseConfigValue parses a JSON value that could be a string or {"$env": "VAR"}.
// An env reference to an unset variable is an error.
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	return parseConfigValue(raw, false)
}

// ParseOptionalConfigValue is like ParseConfigValue but resolves an unset
// env variable to the empty string.
func ParseOptionalConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	return parseConfigValue(raw, true)
}

func parseConfigValue(raw json.RawMessage, optional bool) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		if optional {
			return &RawConfigValue{fromEnv: true}, nil
		}
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value, fromEnv: true}, nil
}
