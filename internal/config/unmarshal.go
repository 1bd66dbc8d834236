package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// resolveString resolves an optional string-or-reference field.
// Absent fields resolve to the empty string.
func resolveString(raw json.RawMessage, field string) (string, error) {
	if raw == nil {
		return "", nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return parsed.value, nil
}

func resolveOptionalSecret(raw json.RawMessage, field string) (Secret, error) {
	if raw == nil {
		return "", nil
	}
	parsed, err := ParseOptionalConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return Secret(parsed.value), nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	type rawServer struct {
		BaseURL        json.RawMessage `json:"baseURL"`
		Addr           json.RawMessage `json:"addr"`
		Name           string          `json:"name"`
		Version        string          `json:"version"`
		AllowedOrigins []string        `json:"allowedOrigins"`
	}

	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Version = raw.Version
	s.AllowedOrigins = raw.AllowedOrigins

	var err error
	if s.BaseURL, err = resolveString(raw.BaseURL, "baseURL"); err != nil {
		return err
	}
	if s.Addr, err = resolveString(raw.Addr, "addr"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON parses timeouts given as Go duration strings ("5s")
func (h *HTTPConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ConnectTimeout string `json:"connectTimeout"`
		Timeout        string `json:"timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if h.ConnectTimeout, err = parseDuration(raw.ConnectTimeout, "connectTimeout"); err != nil {
		return err
	}
	if h.Timeout, err = parseDuration(raw.Timeout, "timeout"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (c *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSessions struct {
		Storage             StorageKind     `json:"storage"`
		TTL                 string          `json:"ttl"`
		CleanupInterval     string          `json:"cleanupInterval"`
		Redis               *RedisConfig    `json:"redis"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
	}

	var raw rawSessions
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Storage = raw.Storage
	c.Redis = raw.Redis
	c.FirestoreDatabase = raw.FirestoreDatabase
	c.FirestoreCollection = raw.FirestoreCollection

	var err error
	if c.TTL, err = parseDuration(raw.TTL, "ttl"); err != nil {
		return err
	}
	if c.CleanupInterval, err = parseDuration(raw.CleanupInterval, "cleanupInterval"); err != nil {
		return err
	}
	if c.GCPProject, err = resolveString(raw.GCPProject, "gcpProject"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for RedisConfig
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Addr     json.RawMessage `json:"addr"`
		Password json.RawMessage `json:"password"`
		DB       int             `json:"db"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.DB = raw.DB

	var err error
	if r.Addr, err = resolveString(raw.Addr, "redis.addr"); err != nil {
		return err
	}
	if r.Password, err = resolveOptionalSecret(raw.Password, "redis.password"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		AuthURL      string          `json:"authUrl"`
		TokenURL     string          `json:"tokenUrl"`
		UserInfoURL  string          `json:"userinfoUrl"`
		Scopes       []string        `json:"scopes"`
		RedirectURI  json.RawMessage `json:"redirectUri"`
		RefreshToken json.RawMessage `json:"refreshToken"`
		AccessToken  json.RawMessage `json:"accessToken"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.AuthURL = raw.AuthURL
	p.TokenURL = raw.TokenURL
	p.UserInfoURL = raw.UserInfoURL
	p.Scopes = raw.Scopes

	var err error
	if p.ClientID, err = resolveString(raw.ClientID, "clientId"); err != nil {
		return err
	}
	if p.RedirectURI, err = resolveString(raw.RedirectURI, "redirectUri"); err != nil {
		return err
	}

	secret, err := resolveString(raw.ClientSecret, "clientSecret")
	if err != nil {
		return err
	}
	p.ClientSecret = Secret(secret)

	// Standalone-benchmark tokens are optional: an unset env var just
	// disables that provider in -bench mode
	if p.RefreshToken, err = resolveOptionalSecret(raw.RefreshToken, "refreshToken"); err != nil {
		return err
	}
	if p.AccessToken, err = resolveOptionalSecret(raw.AccessToken, "accessToken"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SinkConfig
func (s *SinkConfig) UnmarshalJSON(data []byte) error {
	type rawSink struct {
		Kind              SinkKind        `json:"kind"`
		CredentialsFile   json.RawMessage `json:"credentialsFile"`
		SpreadsheetID     json.RawMessage `json:"spreadsheetId"`
		SpreadsheetName   json.RawMessage `json:"spreadsheetName"`
		SheetName         string          `json:"sheetName"`
		GCPProject        json.RawMessage `json:"gcpProject"`
		FirestoreDatabase string          `json:"firestoreDatabase"`
		Collection        string          `json:"collection"`
		Path              json.RawMessage `json:"path"`
	}

	var raw rawSink
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Kind == "" {
		return fmt.Errorf("sink kind is required")
	}

	s.Kind = raw.Kind
	s.SheetName = raw.SheetName
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.Collection = raw.Collection

	var err error
	if s.CredentialsFile, err = resolveString(raw.CredentialsFile, "credentialsFile"); err != nil {
		return err
	}
	if s.SpreadsheetID, err = resolveString(raw.SpreadsheetID, "spreadsheetId"); err != nil {
		return err
	}
	if s.SpreadsheetName, err = resolveString(raw.SpreadsheetName, "spreadsheetName"); err != nil {
		return err
	}
	if s.GCPProject, err = resolveString(raw.GCPProject, "gcpProject"); err != nil {
		return err
	}
	if s.Path, err = resolveString(raw.Path, "path"); err != nil {
		return err
	}
	return nil
}
