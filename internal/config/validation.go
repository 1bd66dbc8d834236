package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": \"%s\"", SupportedVersionPrefix)
	} else if !strings.HasPrefix(version, SupportedVersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, SupportedVersionPrefix, SupportedVersionPrefix)
	}

	validateServerStructure(rawConfig, result)
	validateHTTPStructure(rawConfig, result)
	validateSessionsStructure(rawConfig, result)
	validateProvidersStructure(rawConfig, result)
	validateSinksStructure(rawConfig, result)

	return result, nil
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.addError("server", "server field is required and must be an object")
		return
	}

	if _, ok := server["baseURL"]; !ok {
		result.addError("server.baseURL", "baseURL is required. Example: \"http://localhost:8000\"")
	}
	if _, ok := server["addr"]; !ok {
		result.addWarning("server.addr", "addr not set, defaulting to %q", DefaultAddr)
	}
	if origins, ok := server["allowedOrigins"]; ok {
		if _, isList := origins.([]any); !isList {
			result.addError("server.allowedOrigins", "allowedOrigins must be an array of origins")
		}
	}
}

func validateHTTPStructure(rawConfig map[string]any, result *ValidationResult) {
	httpCfg, ok := rawConfig["http"].(map[string]any)
	if !ok {
		return
	}
	for _, field := range []string{"connectTimeout", "timeout"} {
		validateDurationField(httpCfg, field, "http."+field, result)
	}
}

func validateDurationField(obj map[string]any, field, path string, result *ValidationResult) (time.Duration, bool) {
	value, ok := obj[field]
	if !ok {
		return 0, false
	}
	s, ok := value.(string)
	if !ok {
		result.addError(path, "%s must be a duration string such as \"5s\"", field)
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		result.addError(path, "invalid duration %q: %v", s, err)
		return 0, false
	}
	if d < 0 {
		result.addError(path, "%s cannot be negative", field)
		return 0, false
	}
	return d, true
}

func validateSessionsStructure(rawConfig map[string]any, result *ValidationResult) {
	sessions, ok := rawConfig["sessions"].(map[string]any)
	if !ok {
		return
	}

	ttl, hasTTL := validateDurationField(sessions, "ttl", "sessions.ttl", result)
	cleanup, hasCleanup := validateDurationField(sessions, "cleanupInterval", "sessions.cleanupInterval", result)
	if hasTTL && hasCleanup && cleanup > ttl {
		result.addWarning("sessions",
			"cleanupInterval (%s) is longer than ttl (%s). Abandoned states will remain stored until cleanup runs.",
			cleanup, ttl)
	}

	storage, _ := sessions["storage"].(string)
	switch StorageKind(storage) {
	case "", StorageMemory:
	case StorageRedis:
		redis, ok := sessions["redis"].(map[string]any)
		if !ok {
			result.addError("sessions.redis", "redis configuration is required when storage is 'redis'")
			return
		}
		if _, ok := redis["addr"]; !ok {
			result.addError("sessions.redis.addr", "addr is required. Example: \"localhost:6379\"")
		}
		if password, ok := redis["password"]; ok {
			validateSecretReference(password, "sessions.redis.password", result)
		}
	case StorageFirestore:
		if _, ok := sessions["gcpProject"]; !ok {
			result.addError("sessions.gcpProject", "gcpProject is required when storage is 'firestore'")
		}
	default:
		result.addError("sessions.storage", "unknown storage '%s' - supported: memory, redis, firestore", storage)
	}
}

func validateProvidersStructure(rawConfig map[string]any, result *ValidationResult) {
	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok || len(providers) == 0 {
		result.addError("providers", "providers field is required. Configure at least one of: %s", strings.Join(SupportedProviders, ", "))
		return
	}

	for name, p := range providers {
		path := "providers." + name
		if !slices.Contains(SupportedProviders, name) {
			result.addError(path, "unknown provider '%s' - supported providers: %s", name, strings.Join(SupportedProviders, ", "))
			continue
		}
		provider, ok := p.(map[string]any)
		if !ok {
			result.addError(path, "provider must be an object")
			continue
		}

		if _, ok := provider["clientId"]; !ok {
			result.addError(path+".clientId", "clientId is required")
		}
		if secret, ok := provider["clientSecret"]; !ok {
			result.addError(path+".clientSecret", "clientSecret is required")
		} else {
			validateSecretReference(secret, path+".clientSecret", result)
		}
		for _, optional := range []string{"refreshToken", "accessToken"} {
			if token, ok := provider[optional]; ok {
				validateSecretReference(token, path+"."+optional, result)
			}
		}

		if scopes, ok := provider["scopes"]; ok {
			list, isList := scopes.([]any)
			if !isList {
				result.addError(path+".scopes", "scopes must be an array of strings")
			} else if len(list) == 0 {
				result.addWarning(path+".scopes", "empty scopes list - the provider's default scopes will not be requested")
			}
		}
	}
}

func validateSinksStructure(rawConfig map[string]any, result *ValidationResult) {
	raw, ok := rawConfig["sinks"]
	if !ok {
		result.addWarning("sinks", "no sinks configured - benchmark records will only be logged")
		return
	}
	sinks, ok := raw.([]any)
	if !ok {
		result.addError("sinks", "sinks must be an array")
		return
	}

	for i, s := range sinks {
		path := fmt.Sprintf("sinks[%d]", i)
		sink, ok := s.(map[string]any)
		if !ok {
			result.addError(path, "sink must be an object")
			continue
		}

		kind, _ := sink["kind"].(string)
		switch SinkKind(kind) {
		case SinkSheets:
			if _, ok := sink["credentialsFile"]; !ok {
				result.addError(path+".credentialsFile", "credentialsFile is required for sheets sink (service account JSON key)")
			}
			_, hasID := sink["spreadsheetId"]
			_, hasName := sink["spreadsheetName"]
			if !hasID && !hasName {
				result.addError(path, "spreadsheetId or spreadsheetName is required for sheets sink")
			}
		case SinkFirestore:
			if _, ok := sink["gcpProject"]; !ok {
				result.addError(path+".gcpProject", "gcpProject is required for firestore sink")
			}
		case SinkCSV:
		case "":
			result.addError(path+".kind", "kind is required. Options: sheets, firestore, csv")
		default:
			result.addError(path+".kind", "unknown sink kind '%s' - supported: sheets, firestore, csv", kind)
		}
	}
}

// validateSecretReference requires secrets to come from the environment
func validateSecretReference(secret any, path string, result *ValidationResult) {
	switch v := secret.(type) {
	case string:
		result.addError(path, "secrets must use environment variable reference. Use {\"$env\": \"VAR_NAME\"} instead of a literal value")
	case map[string]any:
		if _, ok := v["$env"]; !ok {
			result.addError(path, "secret reference must use {\"$env\": \"VAR_NAME\"} format")
		}
	default:
		result.addError(path, "secret must be an environment variable reference, got %T", secret)
	}
}

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path,
				"found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing",
				match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
