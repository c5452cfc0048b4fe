package loader

import (
	"os"
	"strconv"
	"strings"
)

// DefaultPrefix is the environment variable prefix for termtree settings.
const DefaultPrefix = "TERMTREE_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "TERMTREE_")
	mapping map[string]string // Env var -> config path
	ignore  map[string]bool   // Prefixed variables that are not settings
	schema  map[string]any    // Typed defaults; nil guesses from the value
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "TERMTREE_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		ignore:  map[string]bool{prefix + "CONFIG": true},
		environ: os.Environ,
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		ignore:  map[string]bool{},
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the short aliases; everything else is derived
// from the variable name.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "MODE":      "output.mode",
		prefix + "LOG_LEVEL": "logging.level",
		prefix + "LOG_FILE":  "logging.file",
		prefix + "SCRIPT":    "script.path",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) || l.ignore[name] {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			// TERMTREE_OUTPUT_RESET_SEQUENCE -> output.resetSequence
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, l.convert(path, value))
	}

	return config, nil
}

// WithSchema types values by the matching entry in schema, a nested map of
// defaults as produced by a TOML round trip. A string setting keeps the raw
// value even when it reads as a number or boolean. Paths absent from schema
// fall back to guessing from the value.
func (l *EnvLoader) WithSchema(schema map[string]any) *EnvLoader {
	l.schema = schema
	return l
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts TERMTREE_OUTPUT_RESET_SEQUENCE to output.resetSequence.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(name, "_")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}

	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + setting
}

// convert types value by the schema entry at path. A value that does not
// parse as the schema type is passed through as a string so decoding reports
// the mismatch.
func (l *EnvLoader) convert(path, value string) any {
	want, ok := GetByPath(l.schema, path)
	if !ok {
		return parseValue(value)
	}

	switch want.(type) {
	case string:
		return value
	case bool:
		if b, ok := parseBool(value); ok {
			return b
		}
	case int, int64:
		if i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return i
		}
	default:
		return parseValue(value)
	}
	return value
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

// parseValue converts the string to a bool or integer when it reads as
// one. "0" and "1" stay integers so numeric settings can be set to them.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
