// Package config resolves tailor settings from embedded defaults, an optional
// YAML or TOML file, TAILOR_* environment variables and explicit overrides,
// in increasing order of precedence.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adevaykin/tailor/internal/config/keys"
)

//go:embed defaults.yaml
var defaultsPayload []byte

// EnvPrefix is prepended to the upper-cased key when reading the environment,
// so poll.active_interval becomes TAILOR_POLL_ACTIVE_INTERVAL.
const EnvPrefix = "TAILOR_"

// Known keys in normalized form.
const (
	KeyLogLevel            = "log-level"
	KeyLogFile             = "log-file"
	KeyPollActiveInterval  = "poll.active-interval"
	KeyPollStandbyInterval = "poll.standby-interval"
	KeyPollDirInterval     = "poll.dir-interval"
	KeyServeAddr           = "serve.addr"
	KeyServeAllowedOrigins = "serve.allowed-origins"
	KeyServeReplayLines    = "serve.replay-lines"
	KeyServeToken          = "serve.token"
	KeyHighlightEnabled    = "highlight.enabled"
)

var knownKeys = []string{
	KeyLogLevel,
	KeyLogFile,
	KeyPollActiveInterval,
	KeyPollStandbyInterval,
	KeyPollDirInterval,
	KeyServeAddr,
	KeyServeAllowedOrigins,
	KeyServeReplayLines,
	KeyServeToken,
	KeyHighlightEnabled,
}

type Settings struct {
	LogLevel  string
	LogFile   string
	Poll      PollSettings
	Serve     ServeSettings
	Highlight HighlightSettings
}

type PollSettings struct {
	ActiveInterval  time.Duration
	StandbyInterval time.Duration
	DirInterval     time.Duration
}

type ServeSettings struct {
	Addr           string
	AllowedOrigins []string
	ReplayLines    int
	Token          string
}

type HighlightSettings struct {
	Enabled bool
}

// Defaults returns the embedded defaults.
func Defaults() Settings {
	settings, err := LoadSettings("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return settings
}

// LoadSettings layers the file at path (skipped when empty or missing) and
// overrides on top of the embedded defaults. Files ending in .toml are read as
// TOML, everything else as YAML.
func LoadSettings(path string, overrides map[string]any) (Settings, error) {
	defaultsStore, err := keys.DecodeYAML(defaultsPayload)
	if err != nil {
		return Settings{}, err
	}
	defaults := defaultsStore.Flat()
	values := defaultsStore.Flat()

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Settings{}, err
			}
		} else {
			store, err := decodeFile(path, payload)
			if err != nil {
				return Settings{}, fmt.Errorf("%s: %w", path, err)
			}
			for key, value := range store.Flat() {
				values[key] = value
			}
		}
	}

	for key, value := range overrides {
		normalized := keys.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		values[normalized] = value
	}

	settings := Settings{
		LogLevel: stringSetting(values, KeyLogLevel, ""),
		LogFile:  stringSetting(values, KeyLogFile, ""),
		Poll: PollSettings{
			ActiveInterval:  durationSetting(values, KeyPollActiveInterval, 0),
			StandbyInterval: durationSetting(values, KeyPollStandbyInterval, 0),
			DirInterval:     durationSetting(values, KeyPollDirInterval, 0),
		},
		Serve: ServeSettings{
			Addr:           stringSetting(values, KeyServeAddr, ""),
			AllowedOrigins: stringsSetting(values, KeyServeAllowedOrigins),
			ReplayLines:    int(intSetting(values, KeyServeReplayLines, 0)),
			Token:          stringSetting(values, KeyServeToken, ""),
		},
		Highlight: HighlightSettings{
			Enabled: boolSetting(values, KeyHighlightEnabled, boolSetting(defaults, KeyHighlightEnabled, true)),
		},
	}
	return normalizeSettings(settings, defaults), nil
}

// EnvOverrides collects TAILOR_* variables for the known keys. Values stay
// strings; LoadSettings parses them per key.
func EnvOverrides(lookup func(string) (string, bool)) map[string]any {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	overrides := map[string]any{}
	for _, key := range knownKeys {
		if value, ok := lookup(EnvName(key)); ok {
			overrides[key] = value
		}
	}
	return overrides
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(keys.NormalizeKey(key))
	return EnvPrefix + strings.ToUpper(name)
}

func decodeFile(path string, payload []byte) (keys.Store, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return keys.DecodeTOML(payload)
	}
	return keys.DecodeYAML(payload)
}

func normalizeSettings(settings Settings, defaults map[string]any) Settings {
	if settings.LogLevel == "" {
		settings.LogLevel = stringSetting(defaults, KeyLogLevel, "info")
	}
	if settings.Poll.ActiveInterval <= 0 {
		settings.Poll.ActiveInterval = durationSetting(defaults, KeyPollActiveInterval, 100*time.Millisecond)
	}
	if settings.Poll.StandbyInterval < settings.Poll.ActiveInterval {
		settings.Poll.StandbyInterval = durationSetting(defaults, KeyPollStandbyInterval, 2*time.Second)
		if settings.Poll.StandbyInterval < settings.Poll.ActiveInterval {
			settings.Poll.StandbyInterval = settings.Poll.ActiveInterval
		}
	}
	if settings.Poll.DirInterval <= 0 {
		settings.Poll.DirInterval = durationSetting(defaults, KeyPollDirInterval, time.Second)
	}
	if settings.Serve.Addr == "" {
		settings.Serve.Addr = stringSetting(defaults, KeyServeAddr, "")
	}
	if settings.Serve.ReplayLines <= 0 {
		settings.Serve.ReplayLines = int(intSetting(defaults, KeyServeReplayLines, 1000))
	}
	return settings
}

func intSetting(values map[string]any, key string, fallback int64) int64 {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := keys.AsInt64(value); ok {
		return parsed
	}
	if text, ok := value.(string); ok {
		var parsed int64
		if _, err := fmt.Sscan(strings.TrimSpace(text), &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func stringSetting(values map[string]any, key string, fallback string) string {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := value.(string); ok {
		return strings.TrimSpace(parsed)
	}
	return fallback
}

func boolSetting(values map[string]any, key string, fallback bool) bool {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func durationSetting(values map[string]any, key string, fallback time.Duration) time.Duration {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := keys.AsDuration(value); ok {
		return parsed
	}
	return fallback
}

func stringsSetting(values map[string]any, key string) []string {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return nil
	}
	parsed, _ := keys.AsStrings(value)
	return parsed
}
