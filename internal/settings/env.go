package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"snake-arena/server/logging"
)

// Environment variables read by LoadEnv.
const (
	EnvSettings    = "SNAKE_SETTINGS"
	EnvAddr        = "SNAKE_ADDR"
	EnvHTTPAddr    = "SNAKE_HTTP_ADDR"
	EnvLogSinks    = "SNAKE_LOG_SINKS"
	EnvLogJSONPath = "SNAKE_LOG_JSON_PATH"
	EnvLogLevel    = "SNAKE_LOG_LEVEL"
	EnvJournalPath = "SNAKE_JOURNAL_PATH"
	EnvSeed        = "SNAKE_SEED"
	EnvEnablePprof = "SNAKE_ENABLE_PPROF"
)

const (
	DefaultSettingsPath = "settings.xml"
	DefaultAddr         = ":11000"
	DefaultHTTPAddr     = ":8080"
	DefaultLogJSONPath  = "snake-events.ndjson"
)

// Env is the process configuration outside the settings file.
type Env struct {
	SettingsPath string
	Addr         string
	// HTTPAddr is empty when the HTTP surface is disabled.
	HTTPAddr    string
	LogSinks    []string
	LogJSONPath string
	LogLevel    logging.Severity
	// JournalPath is empty when match recording is disabled.
	JournalPath string
	// Seed is empty for a time-seeded session.
	Seed        string
	EnablePprof bool
}

// LoadEnv applies the given .env files (".env" when none are named) and
// reads the environment. Missing .env files are not an error.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return EnvFrom(os.LookupEnv)
}

// EnvFrom builds an Env from a lookup function such as os.LookupEnv.
func EnvFrom(lookup func(string) (string, bool)) (Env, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	env := Env{
		SettingsPath: get(EnvSettings, DefaultSettingsPath),
		Addr:         get(EnvAddr, DefaultAddr),
		HTTPAddr:     get(EnvHTTPAddr, DefaultHTTPAddr),
		LogJSONPath:  get(EnvLogJSONPath, DefaultLogJSONPath),
		JournalPath:  get(EnvJournalPath, ""),
		Seed:         get(EnvSeed, ""),
	}
	if env.SettingsPath == "" {
		env.SettingsPath = DefaultSettingsPath
	}
	if env.Addr == "" {
		env.Addr = DefaultAddr
	}

	for _, sink := range strings.Split(get(EnvLogSinks, "console"), ",") {
		if sink = strings.TrimSpace(sink); sink != "" {
			env.LogSinks = append(env.LogSinks, sink)
		}
	}

	level, err := logging.ParseSeverity(get(EnvLogLevel, "info"))
	if err != nil {
		return Env{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	env.LogLevel = level

	if raw := get(EnvEnablePprof, ""); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Env{}, fmt.Errorf("%s: %w", EnvEnablePprof, err)
		}
		env.EnablePprof = enabled
	}
	return env, nil
}
