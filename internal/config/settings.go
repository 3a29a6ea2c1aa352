package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"deckhand/internal/config/tomlkeys"
)

//go:embed defaults.toml
var DefaultsPayload []byte

type Settings struct {
	Pty      PtySettings
	Shutdown ShutdownSettings
	Watch    WatchSettings
	Log      LogSettings
	Recovery RecoverySettings

	// UnknownKeys lists settings-file keys that deckhand does not recognize.
	UnknownKeys []string
}

type PtySettings struct {
	ReadyThreshold  int64
	DefaultCols     uint16
	DefaultRows     uint16
	ReadBufferBytes int64
	ReadRetryLimit  int64
	ReadRetryDelay  time.Duration
	Shell           string
	Term            string
	ColorTerm       string
}

type ShutdownSettings struct {
	HangupGrace    time.Duration
	TerminateGrace time.Duration
}

type WatchSettings struct {
	Tick           time.Duration
	FileDebounce   time.Duration
	ExistenceCheck time.Duration
	StatePoll      time.Duration
	ConfigDebounce time.Duration
	ConfigDirName  string
}

type LogSettings struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type RecoverySettings struct {
	PIDFile string
}

// Default returns the embedded defaults without reading any file.
func Default() Settings {
	settings, err := LoadSettings("", DefaultsPayload, nil)
	if err != nil {
		panic("config: embedded defaults are invalid: " + err.Error())
	}
	return settings
}

// LoadSettings layers defaultsPayload, the TOML file at path (if present) and
// overrides, in that order. Missing files are not an error. Keys the defaults
// do not define are reported in UnknownKeys and otherwise ignored.
func LoadSettings(path string, defaultsPayload []byte, overrides map[string]any) (Settings, error) {
	defaults, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Settings{}, fmt.Errorf("decode defaults: %w", err)
	}
	values := defaults
	var unknown []string

	if path = strings.TrimSpace(path); path != "" {
		payload, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Settings{}, err
		default:
			file, err := tomlkeys.Decode(payload)
			if err != nil {
				return Settings{}, fmt.Errorf("%s: %w", path, err)
			}
			unknown = file.Unknown(defaults)
			values = values.Overlay(file)
		}
	}
	for key, value := range overrides {
		values = values.With(key, value)
	}

	r := reader{values: values, defaults: defaults}
	settings := Settings{UnknownKeys: unknown}

	settings.Pty.ReadyThreshold = r.positiveInt("pty.ready-threshold", 50)
	settings.Pty.DefaultCols = r.dimension("pty.default-cols", 80)
	settings.Pty.DefaultRows = r.dimension("pty.default-rows", 24)
	settings.Pty.ReadBufferBytes = r.positiveInt("pty.read-buffer-bytes", 4096)
	settings.Pty.ReadRetryLimit = r.positiveInt("pty.read-retry-limit", 10)
	settings.Pty.ReadRetryDelay = r.millis("pty.read-retry-delay-ms")
	settings.Pty.Shell, _ = values.GetString("pty.shell")
	settings.Pty.Term = r.nonEmpty("pty.term", "xterm-256color")
	settings.Pty.ColorTerm = r.nonEmpty("pty.colorterm", "truecolor")

	settings.Shutdown.HangupGrace = r.millis("shutdown.hangup-grace-ms")
	settings.Shutdown.TerminateGrace = r.millis("shutdown.terminate-grace-ms")

	settings.Watch.Tick = r.millis("watch.tick-ms")
	settings.Watch.FileDebounce = r.millis("watch.file-debounce-ms")
	settings.Watch.ExistenceCheck = r.millis("watch.existence-check-ms")
	settings.Watch.StatePoll = r.millis("watch.state-poll-ms")
	settings.Watch.ConfigDebounce = r.millis("watch.config-debounce-ms")
	settings.Watch.ConfigDirName = r.nonEmpty("watch.config-dir-name", ".deckhand")

	settings.Log.Level = r.nonEmpty("log.level", "info")
	if _, ok := levelNames[strings.ToLower(settings.Log.Level)]; !ok {
		settings.Log.Level, _ = defaults.GetString("log.level")
	}
	settings.Log.Dir, _ = values.GetString("log.dir")
	settings.Log.MaxSizeMB = int(r.positiveInt("log.max-size-mb", 10))
	settings.Log.MaxBackups = int(r.positiveInt("log.max-backups", 5))
	settings.Log.MaxAgeDays = int(r.positiveInt("log.max-age-days", 10))
	settings.Log.Compress = r.boolean("log.compress")

	settings.Recovery.PIDFile, _ = values.GetString("recovery.pid-file")

	return settings, nil
}

var levelNames = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

// reader resolves layered values, falling back to the embedded defaults when
// a value is missing, mistyped or out of range.
type reader struct {
	values   tomlkeys.Store
	defaults tomlkeys.Store
}

func (r reader) positiveInt(key string, fallback int64) int64 {
	if value, ok := r.values.GetInt(key); ok && value > 0 {
		return value
	}
	if value, ok := r.defaults.GetInt(key); ok && value > 0 {
		return value
	}
	return fallback
}

// dimension reads a terminal size, which the pty layer carries as uint16.
func (r reader) dimension(key string, fallback uint16) uint16 {
	if value, ok := r.values.GetInt(key); ok && value > 0 && value <= math.MaxUint16 {
		return uint16(value)
	}
	if value, ok := r.defaults.GetInt(key); ok && value > 0 && value <= math.MaxUint16 {
		return uint16(value)
	}
	return fallback
}

func (r reader) millis(key string) time.Duration {
	if value, ok := r.values.GetMillis(key); ok && value > 0 {
		return value
	}
	value, _ := r.defaults.GetMillis(key)
	return value
}

func (r reader) nonEmpty(key, fallback string) string {
	if value, ok := r.values.GetString(key); ok && value != "" {
		return value
	}
	if value, ok := r.defaults.GetString(key); ok && value != "" {
		return value
	}
	return fallback
}

func (r reader) boolean(key string) bool {
	if value, ok := r.values.GetBool(key); ok {
		return value
	}
	value, _ := r.defaults.GetBool(key)
	return value
}
