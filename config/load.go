package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/brotherdetjr/deltabanana/faults"
	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, faults.NewTypedError(faults.NotFoundError, "configuration file not found: "+path, err)
		}
		return Config{}, faults.NewTypedError(faults.InternalError, "failed to read configuration file", err)
	}
	return decode(data)
}

func decode(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, faults.NewTypedError(faults.ValidationError, "invalid configuration yaml", err)
	}

	cfg = applyDefaults(cfg)
	cfg.BotToken = os.Getenv(TokenEnvVar)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	if cfg.BotPollIntervalSeconds == 0 {
		cfg.BotPollIntervalSeconds = 2
	}
	if cfg.CollectionSync.IntervalSeconds == 0 {
		cfg.CollectionSync.IntervalSeconds = 60
	}
	if cfg.CollectionSync.NoChangeMultiplier == 0 {
		cfg.CollectionSync.NoChangeMultiplier = 10
	}
	if cfg.CollectionSync.CommitMessage == "" {
		cfg.CollectionSync.CommitMessage = "Commit by deltabanana bot"
	}
	if cfg.CollectionSync.CloneDepth == 0 {
		cfg.CollectionSync.CloneDepth = 1
	}
	if cfg.ActiveUserSessions.MaxCount == 0 {
		cfg.ActiveUserSessions.MaxCount = 1000
	}
	if cfg.ActiveUserSessions.InactivityTimeoutSeconds == 0 {
		cfg.ActiveUserSessions.InactivityTimeoutSeconds = 604800
	}
	if cfg.Nudge.JobIntervalSeconds == 0 {
		cfg.Nudge.JobIntervalSeconds = 300
	}
	if cfg.Nudge.ActiveIntervalSeconds == 0 {
		cfg.Nudge.ActiveIntervalSeconds = 43200
	}
	if cfg.Nudge.IdlingIntervalSeconds == 0 {
		cfg.Nudge.IdlingIntervalSeconds = 7200
	}
	return cfg
}

func validate(cfg Config) error {
	if cfg.CollectionSync.IntervalSeconds < 0 {
		return validationError("collection-sync.interval-seconds must not be negative")
	}
	if cfg.CollectionSync.NoChangeMultiplier < 1 {
		return validationError("collection-sync.no-change-multiplier must be at least 1")
	}
	if cfg.ActiveUserSessions.MaxCount < 1 {
		return validationError("active-user-sessions.max-count must be at least 1")
	}

	seen := map[string]struct{}{}
	for idx, descriptor := range cfg.Collections {
		if descriptor.URL == "" {
			return validationError(fmt.Sprintf("collections[%d].url must not be empty", idx))
		}
		if descriptor.Path == "" {
			return validationError(fmt.Sprintf("collections[%d].path must not be empty", idx))
		}
		if descriptor.Title == "" {
			return validationError(fmt.Sprintf("collections[%d].title must not be empty", idx))
		}
		key := descriptor.URL + "|" + descriptor.Branch + "|" + descriptor.Path
		if _, exists := seen[key]; exists {
			return validationError(fmt.Sprintf("duplicate collection %q", descriptor.Title))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validationError(message string) error {
	return faults.NewTypedError(faults.ValidationError, message, nil)
}
