package config

import (
	"time"

	"github.com/brotherdetjr/deltabanana/gitsource"
)

const (
	TokenEnvVar       = "DELTABANANA_TOKEN"
	DefaultConfigPath = "deltabanana.yaml"
	DefaultBranch     = "main"
)

// Config is the process configuration loaded from deltabanana.yaml. The bot
// token comes from the DELTABANANA_TOKEN environment variable, never from the
// file.
type Config struct {
	BaseDir                string                 `yaml:"base-dir,omitempty"`
	Locale                 string                 `yaml:"locale,omitempty"`
	Admin                  string                 `yaml:"admin,omitempty"`
	BotPollIntervalSeconds int                    `yaml:"bot-poll-interval-seconds,omitempty"`
	CollectionSync         CollectionSync         `yaml:"collection-sync,omitempty"`
	ActiveUserSessions     ActiveUserSessions     `yaml:"active-user-sessions,omitempty"`
	Nudge                  Nudge                  `yaml:"nudge,omitempty"`
	Collections            []CollectionDescriptor `yaml:"collections"`

	BotToken string `yaml:"-"`
}

type CollectionSync struct {
	IntervalSeconds    int    `yaml:"interval-seconds,omitempty"`
	NoChangeMultiplier int    `yaml:"no-change-multiplier,omitempty"`
	CommitMessage      string `yaml:"commit-message,omitempty"`
	CloneDepth         int    `yaml:"clone-depth,omitempty"`
}

func (c CollectionSync) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type ActiveUserSessions struct {
	MaxCount                 int `yaml:"max-count,omitempty"`
	InactivityTimeoutSeconds int `yaml:"inactivity-timeout-seconds,omitempty"`
}

func (s ActiveUserSessions) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutSeconds) * time.Second
}

type Nudge struct {
	JobIntervalSeconds    int `yaml:"job-interval-seconds,omitempty"`
	ActiveIntervalSeconds int `yaml:"active-interval-seconds,omitempty"`
	IdlingIntervalSeconds int `yaml:"idling-interval-seconds,omitempty"`
}

// CollectionDescriptor points at one collection directory in a remote git
// repository.
type CollectionDescriptor struct {
	URL        string `yaml:"url"`
	Branch     string `yaml:"branch,omitempty"`
	Path       string `yaml:"path"`
	Title      string `yaml:"title"`
	Restricted *bool  `yaml:"restricted,omitempty"`
}

func (d CollectionDescriptor) FileLink() gitsource.FileLink {
	branch := d.Branch
	if branch == "" {
		branch = DefaultBranch
	}
	return gitsource.FileLink{
		RepoLink: gitsource.RepoLink{URL: d.URL, Branch: branch},
		Path:     d.Path,
	}
}

// RestrictedEnabled reports whether appending entries is limited to the
// admin; unset means restricted.
func (d CollectionDescriptor) RestrictedEnabled() bool {
	if d.Restricted == nil {
		return true
	}
	return *d.Restricted
}
