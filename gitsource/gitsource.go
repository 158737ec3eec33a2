// Package gitsource keeps an in-process view of remote, multi-writer git
// content fresh and write-back safe. Files are resolved through a refreshing
// per-repository cache; locally registered changes are buffered and pushed in
// batches by a background sync loop per repository.
package gitsource

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/brotherdetjr/deltabanana/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultSyncInterval       = time.Minute
	defaultNoChangeMultiplier = 10
	defaultCommitMessage      = "deltabanana: append registered entries"
)

// ParseFunc turns the file at localPath into the value cached for link.Path.
type ParseFunc func(localPath string, link FileLink) (any, error)

// ApplyFunc applies all payloads registered for target since the last
// successful sync to the working tree, in registration order.
type ApplyFunc func(payloads []any, target FileLink) error

// RemoteChangedFunc is invoked when a sync cycle observes a revision different
// from the previously cached one. It must not block the sync loop for long.
type RemoteChangedFunc func(url string, branch string)

// Config carries GitSource construction parameters. Zero values fall back to
// defaults; only BaseDir is required.
type Config struct {
	// BaseDir roots every repository's working directory.
	BaseDir string
	// SyncInterval is the background reconciliation tick per repository.
	SyncInterval time.Duration
	// NoChangeMultiplier bounds sync traffic for quiet repositories: with no
	// pending changes, repository I/O happens at most once every
	// NoChangeMultiplier ticks.
	NoChangeMultiplier int
	CommitMessage      string
	// CloneDepth limits history depth on the initial clone; zero clones the
	// full history. Deployments wanting the cheapest possible clone set 1.
	CloneDepth int
	// Auth applies to every clone, pull and push; nil means anonymous.
	Auth transport.AuthMethod

	OnRemoteChanged RemoteChangedFunc
	ApplyChanges    ApplyFunc

	Logger     logr.Logger
	Registerer prometheus.Registerer
}

// GitSource resolves FileLink references to parsed values, memoized per
// repository revision, and buffers change registrations for write-back on the
// next sync cycle.
type GitSource struct {
	baseDir       string
	commitMessage string
	multiplier    int
	cloneDepth    int
	auth          transport.AuthMethod

	onRemoteChanged RemoteChangedFunc
	applyChanges    ApplyFunc

	log     logr.Logger
	metrics *syncMetrics

	repos *cache.Refreshing[RepoLink, *repoFiles]

	// skip counters are strictly per repository key.
	skipMu sync.Mutex
	skips  map[RepoLink]int
}

// New builds a GitSource. The context bounds all background sync loops.
func New(ctx context.Context, cfg Config) *GitSource {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}
	if cfg.NoChangeMultiplier <= 0 {
		cfg.NoChangeMultiplier = defaultNoChangeMultiplier
	}
	if cfg.CommitMessage == "" {
		cfg.CommitMessage = defaultCommitMessage
	}

	s := &GitSource{
		baseDir:         cfg.BaseDir,
		commitMessage:   cfg.CommitMessage,
		multiplier:      cfg.NoChangeMultiplier,
		cloneDepth:      cfg.CloneDepth,
		auth:            cfg.Auth,
		onRemoteChanged: cfg.OnRemoteChanged,
		applyChanges:    cfg.ApplyChanges,
		log:             cfg.Logger,
		metrics:         newSyncMetrics(cfg.Registerer),
		skips:           make(map[RepoLink]int),
	}
	s.repos = cache.NewRefreshing(ctx, cfg.SyncInterval, s.syncRepo, s.commitDecision, cfg.Logger)
	return s
}

// Get resolves link to a parsed value, cloning or pulling the repository
// synchronously on first access. The value is memoized until the next sync
// cycle that touches the repository. Parse failures propagate to the caller.
func (s *GitSource) Get(ctx context.Context, link FileLink, parse ParseFunc) (any, error) {
	var result any
	err := s.locked(ctx, link.RepoLink, func(files *repoFiles) error {
		if value, ok := files.content[link.Path]; ok {
			result = value
			return nil
		}
		value, err := parse(filepath.Join(s.workDir(link.RepoLink), link.Path), link)
		if err != nil {
			return err
		}
		files.content[link.Path] = value
		result = value
		return nil
	})
	return result, err
}

// RegisterChange buffers payload for write-back to link's file on the next
// sync cycle. The path must have been fetched through Get before; otherwise a
// NotLoadedError is returned and nothing is buffered. No filesystem or
// network I/O happens here.
func (s *GitSource) RegisterChange(ctx context.Context, link FileLink, payload any) error {
	return s.locked(ctx, link.RepoLink, func(files *repoFiles) error {
		if _, ok := files.content[link.Path]; !ok {
			return notLoadedError("cannot register change for never-fetched path " + link.Path)
		}
		files.changes = append(files.changes, change{path: link.Path, payload: payload})
		return nil
	})
}

// Revision reports the head revision of the repository's cached state,
// cloning or pulling synchronously on first access.
func (s *GitSource) Revision(ctx context.Context, link RepoLink) (string, error) {
	var rev string
	err := s.locked(ctx, link, func(files *repoFiles) error {
		rev = files.rev
		return nil
	})
	return rev, err
}

// locked runs action on the repository's current state under its lock. The
// state object can be replaced by a concurrent background sync between lock
// retrieval and acquisition; the lock instance is stable across replacements,
// so the state is re-fetched after acquiring it.
func (s *GitSource) locked(ctx context.Context, link RepoLink, action func(*repoFiles) error) error {
	files, err := s.repos.Get(ctx, link)
	if err != nil {
		return err
	}
	files.mu.Lock()
	defer files.mu.Unlock()

	files, err = s.repos.Get(ctx, link)
	if err != nil {
		return err
	}
	return action(files)
}

// SyncNow forces one sync cycle for link's repository immediately, through
// the same skip-policy and commit-decision path as the background loop.
func (s *GitSource) SyncNow(link RepoLink) {
	s.repos.Refresh(link)
}

func (s *GitSource) workDir(link RepoLink) string {
	return filepath.Join(s.baseDir, link.DirName())
}
