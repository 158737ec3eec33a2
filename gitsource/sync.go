package gitsource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const defaultRemoteName = "origin"

// repoFiles is the cached state of one repository. The lock instance is
// created on the first sync and carried forward across refreshes, never
// replaced; the content map is reset on every cycle that performed real
// repository I/O.
type repoFiles struct {
	rev     string
	mu      *sync.Mutex
	content map[string]any
	changes []change
}

type change struct {
	path    string
	payload any
}

// syncRepo is the loader plugged into the refreshing cache: it brings the
// repository's working copy in line with its remote, applies buffered writes,
// and returns the resulting state. On a skipped cycle the previous state is
// returned unchanged.
func (s *GitSource) syncRepo(ctx context.Context, link RepoLink, prev *repoFiles, hasPrev bool) (*repoFiles, error) {
	lock := &sync.Mutex{}
	if hasPrev {
		lock = prev.mu
	}
	lock.Lock()
	defer lock.Unlock()

	if hasPrev && len(prev.changes) == 0 && s.shouldSkip(link) {
		s.metrics.skips.Inc()
		return prev, nil
	}
	s.resetSkip(link)

	var pending []change
	if hasPrev {
		pending = prev.changes
	}

	s.metrics.cycles.Inc()
	repo, err := s.openOrClone(ctx, link)
	if err != nil {
		return nil, err
	}

	rev, err := headRevision(repo)
	if err != nil {
		return nil, err
	}
	s.log.V(1).Info("synced repository", "repo", link.String(), "revision", rev)

	remaining, rev, err := s.writeBack(ctx, link, repo, pending, rev)
	if err != nil {
		return nil, err
	}

	// When the revision did not advance the cache keeps prev instead of the
	// returned state, so the surviving pending list must land on prev too.
	// Otherwise no-op registrations would be re-applied every tick and keep
	// the skip policy disengaged.
	if hasPrev {
		prev.changes = remaining
	}

	return &repoFiles{
		rev:     rev,
		mu:      lock,
		content: make(map[string]any),
		changes: remaining,
	}, nil
}

// commitDecision gates cache commits on the revision actually changing, and
// doubles as the notification point for externally originated changes.
func (s *GitSource) commitDecision(link RepoLink, prev *repoFiles, next *repoFiles, hasPrev bool) bool {
	if hasPrev && prev.rev == next.rev {
		return false
	}
	s.metrics.remoteChanges.Inc()
	if s.onRemoteChanged != nil {
		s.onRemoteChanged(link.URL, link.Branch)
	}
	return true
}

func (s *GitSource) shouldSkip(link RepoLink) bool {
	s.skipMu.Lock()
	defer s.skipMu.Unlock()

	if s.skips[link] < s.multiplier-1 {
		s.skips[link]++
		return true
	}
	return false
}

func (s *GitSource) resetSkip(link RepoLink) {
	s.skipMu.Lock()
	defer s.skipMu.Unlock()
	s.skips[link] = 0
}

func (s *GitSource) openOrClone(ctx context.Context, link RepoLink) (*gogit.Repository, error) {
	dir := s.workDir(link)
	repo, err := gogit.PlainOpen(dir)
	if err == nil {
		if pullErr := s.cleanAndPull(ctx, link, repo); pullErr != nil {
			return nil, pullErr
		}
		return repo, nil
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, internalError("failed to open git repository", err)
	}

	s.log.Info("cloning repository", "repo", link.String(), "dir", dir)
	repo, err = gogit.PlainCloneContext(ctx, dir, false, s.cloneOptions(link))
	if err != nil {
		return nil, classifyRemoteError("failed to clone repository", err)
	}
	return repo, nil
}

func (s *GitSource) cloneOptions(link RepoLink) *gogit.CloneOptions {
	return &gogit.CloneOptions{
		URL:           link.URL,
		ReferenceName: plumbing.NewBranchReferenceName(link.Branch),
		SingleBranch:  true,
		Depth:         s.cloneDepth,
		Auth:          s.auth,
	}
}

// cleanAndPull discards untracked files and local modifications, then
// fast-forwards the tracked branch from the remote.
func (s *GitSource) cleanAndPull(ctx context.Context, link RepoLink, repo *gogit.Repository) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return internalError("failed to open git worktree", err)
	}
	if err := worktree.Clean(&gogit.CleanOptions{Dir: true}); err != nil {
		return internalError("failed to clean git worktree", err)
	}
	if err := worktree.Reset(&gogit.ResetOptions{Mode: gogit.HardReset}); err != nil {
		return internalError("failed to reset git worktree", err)
	}

	pullErr := worktree.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    defaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(link.Branch),
		SingleBranch:  true,
		Force:         true,
		Auth:          s.auth,
	})
	if pullErr != nil && !errors.Is(pullErr, gogit.NoErrAlreadyUpToDate) {
		return classifyRemoteError("failed to pull repository", pullErr)
	}
	return nil
}

// writeBack applies pending changes to the working tree grouped per path,
// commits and pushes anything actually modified, and reports the surviving
// pending list and head revision. A failed push keeps the pending list intact
// and rolls the local branch back so the next cycle can pull cleanly.
func (s *GitSource) writeBack(
	ctx context.Context,
	link RepoLink,
	repo *gogit.Repository,
	pending []change,
	pulledRev string,
) ([]change, string, error) {
	if len(pending) > 0 && s.applyChanges != nil {
		order, groups := groupChanges(pending)
		for _, path := range order {
			if err := s.applyChanges(groups[path], FileLink{RepoLink: link, Path: path}); err != nil {
				return nil, "", err
			}
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, "", internalError("failed to open git worktree", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, "", internalError("failed to inspect git worktree status", err)
	}
	if status.IsClean() {
		if len(pending) > 0 {
			s.log.Info("registered changes made no change to the working tree", "repo", link.String())
		}
		return nil, pulledRev, nil
	}

	if err := worktree.AddGlob("."); err != nil {
		return nil, "", internalError("failed to stage git changes", err)
	}
	if _, err := worktree.Commit(s.commitMessage, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "deltabanana",
			Email: "deltabanana@local",
			When:  time.Now(),
		},
	}); err != nil {
		return nil, "", internalError("failed to commit git changes", err)
	}

	pushErr := repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: defaultRemoteName,
		Auth:       s.auth,
		RefSpecs: []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", link.Branch, link.Branch)),
		},
	})
	if pushErr != nil && !errors.Is(pushErr, gogit.NoErrAlreadyUpToDate) {
		s.metrics.pushFailures.Inc()
		s.log.Info("push failed, keeping pending changes for retry",
			"repo", link.String(),
			"cause", classifyRemoteError("push rejected", pushErr).Error())
		// Roll the unpushed commit back so the next cycle pulls cleanly and
		// re-applies the retained changes.
		if resetErr := worktree.Reset(&gogit.ResetOptions{
			Mode:   gogit.HardReset,
			Commit: plumbing.NewHash(pulledRev),
		}); resetErr != nil {
			return nil, "", internalError("failed to roll back unpushed commit", resetErr)
		}
		return pending, pulledRev, nil
	}

	rev, err := headRevision(repo)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("pushed registered changes", "repo", link.String(), "revision", rev)
	return nil, rev, nil
}

// groupChanges groups pending changes by path, preserving registration order
// within each group and first-registration order across groups.
func groupChanges(pending []change) ([]string, map[string][]any) {
	order := make([]string, 0, len(pending))
	groups := make(map[string][]any, len(pending))
	for _, c := range pending {
		if _, seen := groups[c.path]; !seen {
			order = append(order, c.path)
		}
		groups[c.path] = append(groups[c.path], c.payload)
	}
	return order, groups
}

func headRevision(repo *gogit.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", internalError("failed to resolve git head", err)
	}
	return head.Hash().String(), nil
}
