package gitsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
)

// createRemote builds a bare repository seeded with files on the main branch
// and returns its directory, usable as a clone URL.
func createRemote(t *testing.T, files map[string]string) string {
	t.Helper()

	remoteDir := t.TempDir()
	if _, err := gogit.PlainInit(remoteDir, true); err != nil {
		t.Fatalf("failed to init bare remote: %v", err)
	}

	seedDir := t.TempDir()
	seedRepo, err := gogit.PlainInit(seedDir, false)
	if err != nil {
		t.Fatalf("failed to init seed repo: %v", err)
	}
	commitFiles(t, seedRepo, seedDir, files, "seed commit")

	if _, err := seedRepo.CreateRemote(&gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteDir},
	}); err != nil {
		t.Fatalf("failed to create seed remote: %v", err)
	}
	pushMain(t, seedRepo)

	return remoteDir
}

// peerClone clones the remote's main branch into a fresh directory, playing
// the role of an external collection maintainer.
func peerClone(t *testing.T, remoteDir string) (*gogit.Repository, string) {
	t.Helper()

	peerDir := t.TempDir()
	repo, err := gogit.PlainClone(peerDir, false, &gogit.CloneOptions{
		URL:           remoteDir,
		ReferenceName: plumbing.NewBranchReferenceName("main"),
		SingleBranch:  true,
	})
	if err != nil {
		t.Fatalf("failed to clone remote: %v", err)
	}
	return repo, peerDir
}

func commitFiles(t *testing.T, repo *gogit.Repository, repoDir string, files map[string]string, message string) {
	t.Helper()

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(repoDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create commit directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write commit file: %v", err)
		}
		if _, err := worktree.Add(name); err != nil {
			t.Fatalf("failed to add file: %v", err)
		}
	}
	if _, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "deltabanana-test",
			Email: "deltabanana@example.com",
			When:  time.Now(),
		},
	}); err != nil {
		t.Fatalf("failed to commit files: %v", err)
	}
}

func pushMain(t *testing.T, repo *gogit.Repository) {
	t.Helper()

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to resolve head branch: %v", err)
	}
	if err := repo.Push(&gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs: []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/main", head.Name().Short())),
		},
	}); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		t.Fatalf("failed to push commit: %v", err)
	}
}

type applyCall struct {
	path     string
	payloads []any
}

// recorder captures write-back applier calls and remote-changed
// notifications; its applier appends each payload as a line to the target
// file.
type recorder struct {
	mu       sync.Mutex
	applies  []applyCall
	notified []string
}

func (r *recorder) applier(baseDir string) ApplyFunc {
	return func(payloads []any, target FileLink) error {
		r.mu.Lock()
		r.applies = append(r.applies, applyCall{path: target.Path, payloads: payloads})
		r.mu.Unlock()

		path := filepath.Join(baseDir, target.DirName(), target.Path)
		file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer file.Close()
		for _, payload := range payloads {
			if _, err := fmt.Fprintf(file, "%v\n", payload); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *recorder) onRemoteChanged(url string, branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, url+"@"+branch)
}

func (r *recorder) applyCalls() []applyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]applyCall(nil), r.applies...)
}

func (r *recorder) notifications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notified...)
}

// newSource builds a GitSource over a fresh working-copy root with an idle
// background interval; tests drive sync cycles through SyncNow.
func newSource(t *testing.T, rec *recorder, multiplier int) (*GitSource, string) {
	t.Helper()

	baseDir := t.TempDir()
	source := New(context.Background(), Config{
		BaseDir:            baseDir,
		SyncInterval:       time.Hour,
		NoChangeMultiplier: multiplier,
		CommitMessage:      "test write-back",
		OnRemoteChanged:    rec.onRemoteChanged,
		ApplyChanges:       rec.applier(baseDir),
		Logger:             logr.Discard(),
	})
	return source, baseDir
}

// readFileParser returns file contents as a string and counts invocations.
func readFileParser(count *int) ParseFunc {
	return func(localPath string, link FileLink) (any, error) {
		if count != nil {
			*count++
		}
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}
