package gitsource

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brotherdetjr/deltabanana/faults"
)

func TestDirNameDeterministicAndDistinct(t *testing.T) {
	t.Parallel()

	link := RepoLink{URL: "https://example.com/words.git", Branch: "main"}
	if link.DirName() != link.DirName() {
		t.Fatal("expected deterministic directory name")
	}
	if !strings.HasPrefix(link.DirName(), ".gitlink_") {
		t.Fatalf("unexpected directory name %q", link.DirName())
	}

	other := RepoLink{URL: "https://example.com/words.git", Branch: "dev"}
	if link.DirName() == other.DirName() {
		t.Fatal("distinct branches must map to distinct directories")
	}
}

func TestGetClonesAndMemoizesParsedValue(t *testing.T) {
	t.Parallel()

	remote := createRemote(t, map[string]string{"words.txt": "hello\n"})
	rec := &recorder{}
	source, _ := newSource(t, rec, 1)
	link := FileLink{RepoLink: RepoLink{URL: remote, Branch: "main"}, Path: "words.txt"}

	parses := 0
	value, err := source.Get(context.Background(), link, readFileParser(&parses))
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != "hello\n" {
		t.Fatalf("unexpected parsed value %q", value)
	}

	if _, err := source.Get(context.Background(), link, readFileParser(&parses)); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if parses != 1 {
		t.Fatalf("expected one parse, got %d", parses)
	}
}

func TestGetPropagatesParseFailure(t *testing.T) {
	t.Parallel()

	remote := createRemote(t, map[string]string{"words.txt": "hello\n"})
	rec := &recorder{}
	source, _ := newSource(t, rec, 1)
	link := FileLink{RepoLink: RepoLink{URL: remote, Branch: "main"}, Path: "words.txt"}

	parseErr := errors.New("malformed collection")
	_, err := source.Get(context.Background(), link, func(string, FileLink) (any, error) {
		return nil, parseErr
	})
	if !errors.Is(err, parseErr) {
		t.Fatalf("expected parse failure to propagate, got %v", err)
	}

	// A failed parse is not memoized; the next Get parses again.
	parses := 0
	if _, err := source.Get(context.Background(), link, readFileParser(&parses)); err != nil {
		t.Fatalf("Get after failed parse returned error: %v", err)
	}
	if parses != 1 {
		t.Fatalf("expected a fresh parse, got %d", parses)
	}
}

func TestGetCloneFailurePropagates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	source, _ := newSource(t, rec, 1)
	link := FileLink{
		RepoLink: RepoLink{URL: t.TempDir() + "/does-not-exist", Branch: "main"},
		Path:     "words.txt",
	}

	if _, err := source.Get(context.Background(), link, readFileParser(nil)); err == nil {
		t.Fatal("expected clone failure to propagate to the caller")
	}
}

func TestRegisterChangeRequiresPriorFetch(t *testing.T) {
	t.Parallel()

	remote := createRemote(t, map[string]string{"words.txt": "hello\n"})
	rec := &recorder{}
	source, _ := newSource(t, rec, 1)
	repoLink := RepoLink{URL: remote, Branch: "main"}
	fetched := FileLink{RepoLink: repoLink, Path: "words.txt"}

	// The repository itself must exist in the cache before the path check
	// can run, so fetch one path first.
	if _, err := source.Get(context.Background(), fetched, readFileParser(nil)); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	unfetched := FileLink{RepoLink: repoLink, Path: "other.txt"}
	err := source.RegisterChange(context.Background(), unfetched, "row")
	if !faults.IsCategory(err, faults.NotLoadedError) {
		t.Fatalf("expected not-loaded error, got %v", err)
	}

	// The rejected registration buffered nothing: the next cycle applies no
	// changes.
	source.SyncNow(repoLink)
	if calls := rec.applyCalls(); len(calls) != 0 {
		t.Fatalf("rejected change reached the applier: %v", calls)
	}

	if err := source.RegisterChange(context.Background(), fetched, "row"); err != nil {
		t.Fatalf("RegisterChange after fetch returned error: %v", err)
	}
}
