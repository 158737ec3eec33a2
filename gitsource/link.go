package gitsource

import (
	"crypto/sha256"
	"encoding/hex"
)

// RepoLink identifies one remote git repository and tracked branch. It is an
// immutable value used as a cache key.
type RepoLink struct {
	URL    string
	Branch string
}

// DirName derives the repository's local working-directory name. The name is
// deterministic across process restarts so an existing clone is reused, and
// collision-resistant across distinct url+branch pairs.
func (l RepoLink) DirName() string {
	sum := sha256.Sum256([]byte(l.URL + ":" + l.Branch))
	return ".gitlink_" + hex.EncodeToString(sum[:16])
}

func (l RepoLink) String() string {
	return l.URL + "@" + l.Branch
}

// FileLink identifies one file (or directory) inside a repository.
type FileLink struct {
	RepoLink
	Path string
}
