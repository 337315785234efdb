// Package git collects merge-request diffs from a local repository.
package git

import "fmt"

// FileDiff is one changed file between two refs.
// Read-only once produced.
type FileDiff struct {
	// Path is the post-image path (old path for deletions)
	Path string `json:"path"`

	// OldPath is set for renames
	OldPath string `json:"old_path,omitempty"`

	Status FileStatus `json:"status"`

	// Language is inferred from the file extension; "text" when unknown
	Language string `json:"language"`

	// UnifiedDiff is the diff body including hunk headers. Empty for
	// binary files.
	UnifiedDiff string `json:"unified_diff"`

	// IsBinary marks files excluded from diff generation
	IsBinary bool `json:"is_binary"`

	// IsTruncated is set when the post-image exceeded the size limit
	// and only a bounded prefix of the diff is included
	IsTruncated bool `json:"is_truncated"`

	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// FileStatus represents the status of a file in the diff.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileDeleted  FileStatus = "deleted"
	FileRenamed  FileStatus = "renamed"
)

// RepositoryError reports an invalid repository path or an unresolvable
// ref. Fatal to the run.
type RepositoryError struct {
	Path string
	Ref  string
	Err  error
}

func (e *RepositoryError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("repository error: %s: ref %q: %v", e.Path, e.Ref, e.Err)
	}
	return fmt.Sprintf("repository error: %s: %v", e.Path, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}
