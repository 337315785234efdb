package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Collector produces FileDiffs for one repository checkout. Safe for
// concurrent use: every operation is a read-only git invocation.
type Collector struct {
	path         string
	contextLines int
}

// NewCollector opens the repository at path. Returns a RepositoryError
// if path is not inside a git work tree.
func NewCollector(path string, contextLines int) (*Collector, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &RepositoryError{Path: path, Err: err}
	}
	if contextLines <= 0 {
		contextLines = 3
	}

	c := &Collector{path: absPath, contextLines: contextLines}
	if _, err := c.runGit(context.Background(), "rev-parse", "--git-dir"); err != nil {
		return nil, &RepositoryError{Path: absPath, Err: fmt.Errorf("not a git repository: %w", err)}
	}
	return c, nil
}

// Path returns the absolute repository path.
func (c *Collector) Path() string {
	return c.path
}

// runGit executes a git command and returns the output.
func (c *Collector) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, errMsg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}

	return stdout.String(), nil
}

// ResolveRef resolves a branch name or SHA to a full commit SHA.
func (c *Collector) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, err := c.runGit(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", &RepositoryError{Path: c.path, Ref: ref, Err: err}
	}
	return strings.TrimSpace(out), nil
}

// Collect returns the changed files between baseRef and headRef in the
// stable order git reports them. maxFileSize bounds the post-image line
// count: larger files keep only the first maxFileSize diff lines and
// are flagged truncated. Binary files carry no diff body.
func (c *Collector) Collect(ctx context.Context, baseRef, headRef string, maxFileSize int) ([]FileDiff, error) {
	if _, err := c.ResolveRef(ctx, baseRef); err != nil {
		return nil, err
	}
	if _, err := c.ResolveRef(ctx, headRef); err != nil {
		return nil, err
	}

	// base...head matches merge-request semantics: changes on the
	// head side since the merge base.
	rangeSpec := baseRef + "..." + headRef

	numstatOut, err := c.runGit(ctx, "diff", "--numstat", rangeSpec)
	if err != nil {
		return nil, &RepositoryError{Path: c.path, Ref: rangeSpec, Err: err}
	}
	binaryPaths := parseNumstatBinaries(numstatOut)

	unifiedFlag := fmt.Sprintf("--unified=%d", c.contextLines)
	diffOut, err := c.runGit(ctx, "diff", "--no-color", unifiedFlag, rangeSpec)
	if err != nil {
		return nil, &RepositoryError{Path: c.path, Ref: rangeSpec, Err: err}
	}

	files := parseDiff(diffOut)

	for i := range files {
		f := &files[i]

		if binaryPaths[f.Path] {
			f.IsBinary = true
			f.UnifiedDiff = ""
			continue
		}

		if f.Status == FileDeleted {
			// Empty post-image, nothing to truncate
			continue
		}

		if maxFileSize > 0 {
			lines, err := c.postImageLineCount(ctx, headRef, f.Path)
			if err != nil {
				// The path is present in the diff but unreadable at
				// headRef (e.g. submodule pointer); leave untruncated.
				continue
			}
			if lines > maxFileSize {
				f.UnifiedDiff = truncateDiff(f.UnifiedDiff, maxFileSize)
				f.IsTruncated = true
			}
		}
	}

	return files, nil
}

// postImageLineCount counts the lines of path as of ref.
func (c *Collector) postImageLineCount(ctx context.Context, ref, path string) (int, error) {
	out, err := c.runGit(ctx, "show", ref+":"+path)
	if err != nil {
		return 0, err
	}
	return countLines(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Collector) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &RepositoryError{Path: c.path, Err: err}
	}
	return strings.TrimSpace(out), nil
}

// parseNumstatBinaries returns the set of binary paths in numstat
// output. Binary entries report "-" for both line counts.
func parseNumstatBinaries(out string) map[string]bool {
	binaries := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		if fields[0] == "-" && fields[1] == "-" {
			binaries[normalizeNumstatPath(fields[2])] = true
		}
	}
	return binaries
}

// normalizeNumstatPath resolves the "old => new" form numstat uses for
// renames, including the brace form "dir/{old => new}/file".
func normalizeNumstatPath(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}

	if open := strings.Index(path, "{"); open != -1 {
		if close := strings.Index(path, "}"); close > open {
			inner := path[open+1 : close]
			parts := strings.SplitN(inner, " => ", 2)
			newInner := inner
			if len(parts) == 2 {
				newInner = parts[1]
			}
			resolved := path[:open] + newInner + path[close+1:]
			return strings.ReplaceAll(resolved, "//", "/")
		}
	}

	parts := strings.SplitN(path, " => ", 2)
	return parts[len(parts)-1]
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
