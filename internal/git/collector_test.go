package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// initTestRepo creates a repository with an initial commit on main and
// returns its path plus a helper for running git in it.
func initTestRepo(t *testing.T) (string, func(args ...string) string) {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		var out, errBuf bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &errBuf
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, errBuf.String())
		}
		return out.String()
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# demo\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial commit")

	return dir, run
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestNewCollectorRejectsNonRepo(t *testing.T) {
	_, err := NewCollector(t.TempDir(), 3)
	if err == nil {
		t.Fatal("expected error for non-repository path")
	}

	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Errorf("error type = %T, want *RepositoryError", err)
	}
}

func TestCollectUnknownRef(t *testing.T) {
	dir, _ := initTestRepo(t)

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	_, err = c.Collect(context.Background(), "main", "no-such-branch", 1000)
	if err == nil {
		t.Fatal("expected error for unknown ref")
	}

	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("error type = %T, want *RepositoryError", err)
	}
	if repoErr.Ref != "no-such-branch" {
		t.Errorf("Ref = %q, want no-such-branch", repoErr.Ref)
	}
}

func TestCollectAddedFile(t *testing.T) {
	dir, run := initTestRepo(t)

	run("checkout", "-b", "feature")
	var content strings.Builder
	for i := 0; i < 49; i++ {
		fmt.Fprintf(&content, "print(%d)\n", i)
	}
	writeFile(t, dir, "foo.py", content.String())
	run("add", ".")
	run("commit", "-m", "add foo")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	files, err := c.Collect(context.Background(), "main", "feature", 1000)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("collected %d files, want 1", len(files))
	}

	f := files[0]
	if f.Path != "foo.py" {
		t.Errorf("Path = %q, want foo.py", f.Path)
	}
	if f.Status != FileAdded {
		t.Errorf("Status = %v, want added", f.Status)
	}
	if f.Language != "python" {
		t.Errorf("Language = %q, want python", f.Language)
	}
	if f.IsTruncated {
		t.Error("49-line file must not be truncated with limit 1000")
	}
	if f.Additions != 49 {
		t.Errorf("Additions = %d, want 49", f.Additions)
	}
}

func TestCollectTruncatesLargeFile(t *testing.T) {
	dir, run := initTestRepo(t)

	run("checkout", "-b", "feature")
	var content strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	writeFile(t, dir, "big.txt", content.String())
	run("add", ".")
	run("commit", "-m", "add big file")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	files, err := c.Collect(context.Background(), "main", "feature", 100)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("collected %d files, want 1", len(files))
	}

	f := files[0]
	if !f.IsTruncated {
		t.Error("150-line file must be truncated with limit 100")
	}
	if got := len(strings.Split(f.UnifiedDiff, "\n")); got > 100 {
		t.Errorf("truncated diff has %d lines, want at most 100", got)
	}
}

func TestCollectDeletedFile(t *testing.T) {
	dir, run := initTestRepo(t)

	writeFile(t, dir, "gone.go", "package gone\n")
	run("add", ".")
	run("commit", "-m", "add gone")

	run("checkout", "-b", "feature")
	run("rm", "gone.go")
	run("commit", "-m", "remove gone")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	files, err := c.Collect(context.Background(), "main", "feature", 1000)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("collected %d files, want 1", len(files))
	}

	f := files[0]
	if f.Path != "gone.go" {
		t.Errorf("Path = %q, want gone.go", f.Path)
	}
	if f.Status != FileDeleted {
		t.Errorf("Status = %v, want deleted", f.Status)
	}
	if f.IsTruncated {
		t.Error("deleted file must not be truncated")
	}
}

func TestCollectBinaryFile(t *testing.T) {
	dir, run := initTestRepo(t)

	run("checkout", "-b", "feature")
	blob := append([]byte{0x89, 'P', 'N', 'G', 0x00, 0x1a}, bytes.Repeat([]byte{0x00, 0xff}, 64)...)
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), blob, 0o644); err != nil {
		t.Fatalf("writing binary: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "add logo")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	files, err := c.Collect(context.Background(), "main", "feature", 1000)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("collected %d files, want 1", len(files))
	}

	f := files[0]
	if !f.IsBinary {
		t.Error("binary file not flagged")
	}
	if f.UnifiedDiff != "" {
		t.Errorf("binary UnifiedDiff = %q, want empty", f.UnifiedDiff)
	}
	if f.Path != "logo.png" {
		t.Errorf("Path = %q, want logo.png", f.Path)
	}
}

func TestCollectStableOrdering(t *testing.T) {
	dir, run := initTestRepo(t)

	run("checkout", "-b", "feature")
	writeFile(t, dir, "alpha.go", "package alpha\n")
	writeFile(t, dir, "beta.py", "x = 1\n")
	writeFile(t, dir, "gamma.js", "let y = 2\n")
	run("add", ".")
	run("commit", "-m", "add files")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	first, err := c.Collect(context.Background(), "main", "feature", 1000)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	second, err := c.Collect(context.Background(), "main", "feature", 1000)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("collected %d and %d files, want 3 and 3", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Errorf("file %d order differs: %q vs %q", i, first[i].Path, second[i].Path)
		}
	}
}

func TestCollectConcurrentReads(t *testing.T) {
	dir, run := initTestRepo(t)

	run("checkout", "-b", "feature")
	writeFile(t, dir, "one.go", "package one\n")
	run("add", ".")
	run("commit", "-m", "add one")

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			files, err := c.Collect(context.Background(), "main", "feature", 1000)
			if err != nil {
				errs <- err
				return
			}
			if len(files) != 1 {
				errs <- fmt.Errorf("collected %d files, want 1", len(files))
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Collect: %v", err)
	}
}

func TestResolveRef(t *testing.T) {
	dir, run := initTestRepo(t)
	want := strings.TrimSpace(run("rev-parse", "HEAD"))

	c, err := NewCollector(dir, 3)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	got, err := c.ResolveRef(context.Background(), "main")
	if err != nil {
		t.Fatalf("ResolveRef() error = %v", err)
	}
	if got != want {
		t.Errorf("ResolveRef(main) = %q, want %q", got, want)
	}

	if _, err := c.ResolveRef(context.Background(), "missing"); err == nil {
		t.Error("expected error for unresolvable ref")
	}
}
