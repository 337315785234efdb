package git

import (
	"strings"
)

// parseDiff splits raw `git diff` output into per-file FileDiffs,
// preserving the order git emitted them.
func parseDiff(diffText string) []FileDiff {
	if strings.TrimSpace(diffText) == "" {
		return []FileDiff{}
	}

	sections := splitFileSections(diffText)
	files := make([]FileDiff, 0, len(sections))
	for _, section := range sections {
		files = append(files, parseFileSection(section))
	}
	return files
}

// splitFileSections cuts the diff at every "diff --git" boundary.
func splitFileSections(diffText string) []string {
	var sections []string
	var current []string

	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
			}
			current = []string{line}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

// parseFileSection builds one FileDiff from a "diff --git" section.
// The diff body starts at the first hunk header; the metadata lines
// before it carry status and binary markers.
func parseFileSection(section string) FileDiff {
	lines := strings.Split(section, "\n")

	oldPath, newPath := parseDiffGitLine(lines[0])
	file := FileDiff{
		Path:   newPath,
		Status: FileModified,
	}

	bodyStart := -1
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "@@") {
			bodyStart = i
			break
		}
		switch {
		case strings.HasPrefix(line, "new file"):
			file.Status = FileAdded
		case strings.HasPrefix(line, "deleted file"):
			file.Status = FileDeleted
		case strings.HasPrefix(line, "rename from"):
			file.Status = FileRenamed
		case strings.HasPrefix(line, "Binary files"), strings.HasPrefix(line, "GIT binary patch"):
			file.IsBinary = true
		}
	}

	if file.Status == FileDeleted {
		// The post-image path is /dev/null; keep the old name
		file.Path = oldPath
	}
	if file.Status == FileRenamed && oldPath != newPath {
		file.OldPath = oldPath
	}
	file.Language = DetectLanguage(file.Path)

	if file.IsBinary || bodyStart == -1 {
		return file
	}

	body := lines[bodyStart:]
	for _, line := range body {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			file.Additions++
		case '-':
			file.Deletions++
		}
	}
	file.UnifiedDiff = strings.Join(body, "\n")

	return file
}

// parseDiffGitLine extracts paths from "diff --git a/path b/path".
func parseDiffGitLine(line string) (oldPath, newPath string) {
	const prefix = "diff --git "
	if !strings.HasPrefix(line, prefix) {
		return "", ""
	}

	rest := line[len(prefix):]

	idx := strings.Index(rest, " b/")
	if idx == -1 {
		return "", ""
	}

	if len(rest) > 2 && rest[0] == 'a' && rest[1] == '/' {
		oldPath = rest[2:idx]
	} else {
		oldPath = rest[:idx]
	}
	newPath = rest[idx+3:]

	return oldPath, newPath
}

// truncateDiff keeps the first maxLines lines of a diff body.
func truncateDiff(body string, maxLines int) string {
	lines := strings.Split(body, "\n")
	if len(lines) <= maxLines {
		return body
	}
	return strings.Join(lines[:maxLines], "\n")
}
