package git

import "strings"

// extToLanguage maps file extensions to language names.
var extToLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sql":   "sql",
	".md":    "markdown",
	".tf":    "terraform",
	".proto": "protobuf",
}

// DetectLanguage infers the language from a path's extension.
// Unknown extensions and extensionless files are "text".
func DetectLanguage(path string) string {
	ext := extractExtension(path)
	if ext == "" {
		return "text"
	}
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return "text"
}

// extractExtension extracts the lowercase extension from a path.
func extractExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return strings.ToLower(path[i:])
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
