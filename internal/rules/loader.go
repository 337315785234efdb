package rules

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed defaults/rules.json
var embeddedDefaults embed.FS

// Defaults returns the bot-wide default rule set shipped with the
// binary.
func Defaults() (RuleSet, error) {
	data, err := embeddedDefaults.ReadFile("defaults/rules.json")
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading embedded defaults: %w", err)
	}

	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return rs, nil
}

// LoadBotRules loads bot defaults from an external JSON document,
// replacing the embedded ones. An empty path returns the embedded set.
func LoadBotRules(path string) (RuleSet, error) {
	if path == "" {
		return Defaults()
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path comes from config
	if err != nil {
		return RuleSet{}, &ConfigError{Path: path, Err: err}
	}

	base, err := Defaults()
	if err != nil {
		return RuleSet{}, err
	}

	// The external document may be partial; unspecified fields keep
	// their embedded values.
	var ov Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return RuleSet{}, &ConfigError{Path: path, Err: err}
	}
	return Merge(base, ov), nil
}

// LoadProjectOverrides reads the override file at the repository root.
// A missing file returns (nil, nil); an unreadable or malformed file
// returns a ConfigError.
func LoadProjectOverrides(repoPath, filename string) (*Overrides, error) {
	path := filepath.Join(repoPath, filename)

	data, err := os.ReadFile(path) //nolint:gosec // Repo path comes from the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}

	var ov Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return &ov, nil
}
