// Package discovery locates Claude Code log directories and enumerates
// the JSONL session files inside them.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LogExtension is the file extension of Claude Code session logs.
const LogExtension = ".jsonl"

// EnvOverride names the environment variable holding a comma-separated
// list of log directory overrides.
const EnvOverride = "CLAUDE_CONFIG_DIR"

// Discovery filters candidate log directories. Missing or unreadable
// candidates are silently excluded; discovery is a filter, not an error
// condition.
type Discovery struct {
	overrides []string
	log       zerolog.Logger
}

// New builds a Discovery. overrides (from configuration) take
// precedence; when empty, the EnvOverride variable is consulted.
func New(overrides []string, log zerolog.Logger) Discovery {
	return Discovery{overrides: overrides, log: log}
}

// ProjectDirs returns the candidate directories that exist and contain
// at least one log file.
func (d Discovery) ProjectDirs() []string {
	candidates := append([]string{}, d.overrides...)

	if len(candidates) == 0 {
		if env := os.Getenv(EnvOverride); env != "" {
			for _, raw := range strings.Split(env, ",") {
				if trimmed := strings.TrimSpace(raw); trimmed != "" {
					candidates = append(candidates, trimmed)
				}
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "claude", "projects"),
			filepath.Join(home, ".claude", "projects"),
		)
	}

	var dirs []string
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		if containsLogFiles(candidate) {
			dirs = append(dirs, candidate)
		}
	}

	d.log.Debug().Int("dirs", len(dirs)).Msg("discovered project directories")
	return dirs
}

// LogFiles enumerates all log files under the given directories,
// skipping hidden files and directories.
func (d Discovery) LogFiles(dirs []string) []string {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable subtrees
			}
			if hidden(entry.Name()) && path != dir {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(path), LogExtension) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			d.log.Warn().Err(err).Str("dir", dir).Msg("walk failed")
		}
	}

	d.log.Debug().Int("files", len(files)).Msg("found log files")
	return files
}

// FindAllLogFiles discovers directories and enumerates their log files
// in one call.
func (d Discovery) FindAllLogFiles() []string {
	return d.LogFiles(d.ProjectDirs())
}

func containsLogFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if hidden(entry.Name()) && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(path), LogExtension) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
