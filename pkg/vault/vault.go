// Package vault gives the agent read access to an Obsidian-style notes
// directory: reading notes by name, listing folders and searching note
// contents. Notes are markdown files addressed by their base name without
// the .md extension, the same way the vault itself cross-references them.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const maxSearchMatches = 100

// Vault is a read-only handle over a notes directory. The note index is
// rebuilt lazily after the watcher flags a change.
type Vault struct {
	root   string
	logger zerolog.Logger

	mu      sync.Mutex
	index   map[string]string // note name -> path relative to root
	stale   bool
	watcher *watcher
}

// Open validates the vault directory and builds the note index.
func Open(root string, logger zerolog.Logger) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault %s: not a directory", root)
	}

	v := &Vault{root: root, logger: logger}
	if err := v.rebuild(); err != nil {
		return nil, err
	}
	return v, nil
}

// Close stops the watcher, if one was started.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.watcher != nil {
		return v.watcher.close()
	}
	return nil
}

// rebuild walks the vault and indexes every markdown note by its base name.
// Hidden directories (like .obsidian) are skipped.
func (v *Vault) rebuild() error {
	index := make(map[string]string)

	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(d.Name(), ".md")
		// on duplicate names the shallowest note wins, matching how the
		// vault resolves bare wiki links
		if existing, ok := index[name]; !ok || strings.Count(rel, string(filepath.Separator)) < strings.Count(existing, string(filepath.Separator)) {
			index[name] = rel
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index vault %s: %w", v.root, err)
	}

	v.mu.Lock()
	v.index = index
	v.stale = false
	v.mu.Unlock()

	v.logger.Debug().Int("notes", len(index)).Str("vault", v.root).Msg("Vault indexed")
	return nil
}

func (v *Vault) freshIndex() (map[string]string, error) {
	v.mu.Lock()
	stale := v.stale
	v.mu.Unlock()

	if stale {
		if err := v.rebuild(); err != nil {
			return nil, err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index, nil
}

// ReadNote returns the contents of the note with the given name. os.ErrNotExist
// is returned when no note carries that name.
func (v *Vault) ReadNote(name string) (string, error) {
	index, err := v.freshIndex()
	if err != nil {
		return "", err
	}

	rel, ok := index[name]
	if !ok {
		return "", fmt.Errorf("note %q: %w", name, os.ErrNotExist)
	}

	data, err := os.ReadFile(filepath.Join(v.root, rel))
	if err != nil {
		return "", fmt.Errorf("read note %q: %w", name, err)
	}
	return string(data), nil
}

// ListDir lists the entries of a vault subdirectory. Directories carry a
// trailing slash, regular files do not.
func (v *Vault) ListDir(subPath string) ([]string, error) {
	dir, err := v.resolve(subPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", subPath, err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			names = append(names, entry.Name()+"/")
		} else {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Search scans the vault's notes for a regex pattern and returns matches as
// "path:line: text" lines. folder limits the scan to a subdirectory; an
// empty folder scans the whole vault. More than maxSearchMatches matches is
// an error so the model narrows its pattern instead of flooding the context.
func (v *Vault) Search(pattern, folder string, caseSensitive bool) (string, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	dir, err := v.resolve(folder)
	if err != nil {
		return "", err
	}

	var matches []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) > maxSearchMatches {
					return errTooManyMatches
				}
			}
		}
		return nil
	})
	if err == errTooManyMatches {
		return "", fmt.Errorf("more than %d matches, narrow the pattern or folder", maxSearchMatches)
	}
	if err != nil {
		return "", fmt.Errorf("search vault: %w", err)
	}

	if len(matches) == 0 {
		return "[no matches found]", nil
	}
	return strings.Join(matches, "\n"), nil
}

var errTooManyMatches = fmt.Errorf("too many matches")

// resolve maps a vault-relative sub path to an absolute directory, rejecting
// escapes outside the vault root.
func (v *Vault) resolve(subPath string) (string, error) {
	if subPath == "" || subPath == "." {
		return v.root, nil
	}
	cleaned := filepath.Clean(subPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path %q escapes the vault", subPath)
	}
	return filepath.Join(v.root, cleaned), nil
}
