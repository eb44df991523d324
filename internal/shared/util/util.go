package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizePatternPath cleans and normalizes paths for matcher/pattern usage.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix returns true when path equals prefix or is contained within prefix.
func HasPathPrefix(path, prefix string) bool {
	path = NormalizePatternPath(path)
	prefix = NormalizePatternPath(prefix)
	if path == "" || prefix == "" {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// ContainsPathSeparator returns true when value includes either slash separator.
func ContainsPathSeparator(value string) bool {
	return strings.Contains(value, "/") || strings.Contains(value, "\\")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// StagedFile is content written next to its final path and not yet visible
// under that path.
type StagedFile struct {
	Path string
	tmp  string
}

// StageFile writes data to a temporary file in the directory of target,
// creating the directory (0755) when missing.
func StageFile(target string, data []byte, perm fs.FileMode) (*StagedFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	return &StagedFile{Path: target, tmp: tmp}, nil
}

// Commit renames the staged content onto its final path.
func (s *StagedFile) Commit() error {
	return os.Rename(s.tmp, s.Path)
}

// Discard removes the staged content. It is safe to call after Commit.
func (s *StagedFile) Discard() {
	os.Remove(s.tmp)
}

// CommitAll stages every file before renaming any of them, so a failure while
// staging leaves all targets untouched.
func CommitAll(files map[string][]byte, perm fs.FileMode) error {
	staged := make([]*StagedFile, 0, len(files))
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()

	for _, target := range SortedStringKeys(files) {
		s, err := StageFile(target, files[target], perm)
		if err != nil {
			return err
		}
		staged = append(staged, s)
	}
	for _, s := range staged {
		if err := s.Commit(); err != nil {
			return err
		}
	}
	return nil
}
