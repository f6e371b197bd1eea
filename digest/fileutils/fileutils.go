package fileutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TempPrefix marks in-flight atomic writes. Anything in a data directory carrying it is garbage from
// an interrupted write.
const TempPrefix = ".tmp_digest_"

// RenameFunc moves a fully written temp file into place.
type RenameFunc func(oldpath, newpath string) error

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func SanitizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Truncate trims s and cuts it to at most max bytes, backing off to a rune boundary.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if path == "" {
		return errors.New("RemoveIfExists: empty path")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func WriteJSONFileAtomic(path string, v any, pretty bool) error {
	return WriteJSONFileAtomicWith(path, v, pretty, nil)
}

// WriteJSONFileAtomicWith is WriteJSONFileAtomic with a caller-supplied rename step (nil means os.Rename).
func WriteJSONFileAtomicWith(path string, v any, pretty bool, rename RenameFunc) error {
	b, err := MarshalJSON(v, pretty)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := writeFileAtomicSameDir(path, b, 0o644, rename); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeFileAtomicSameDir(path string, data []byte, mode fs.FileMode, rename RenameFunc) error {
	if rename == nil {
		rename = os.Rename
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	// After a successful rename the temp name no longer exists and this is a no-op.
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write([]byte("\n")); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return rename(tmpName, path)
}

// TempFiles lists leftover atomic-write temp files in dir.
func TempFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), TempPrefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
