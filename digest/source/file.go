// Package source loads threads for the pipeline from dump files and from a local SQLite archive.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/thread-digest/digest"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported thread dump format")

// dumpEnvelope is the object form of a dump file.
type dumpEnvelope struct {
	Threads []digest.Thread `json:"threads" yaml:"threads"`
}

// LoadPath loads threads from a dump file, or from every dump file directly inside a directory
// (in name order).
func LoadPath(path string) ([]digest.Thread, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load threads: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("load threads: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	threads := []digest.Thread{}
	for _, name := range names {
		ts, err := LoadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		threads = append(threads, ts...)
	}
	return threads, nil
}

// Supported reports whether LoadFile understands the file's extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile loads a JSON or YAML dump holding either a list of threads or {"threads": [...]}.
func LoadFile(path string) ([]digest.Thread, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load threads: %w", err)
	}

	var threads []digest.Thread
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		threads, err = decodeJSON(b)
	case ".yaml", ".yml":
		threads, err = decodeYAML(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load threads %s: %w", path, err)
	}
	if threads == nil {
		threads = []digest.Thread{}
	}
	return threads, nil
}

func decodeJSON(b []byte) ([]digest.Thread, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var threads []digest.Thread
		if err := json.Unmarshal(b, &threads); err != nil {
			return nil, fmt.Errorf("unmarshal json: %w", err)
		}
		return threads, nil
	}
	var env dumpEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}
	return env.Threads, nil
}

func decodeYAML(b []byte) ([]digest.Thread, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var threads []digest.Thread
		if err := root.Decode(&threads); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return threads, nil
	}
	var env dumpEnvelope
	if err := root.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return env.Threads, nil
}
