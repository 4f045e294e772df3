package secrets

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Local keeps secrets in a JSON object on disk, rewritten atomically on
// every Write.
type Local struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenLocal loads the secrets file at path, starting empty when it does not
// exist.
func OpenLocal(path string) (*Local, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets file path is empty: %w", types.ErrValidation)
	}
	l := &Local{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &l.values); err != nil {
			return nil, fmt.Errorf("parsing secrets file %s: %w", path, err)
		}
	}
	return l, nil
}

// Read implements Resolver.
func (l *Local) Read(_ context.Context, handle string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[handle]
	return v, ok, nil
}

// Write implements Resolver.
func (l *Local) Write(_ context.Context, value string) (string, error) {
	if err := checkValue(value); err != nil {
		return "", err
	}
	handle, err := newHandle()
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[handle] = value
	if err := l.flushLocked(); err != nil {
		delete(l.values, handle)
		return "", fmt.Errorf("%v: %w", err, types.ErrSecretUnavailable)
	}
	return handle, nil
}

// Close writes the current values to disk.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// flushLocked writes the file with the temp-file, fsync, rename pattern.
func (l *Local) flushLocked() error {
	data, err := json.MarshalIndent(l.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".secrets-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing secrets: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("restricting secrets file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
