// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

// FileStore persists authorizations as JSON in a single file. The file is
// written with mode 0600 since it contains access tokens, and its parent
// directory is created with mode 0700.
//
// Put and Delete hold an exclusive OS lock on a sibling ".lock" file for the
// whole read-modify-write, so several processes may share one FileStore
// path without undoing each other's changes.
type FileStore struct {
	path string
	log  *slog.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

type sessionFile struct {
	Authorizations []Authorization `json:"authorizations"`
}

// NewFileStore returns a FileStore backed by the file at path. The file
// does not need to exist yet.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{path: path, log: log, lock: flock.New(path + ".lock")}
}

// Path returns the path of the backing file.
func (f *FileStore) Path() string { return f.path }

// List returns all authorizations ordered by CreatedAt.
func (f *FileStore) List(_ context.Context) ([]Authorization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	auths, err := f.read()
	if err != nil {
		return nil, err
	}
	sortByCreated(auths)
	return auths, nil
}

// Put stores auth, replacing any entry with the same token.
func (f *FileStore) Put(_ context.Context, auth Authorization) error {
	unlock, err := f.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	auths, err := f.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range auths {
		if auths[i].Token == auth.Token {
			auths[i] = auth
			replaced = true
			break
		}
	}
	if !replaced {
		auths = append(auths, auth)
	}
	return f.write(auths)
}

// Delete removes the authorization holding token.
func (f *FileStore) Delete(_ context.Context, token string) (bool, error) {
	unlock, err := f.lockFile()
	if err != nil {
		return false, err
	}
	defer unlock()

	auths, err := f.read()
	if err != nil {
		return false, err
	}

	kept := auths[:0]
	for _, auth := range auths {
		if auth.Token != token {
			kept = append(kept, auth)
		}
	}
	if len(kept) == len(auths) {
		return false, nil
	}
	return true, f.write(kept)
}

// Watch calls onChange with the current authorizations whenever the backing
// file is changed, including by other processes. It blocks until ctx is done.
func (f *FileStore) Watch(ctx context.Context, onChange func([]Authorization)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replaces of the file are observed.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			auths, err := f.List(ctx)
			if err != nil {
				f.log.WarnContext(ctx, "failed to reload session file", slog.String("path", f.path), slog.String("error", err.Error()))
				continue
			}
			onChange(auths)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.WarnContext(ctx, "session file watcher error", slog.String("error", err.Error()))
		}
	}
}

// lockFile takes f.mu and then the OS lock shared with other processes.
// The returned function releases both.
func (f *FileStore) lockFile() (unlock func(), err error) {
	f.mu.Lock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	if err := f.lock.Lock(); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("locking session file %s: %w", f.path, err)
	}

	return func() {
		if err := f.lock.Unlock(); err != nil {
			f.log.Warn("failed to unlock session file", slog.String("path", f.path), slog.String("error", err.Error()))
		}
		f.mu.Unlock()
	}, nil
}

// read loads the file. Must be called with f.mu held.
func (f *FileStore) read() ([]Authorization, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", f.path, err)
	}
	return sf.Authorizations, nil
}

// write replaces the file contents atomically. Must be called with f.mu held.
func (f *FileStore) write(auths []Authorization) error {
	if auths == nil {
		auths = []Authorization{}
	}
	data, err := json.MarshalIndent(sessionFile{Authorizations: auths}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing session file %s: %w", f.path, err)
	}
	return nil
}
