// Package filestore keeps gem documents as indented JSON files under
// <root>/<tier>star/. The layout is shared with the scripts that maintain
// the catalog, so files may change underneath the service at any time.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/logging"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out waiting for file lock")

type entry struct {
	path    string
	summary domain.GemSummary
	corrupt bool
}

// Store is a GemRepository over a directory tree.
type Store struct {
	root        string
	lockTimeout time.Duration
	logger      *slog.Logger

	mu    sync.RWMutex
	index map[domain.ItemKey]entry
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = logging.Component(l, "filestore")
		}
	}
}

// WithLockTimeout bounds how long a write waits for another writer's file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New opens the catalog rooted at root, which must be an existing directory.
func New(root string, opts ...Option) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open data dir: %s is not a directory", root)
	}
	s := &Store{
		root:        root,
		lockTimeout: defaultLockTimeout,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

// List returns a summary of every readable gem, ordered by tier then name.
func (s *Store) List(ctx context.Context) ([]domain.GemSummary, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.GemSummary, 0, len(index))
	for _, e := range index {
		if e.corrupt {
			continue
		}
		out = append(out, e.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stars != out[j].Stars {
			return out[i].Stars < out[j].Stars
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, key domain.ItemKey) (domain.Gem, error) {
	path, err := s.pathFor(ctx, key)
	if err != nil {
		return domain.Gem{}, err
	}
	gem, err := readGem(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.invalidate()
		return domain.Gem{}, domain.ErrGemNotFound
	}
	return gem, err
}

// Put rewrites the document stored for key. The file is replaced atomically
// while holding an exclusive lock on <file>.lock.
func (s *Store) Put(ctx context.Context, key domain.ItemKey, gem domain.Gem) error {
	path, err := s.pathFor(ctx, key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(gem, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gem %s: %w", key, err)
	}
	data = append(data, '\n')

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLockTimeout, path)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release file lock", "path", path, "error", err)
		}
	}()

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write gem %s: %w", key, err)
	}

	summary := gem.Summary(s.rel(path))
	summary.Key = key
	s.mu.Lock()
	if s.index != nil {
		// Readers iterate the map without the lock, so replace it.
		next := maps.Clone(s.index)
		next[key] = entry{path: path, summary: summary}
		s.index = next
	}
	s.mu.Unlock()

	s.logger.Debug("gem written", "item_key", key.String(), "path", path)
	return nil
}

// All returns every readable gem document. Corrupt files are skipped.
func (s *Store) All(ctx context.Context) ([]domain.Gem, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(index))
	for _, e := range index {
		if !e.corrupt {
			paths = append(paths, e.path)
		}
	}
	sort.Strings(paths)

	out := make([]domain.Gem, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gem, err := readGem(path)
		if err != nil {
			s.logger.Warn("skipping unreadable gem", "path", path, "error", err)
			continue
		}
		out = append(out, gem)
	}
	return out, nil
}

func (s *Store) pathFor(ctx context.Context, key domain.ItemKey) (string, error) {
	if key.IsZero() {
		return "", domain.ErrInvalidItemKey
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return "", err
	}
	e, ok := index[key]
	if !ok {
		return "", domain.ErrGemNotFound
	}
	return e.path, nil
}

// loadIndex returns the cached catalog index, scanning the tree when the
// cache has been invalidated.
func (s *Store) loadIndex(ctx context.Context) (map[domain.ItemKey]entry, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index != nil {
		return index, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index, err := s.scan()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		s.index = index
	}
	return s.index, nil
}

func (s *Store) scan() (map[domain.ItemKey]entry, error) {
	index := make(map[domain.ItemKey]entry)
	for _, tier := range domain.Tiers {
		dir := filepath.Join(s.root, tier.Dir())
		files, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, f.Name())
			key, e := s.indexFile(tier, path)
			if key.IsZero() {
				continue
			}
			if prev, dup := index[key]; dup {
				s.logger.Warn("duplicate gem key", "item_key", key.String(), "path", path, "kept", prev.path)
				continue
			}
			index[key] = e
		}
	}
	s.logger.Debug("catalog indexed", "gems", len(index))
	return index, nil
}

func (s *Store) indexFile(tier domain.Tier, path string) (domain.ItemKey, entry) {
	gem, err := readGem(path)
	if err != nil {
		s.logger.Warn("skipping corrupt gem", "path", path, "error", err)
		stem := strings.TrimSuffix(filepath.Base(path), ".json")
		key, keyErr := domain.NewItemKey(tier, stem)
		if keyErr != nil {
			return domain.ItemKey{}, entry{}
		}
		return key, entry{path: path, corrupt: true}
	}
	if gem.Stars != tier {
		s.logger.Warn("gem stars disagree with its directory", "path", path, "stars", gem.Stars.String())
	}
	key, err := domain.NewItemKey(tier, gem.Name)
	if err != nil {
		s.logger.Warn("skipping gem without usable name", "path", path, "error", err)
		return domain.ItemKey{}, entry{}
	}
	summary := gem.Summary(s.rel(path))
	summary.Key = key
	summary.Stars = tier
	return key, entry{path: path, summary: summary}
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

func (s *Store) rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func readGem(path string) (domain.Gem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Gem{}, err
	}
	var gem domain.Gem
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&gem); err != nil {
		return domain.Gem{}, fmt.Errorf("%w: %s: %v", domain.ErrCorruptGem, filepath.Base(path), err)
	}
	return gem, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gem-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
