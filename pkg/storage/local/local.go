package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// LocalStorage keeps request scoped files in a single private directory.
// Files it created stay in use until Delete; CleanupBefore never touches them.
type LocalStorage struct {
	root   string
	logger logger.Logger

	mu    sync.Mutex
	inUse map[string]struct{}
}

// NewLocalStorage 创建本地存储，目录不存在时创建
func NewLocalStorage(root string, log logger.Logger) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &LocalStorage{
		root:   abs,
		logger: log,
		inUse:  make(map[string]struct{}),
	}, nil
}

func (s *LocalStorage) Root() string {
	return s.root
}

// Store implements Storage.Store
func (s *LocalStorage) Store(ctx context.Context, reader io.Reader, filename string) (string, error) {
	f, err := s.create(SanitizeFilename(filename))
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: reader}); err != nil {
		f.Close()
		s.remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return path, nil
}

// Reserve implements Storage.Reserve
func (s *LocalStorage) Reserve(ctx context.Context, suffix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := s.create(SanitizeFilename(suffix))
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		s.remove(f.Name())
		return "", fmt.Errorf("failed to close reserved file: %w", err)
	}
	return f.Name(), nil
}

// Get implements Storage.Get
func (s *LocalStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Size implements Storage.Size
func (s *LocalStorage) Size(ctx context.Context, path string) (int64, error) {
	if err := s.contains(path); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

// Delete implements Storage.Delete
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.release(path)
	return nil
}

// CleanupBefore implements Storage.CleanupBefore
func (s *LocalStorage) CleanupBefore(ctx context.Context, threshold time.Time) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage root: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(threshold) {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		if s.busy(path) {
			continue
		}
		if err := s.Delete(ctx, path); err != nil {
			s.logger.Error("Failed to delete expired file",
				logger.String("path", path),
				logger.Error(err),
			)
			continue
		}
		removed++
		s.logger.Info("Deleted expired file",
			logger.String("path", path),
			logger.Time("modTime", info.ModTime()),
		)
	}

	return removed, nil
}

// create opens a fresh file named <unix-nanos>-<uuid8>-<suffix>. O_EXCL turns
// any collision into an error instead of an overwrite.
func (s *LocalStorage) create(suffix string) (*os.File, error) {
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], suffix)
	path := filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	s.mu.Lock()
	s.inUse[path] = struct{}{}
	s.mu.Unlock()
	return f, nil
}

func (s *LocalStorage) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove partial file",
			logger.String("path", path),
			logger.Error(err),
		)
	}
	s.release(path)
}

func (s *LocalStorage) release(path string) {
	s.mu.Lock()
	delete(s.inUse, filepath.Clean(path))
	s.mu.Unlock()
}

// busy reports whether path belongs to a request that has not cleaned up yet.
func (s *LocalStorage) busy(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inUse[path]
	return ok
}

// contains rejects paths that resolve outside the storage root.
func (s *LocalStorage) contains(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside storage root", path)
	}
	return nil
}

// SanitizeFilename reduces a client supplied name to a safe single path
// element. Directory parts, traversal sequences and control characters are
// dropped; an empty result becomes "upload".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimLeft(strings.TrimSpace(name), ".")

	if len(name) > 128 {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:128-len(ext)], "") + ext
	}
	if name == "" {
		return "upload"
	}
	return name
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
