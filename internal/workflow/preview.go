package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// PreviewURL is where the HTTP layer serves the current session's preview.
const PreviewURL = "/api/v1/session/preview"

// ErrPreviewNotFound is returned by Open for released or unknown handles.
var ErrPreviewNotFound = errors.New("preview not found")

// PreviewStore holds transient copies of uploaded files so clients can
// render a preview. Every Allocate must be paired with a Release.
type PreviewStore struct {
	dir     string
	ownsDir bool
	log     *zap.Logger

	mu   sync.Mutex
	live map[string]previewEntry
}

type previewEntry struct {
	path      string
	mediaType string
	name      string
}

// NewPreviewStore stores previews under dir. An empty dir gets a private
// temp directory that Close removes.
func NewPreviewStore(dir string, log *zap.Logger) (*PreviewStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	owns := false
	if dir == "" {
		d, err := os.MkdirTemp("", "post-insights-previews-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create preview dir: %w", err)
		}
		dir, owns = d, true
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}
	return &PreviewStore{dir: dir, ownsDir: owns, log: log, live: make(map[string]previewEntry)}, nil
}

// Allocate writes the file and returns its handle.
func (s *PreviewStore) Allocate(file *models.UploadedFile) (*models.Preview, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id)
	if err := os.WriteFile(path, file.Data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}

	s.mu.Lock()
	s.live[id] = previewEntry{path: path, mediaType: file.MediaType, name: file.Name}
	s.mu.Unlock()

	return &models.Preview{ID: id, URL: PreviewURL + "?v=" + id}, nil
}

// Release deletes a handle. Unknown ids are ignored.
func (s *PreviewStore) Release(id string) {
	s.mu.Lock()
	entry, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := os.Remove(entry.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("⚠️  Failed to remove preview", zap.String("id", id), zap.Error(err))
	}
}

// Open returns the preview content with its media type and file name.
func (s *PreviewStore) Open(id string) (*os.File, string, string, error) {
	s.mu.Lock()
	entry, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return nil, "", "", ErrPreviewNotFound
	}
	f, err := os.Open(entry.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", "", ErrPreviewNotFound
		}
		return nil, "", "", err
	}
	return f, entry.mediaType, entry.name, nil
}

// Live reports how many handles are outstanding.
func (s *PreviewStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close releases every handle and removes an owned temp directory.
func (s *PreviewStore) Close() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Release(id)
	}
	if s.ownsDir {
		return os.RemoveAll(s.dir)
	}
	return nil
}
