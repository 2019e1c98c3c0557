package images

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/filex"
)

// Store persists processed images under a key and serves them back. The
// request path handed to ServeHTTP is the key, the mount prefix already
// stripped.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	http.Handler
}

// LocalStore keeps images in a directory on disk.
type LocalStore struct {
	dir   string
	files http.Handler
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs, files: http.FileServer(http.Dir(abs))}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(_ context.Context, key string, data []byte) error {
	if !validKey(key) {
		return errInvalidKey
	}
	return filex.WriteFileAtomic(filepath.Join(s.dir, filepath.FromSlash(key)), data, 0o644)
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return errInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") || r.URL.Path == "" {
		http.NotFound(w, r)
		return
	}
	s.files.ServeHTTP(w, r)
}

// validKey rejects keys that would escape the store root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "../") && key != ".."
}
