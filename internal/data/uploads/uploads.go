package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
)

var validId = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store keeps uploaded PDFs on local disk, one file per content hash.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Put streams r to disk while hashing it. Storing identical bytes twice yields the same id and one file.
func (s *Store) Put(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(s.dir, "upload-*.part")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err != nil {
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	id := hex.EncodeToString(hash.Sum(nil))
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return "", 0, err
	}
	return id, size, nil
}

func (s *Store) Read(id string) ([]byte, error) {
	if !validId.MatchString(id) {
		return nil, errorModel.New(errorModel.NotFound, "uploads.read", fmt.Errorf("invalid id %q", id))
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errorModel.New(errorModel.NotFound, "uploads.read", err)
	}
	return data, err
}

// Open returns the stored file for streaming responses. Callers close it.
func (s *Store) Open(id string) (*os.File, error) {
	if !validId.MatchString(id) {
		return nil, errorModel.New(errorModel.NotFound, "uploads.open", fmt.Errorf("invalid id %q", id))
	}
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errorModel.New(errorModel.NotFound, "uploads.open", err)
	}
	return f, err
}

func (s *Store) Delete(id string) error {
	if !validId.MatchString(id) {
		return nil
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) Path(id string) string { return s.path(id) }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".pdf")
}
