// Package upload stores report attachments on local disk and resolves the
// "/uploads/<name>" references kept on reports.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// Prefix is the URL path attachments are served under.
	Prefix = "/uploads/"

	MaxFiles    = 5
	MaxFileSize = 10 << 20
)

var (
	ErrTooManyFiles = errors.New("too many attachments")
	ErrFileTooLarge = errors.New("attachment exceeds size limit")
)

type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates the upload directory when it does not exist yet.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// SaveImages writes every image among files and returns their references in
// upload order. Files whose content is not an image are skipped.
func (s *Store) SaveImages(files []*multipart.FileHeader) ([]string, error) {
	if len(files) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	for _, fh := range files {
		if fh.Size > MaxFileSize {
			return nil, fmt.Errorf("%s: %w", fh.Filename, ErrFileTooLarge)
		}
	}

	refs := make([]string, 0, len(files))
	for _, fh := range files {
		ref, err := s.saveImage(fh)
		if err != nil {
			return nil, err
		}
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (s *Store) saveImage(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect %s: %w", fh.Filename, err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", nil
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind %s: %w", fh.Filename, err)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = mtype.Extension()
	}
	name := fmt.Sprintf("attachments-%d-%d%s", s.now().UnixMilli(), uuid.New().ID(), ext)

	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return Prefix + name, nil
}

// Path maps a reference ("/uploads/x.png" or a bare file name) to its file on
// disk. Directory components are discarded.
func (s *Store) Path(ref string) string {
	name := filepath.Base(strings.TrimPrefix(ref, Prefix))
	return filepath.Join(s.dir, name)
}

// Exists reports whether the referenced file is present.
func (s *Store) Exists(ref string) bool {
	info, err := os.Stat(s.Path(ref))
	return err == nil && !info.IsDir()
}

// Read returns the content of the referenced file.
func (s *Store) Read(ref string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
