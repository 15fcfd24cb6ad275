package routes

import (
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

const MaxUploadBytes = 5 << 20

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// saveUpload stores fh under dir with a random name and returns that name.
func saveUpload(dir string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExtensions[ext] {
		return "", fmt.Errorf("%w: profile_picture must be a png, jpeg, gif or webp image", fferrors.ErrValidation)
	}
	if fh.Size > MaxUploadBytes {
		return "", fmt.Errorf("%w: profile_picture must be at most 5 MiB", fferrors.ErrValidation)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(dst, io.LimitReader(src, MaxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxUploadBytes {
		err = fmt.Errorf("%w: profile_picture must be at most 5 MiB", fferrors.ErrValidation)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	return name, nil
}

func removeUpload(dir, name string) {
	if name == "" {
		return
	}
	os.Remove(filepath.Join(dir, name))
}

// uploadFS serves stored files only. Directories read as missing so the
// upload root can't be listed.
type uploadFS struct {
	root http.FileSystem
}

func (fsys uploadFS) Open(name string) (http.File, error) {
	f, err := fsys.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}

	return f, nil
}
