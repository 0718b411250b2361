package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Local keeps uploads on the server filesystem below a fixed root and serves
// them back through URLPrefix.
type Local struct {
	root      string
	urlPrefix string
}

// NewLocal creates the root directory when missing.
func NewLocal(root, urlPrefix string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve upload root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload root")
	}
	// Resolve symlinks once so containment checks compare real paths.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Local{root: abs, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Root returns the absolute upload root.
func (l *Local) Root() string {
	return l.root
}

// resolve maps a slash-separated relative path onto the filesystem and
// refuses anything that leaves the root.
func (l *Local) resolve(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	full := filepath.Join(l.root, filepath.FromSlash(path.Clean("/"+rel)))
	if !l.contains(full) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

func (l *Local) contains(p string) bool {
	return p == l.root || strings.HasPrefix(p, l.root+string(os.PathSeparator))
}

func (l *Local) Upload(ctx context.Context, folder string, f File) (string, error) {
	if f.Size == 0 || f.Reader == nil {
		return "", ErrEmptyFile
	}
	folder, err := cleanFolder(folder)
	if err != nil {
		return "", err
	}
	name := ObjectName(f.Name, time.Now())
	dst, err := l.resolve(folder + "/" + name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "create upload folder")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	counter := &countingReader{r: f.Reader}
	_, copyErr := io.Copy(out, counter)
	closeErr := out.Close()
	if copyErr == nil && counter.n == 0 {
		copyErr = ErrEmptyFile
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dst)
		if copyErr != nil {
			return "", errors.Wrap(copyErr, "write upload")
		}
		return "", errors.Wrap(closeErr, "write upload")
	}

	zap.L().Info("stored upload",
		zap.String("path", dst),
		zap.Int64("bytes", counter.n),
		zap.String("content_type", f.ContentType))
	return l.urlPrefix + "/" + folder + "/" + name, nil
}

// Open returns a regular file below the root. Traversal attempts yield
// ErrOutsideRoot, missing files os.ErrNotExist.
func (l *Local) Open(rel string) (*os.File, os.FileInfo, error) {
	full, err := l.resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		return nil, nil, os.ErrNotExist
	}
	if !l.contains(real) {
		return nil, nil, ErrOutsideRoot
	}
	file, err := os.Open(real)
	if err != nil {
		return nil, nil, os.ErrNotExist
	}
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		return nil, nil, os.ErrNotExist
	}
	return file, info, nil
}

func (l *Local) Delete(_ context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, l.urlPrefix+"/")
	if !ok {
		return nil
	}
	full, err := l.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove upload")
	}
	return nil
}
