// Package storage persists uploaded files and hands back retrieval URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrEmptyFile   = errors.New("file is empty")
	ErrOutsideRoot = errors.New("path resolves outside the upload root")
)

// File is one uploaded blob.
type File struct {
	Name        string
	ContentType string
	// Size is the declared length; -1 when unknown.
	Size   int64
	Reader io.Reader
}

// Uploader stores files under a destination folder.
type Uploader interface {
	// Upload rejects empty files before any storage write.
	Upload(ctx context.Context, folder string, f File) (url string, err error)
	// Delete removes the object behind a URL returned by Upload. Unknown
	// objects are not an error.
	Delete(ctx context.Context, url string) error
}

// FromMultipart opens a multipart file header. The caller closes the returned
// closer.
func FromMultipart(fh *multipart.FileHeader) (File, io.Closer, error) {
	if fh == nil {
		return File{}, nil, ErrEmptyFile
	}
	src, err := fh.Open()
	if err != nil {
		return File{}, nil, errors.Wrap(err, "open upload")
	}
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      src,
	}, src, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces an uploaded filename to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	if ext == "." {
		ext = ""
	}
	// "photo.jpg.jpg" -> "photo.jpg"
	for strings.EqualFold(path.Ext(base), ext) && ext != "" {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "_")
	base = strings.Trim(unsafeChars.ReplaceAllString(base, ""), "._-")
	ext = unsafeChars.ReplaceAllString(ext, "")
	if base == "" {
		base = "file"
	}
	if len(base) > 80 {
		base = base[:80]
	}
	return base + ext
}

// ObjectName derives a collision resistant name for an upload.
func ObjectName(original string, now time.Time) string {
	return fmt.Sprintf("%d_%s_%s", now.UnixNano(), uuid.NewString()[:8], SanitizeName(original))
}

// cleanFolder normalizes a destination folder to a relative slash path.
func cleanFolder(folder string) (string, error) {
	folder = strings.ReplaceAll(strings.TrimSpace(folder), "\\", "/")
	if folder == "" {
		return "misc", nil
	}
	for _, part := range strings.Split(folder, "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	cleaned := strings.Trim(path.Clean("/"+folder), "/")
	if cleaned == "" {
		return "misc", nil
	}
	return filepath.ToSlash(cleaned), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
