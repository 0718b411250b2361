package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Bucket stores uploads in the project's Firebase Storage bucket and returns
// long-lived signed URLs.
type Bucket struct {
	handle *gcs.BucketHandle
	name   string
	ttl    time.Duration
}

func NewBucket(ctx context.Context, app *firebase.App, name string, ttl time.Duration) (*Bucket, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initialize storage client")
	}
	handle, err := client.Bucket(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", name)
	}
	return &Bucket{handle: handle, name: name, ttl: ttl}, nil
}

func (b *Bucket) Upload(ctx context.Context, folder string, f File) (string, error) {
	if f.Size == 0 || f.Reader == nil {
		return "", ErrEmptyFile
	}
	folder, err := cleanFolder(folder)
	if err != nil {
		return "", err
	}
	object := folder + "/" + ObjectName(f.Name, time.Now())

	// Cancelling the writer's context aborts the upload instead of committing it.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := b.handle.Object(object).NewWriter(writeCtx)
	w.ContentType = f.ContentType
	w.Metadata = map[string]string{"originalName": f.Name}

	counter := &countingReader{r: f.Reader}
	if _, err := io.Copy(w, counter); err != nil {
		cancel()
		_ = w.Close()
		return "", errors.Wrap(err, "write object")
	}
	if counter.n == 0 {
		cancel()
		_ = w.Close()
		return "", ErrEmptyFile
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "commit object")
	}

	signed, err := b.handle.SignedURL(object, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(b.ttl),
		Scheme:  gcs.SigningSchemeV2,
	})
	if err != nil {
		return "", errors.Wrap(err, "sign object url")
	}
	zap.L().Info("stored upload in bucket",
		zap.String("bucket", b.name),
		zap.String("object", object),
		zap.Int64("bytes", counter.n))
	return signed, nil
}

func (b *Bucket) Delete(ctx context.Context, rawURL string) error {
	object, ok := b.objectFromURL(rawURL)
	if !ok {
		return nil
	}
	err := b.handle.Object(object).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrapf(err, "delete object %s", object)
}

// objectFromURL extracts the object name from a storage.googleapis.com URL.
func (b *Bucket) objectFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	object, ok := strings.CutPrefix(u.Path, "/"+b.name+"/")
	if !ok || object == "" {
		return "", false
	}
	return object, true
}
