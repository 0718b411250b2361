// Package cache keeps rendered GET responses of the public API and drops them
// when a write revalidates their path.
package cache

import (
	"bytes"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const topicRevalidate = "pages:revalidate"

// Entry is one cached response.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// Pages is an LRU of responses keyed by request URI.
type Pages struct {
	entries *lru.Cache
	bus     EventBus.Bus
	// generation counts Revalidate calls. A response rendered across a
	// revalidation is served but not stored.
	generation atomic.Uint64
}

func New(size int) (*Pages, error) {
	if size <= 0 {
		size = 256
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create page cache")
	}
	p := &Pages{entries: entries, bus: EventBus.New()}
	if err := p.bus.SubscribeAsync(topicRevalidate, p.evict, false); err != nil {
		return nil, errors.Wrap(err, "subscribe revalidation")
	}
	return p, nil
}

// Revalidate schedules eviction of every entry under the given paths and
// returns immediately.
func (p *Pages) Revalidate(paths ...string) {
	if len(paths) == 0 {
		return
	}
	p.generation.Add(1)
	p.bus.Publish(topicRevalidate, paths)
}

// Wait blocks until queued revalidations have run.
func (p *Pages) Wait() {
	p.bus.WaitAsync()
}

func (p *Pages) Get(key string) (Entry, bool) {
	v, ok := p.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

func (p *Pages) Put(key string, e Entry) {
	p.entries.Add(key, e)
}

func (p *Pages) Len() int {
	return p.entries.Len()
}

func (p *Pages) evict(paths []string) {
	removed := 0
	for _, k := range p.entries.Keys() {
		key := k.(string)
		for _, path := range paths {
			if matches(key, path) {
				p.entries.Remove(k)
				removed++
				break
			}
		}
	}
	zap.L().Debug("pages revalidated", zap.Strings("paths", paths), zap.Int("evicted", removed))
}

// matches reports whether the cached request URI key falls under path.
// The root path only matches itself.
func matches(key, path string) bool {
	keyPath := key
	if i := strings.IndexByte(key, '?'); i >= 0 {
		keyPath = key[:i]
	}
	if keyPath == path {
		return true
	}
	return path != "/" && strings.HasPrefix(keyPath, strings.TrimSuffix(path, "/")+"/")
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware serves GET requests from the cache and stores successful
// responses.
func (p *Pages) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		key := c.Request.URL.RequestURI()
		if e, ok := p.Get(key); ok {
			c.Header("X-Cache", "HIT")
			c.Data(e.Status, e.ContentType, e.Body)
			c.Abort()
			return
		}

		gen := p.generation.Load()
		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Header("X-Cache", "MISS")
		c.Next()

		if p.generation.Load() != gen {
			zap.L().Debug("page not cached, revalidated while rendering", zap.String("key", key))
			return
		}
		if w.Status() == http.StatusOK && !c.IsAborted() {
			p.Put(key, Entry{
				Status:      http.StatusOK,
				ContentType: w.Header().Get("Content-Type"),
				Body:        append([]byte(nil), w.body.Bytes()...),
				StoredAt:    time.Now(),
			})
		}
	}
}
