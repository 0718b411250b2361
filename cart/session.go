package cart

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	sessionName = "storefront_cart"
	itemsKey    = "items"
)

// Sessions loads and saves carts through a signed cookie.
type Sessions struct {
	store sessions.Store
}

func NewSessions(secret string, secure bool) *Sessions {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: cs}
}

// Load returns the request's cart. A missing, tampered or unreadable cookie
// yields an empty cart.
func (s *Sessions) Load(r *http.Request) *Cart {
	c := &Cart{}
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		zap.L().Debug("discarding unreadable cart cookie", zap.Error(err))
		return c
	}
	raw, ok := sess.Values[itemsKey].(string)
	if !ok || raw == "" {
		return c
	}
	if err := json.Unmarshal([]byte(raw), &c.Items); err != nil {
		zap.L().Debug("discarding malformed cart", zap.Error(err))
		return &Cart{}
	}
	// Drop lines a client could not have produced through the API.
	valid := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != "" && it.Quantity >= 1 && it.Quantity <= MaxQuantity {
			valid = append(valid, it)
		}
	}
	c.Items = valid
	return c
}

func (s *Sessions) Save(w http.ResponseWriter, r *http.Request, c *Cart) error {
	// Get never fails hard here; a fresh session replaces a bad cookie.
	sess, _ := s.store.Get(r, sessionName)
	raw, err := json.Marshal(c.Items)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	sess.Values[itemsKey] = string(raw)
	return errors.Wrap(sess.Save(r, w), "save cart cookie")
}
