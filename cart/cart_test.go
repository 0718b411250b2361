package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront-api/models"
)

func ids(c *Cart) []string {
	out := make([]string, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.ProductID
	}
	return out
}

func TestCartOperations(t *testing.T) {
	c := &Cart{}
	for _, id := range []string{"a", "b", "c"} {
		if err := c.Add(id, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Add("a", 2); err != nil {
		t.Fatal(err)
	}
	if got := ids(c); len(got) != 3 || got[0] != "a" || c.Items[0].Quantity != 3 {
		t.Fatalf("merge lost order or quantity: %+v", c.Items)
	}

	for _, bad := range []int{0, -1, MaxQuantity + 1} {
		if err := c.Add("d", bad); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("Add(d, %d) = %v, want ErrInvalidQuantity", bad, err)
		}
	}

	if !c.SetQuantity("b", 5) || c.Items[1].Quantity != 5 {
		t.Errorf("SetQuantity(b, 5) failed: %+v", c.Items)
	}
	if !c.SetQuantity("b", 0) {
		t.Error("SetQuantity(b, 0) reported missing line")
	}
	if got := ids(c); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("after removal ids = %v, want [a c]", got)
	}
	if c.SetQuantity("zzz", 1) {
		t.Error("SetQuantity on a missing product reported success")
	}
	if c.TotalQuantity() != 4 {
		t.Errorf("TotalQuantity = %d, want 4", c.TotalQuantity())
	}
	if !c.Remove("c") || c.Remove("c") {
		t.Error("Remove did not report presence correctly")
	}
	c.Clear()
	if c.TotalQuantity() != 0 || len(c.Items) != 0 {
		t.Errorf("cart not cleared: %+v", c.Items)
	}
}

var errMissing = errors.New("missing")

func TestPrice(t *testing.T) {
	catalog := map[string]models.Product{
		"1": {ID: "1", Name: "Tart", Price: decimal.RequireFromString("19.99")},
		"2": {ID: "2", Name: "Loaf", Price: decimal.RequireFromString("0.10")},
	}
	lookup := func(_ context.Context, id string) (*models.Product, error) {
		p, ok := catalog[id]
		if !ok {
			return nil, errMissing
		}
		return &p, nil
	}
	isMissing := func(err error) bool { return errors.Is(err, errMissing) }

	c := &Cart{Items: []Item{{"1", 3}, {"gone", 1}, {"2", 3}}}
	sum, err := Price(context.Background(), c, lookup, isMissing, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Subtotal.Equal(decimal.RequireFromString("60.27")) {
		t.Errorf("subtotal = %s, want 60.27", sum.Subtotal)
	}
	if sum.TotalQuantity != 6 || !sum.MeetsMinimum {
		t.Errorf("quantity %d meets=%v", sum.TotalQuantity, sum.MeetsMinimum)
	}
	if len(sum.Removed) != 1 || sum.Removed[0] != "gone" || len(c.Items) != 2 {
		t.Errorf("missing product not dropped: removed=%v items=%+v", sum.Removed, c.Items)
	}

	sum, _ = Price(context.Background(), &Cart{Items: []Item{{"2", 1}}}, lookup, isMissing, 2)
	if sum.MeetsMinimum {
		t.Error("one item meets a minimum of two")
	}
}

func TestSessionsRoundTrip(t *testing.T) {
	s := NewSessions("0123456789abcdef0123456789abcdef", false)

	c := &Cart{}
	_ = c.Add("1", 2)
	_ = c.Add("2", 1)
	w := httptest.NewRecorder()
	if err := s.Save(w, httptest.NewRequest(http.MethodPost, "/api/cart/items", nil), c); err != nil {
		t.Fatal(err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(cookies[0])
	loaded := s.Load(req)
	if got := ids(loaded); len(got) != 2 || got[0] != "1" || loaded.TotalQuantity() != 3 {
		t.Errorf("loaded cart %+v", loaded.Items)
	}

	tampered := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	tampered.AddCookie(&http.Cookie{Name: cookies[0].Name, Value: cookies[0].Value + "x"})
	if n := len(s.Load(tampered).Items); n != 0 {
		t.Errorf("tampered cookie yielded %d items", n)
	}

	other := NewSessions("fedcba9876543210fedcba9876543210", false)
	foreign := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	foreign.AddCookie(cookies[0])
	if n := len(other.Load(foreign).Items); n != 0 {
		t.Errorf("cookie signed with another key yielded %d items", n)
	}
}
