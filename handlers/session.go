package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"storefront-api/auth"
	"storefront-api/middleware"
	"storefront-api/statemachine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// sessionMessage is sent by clients when their identity changes.
type sessionMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// sessionUpdate is pushed on every gate change.
type sessionUpdate struct {
	State     statemachine.State    `json:"state"`
	Principal string                `json:"principal,omitempty"`
	Decision  statemachine.Decision `json:"decision"`
	Error     string                `json:"error,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), h.AllowedOrigins)
		},
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// Session streams the auth gate of one client over a websocket. The token may
// be given as ?token= or a bearer header, and later changed with
// {"type":"sign-in","token":...} or {"type":"sign-out"}. ?adminOnly=false
// evaluates the guard for a public route.
func (h *Handler) Session(c *gin.Context) {
	adminOnly := cast.ToBool(c.DefaultQuery("adminOnly", "true"))
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	tracker := auth.NewTracker(ctx, h.Roles)
	defer tracker.Close()
	changes, detach := tracker.Changes()
	defer detach()

	notices := make(chan string, 4)
	notify := func(msg string) {
		select {
		case notices <- msg:
		default:
		}
	}

	h.identify(ctx, tracker, token, notify)
	go h.readSession(ctx, cancel, conn, tracker, notify)

	send := func(u sessionUpdate) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(u); err != nil {
			zap.L().Debug("session write failed", zap.Error(err))
			return false
		}
		return true
	}
	update := func(state statemachine.State, notice string) sessionUpdate {
		return sessionUpdate{
			State:     state,
			Principal: tracker.Principal(),
			Decision:  statemachine.Guard(state, adminOnly),
			Error:     notice,
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case state := <-changes:
			if !send(update(state, "")) {
				return
			}
		case notice := <-notices:
			if !send(update(tracker.State(), notice)) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// identify moves the tracker to the principal behind token, or signs out.
func (h *Handler) identify(ctx context.Context, tracker *auth.Tracker, token string, notify func(string)) {
	if token == "" {
		if err := tracker.SignOut(); err != nil {
			zap.L().Warn("session sign-out rejected", zap.Error(err))
		}
		return
	}
	p, err := h.Tokens.Verify(ctx, token)
	if err != nil {
		notify("Invalid or expired token")
		if tracker.Principal() == "" {
			_ = tracker.SignOut()
		}
		return
	}
	if err := tracker.SignIn(p.ID); err != nil {
		notify("Could not verify permissions, please retry")
	}
}

// readSession is the only reader of conn. It cancels ctx when the client
// goes away.
func (h *Handler) readSession(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, tracker *auth.Tracker, notify func(string)) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg sessionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("session closed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case "sign-in":
			if msg.Token == "" {
				notify("token is required")
				continue
			}
			h.identify(ctx, tracker, msg.Token, notify)
		case "sign-out":
			h.identify(ctx, tracker, "", notify)
		default:
			notify("unknown message type")
		}
	}
}
