package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"skynotes/internal/auth"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/service/subscription"
	"skynotes/internal/service/views"
)

// Inbound message types.
const (
	wsAuth        = "auth"
	wsSignOut     = "signout"
	wsSubscribe   = "subscribe"
	wsUnsubscribe = "unsubscribe"
)

// Outbound message types.
const (
	wsSnapshot = "snapshot"
	wsError    = "error"
	wsSession  = "session"
)

// Subscribable views.
const (
	viewHome    = "home"
	viewFolders = "folders"
	viewFolder  = "folder"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

type wsInbound struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Token      string `json:"token,omitempty"`
	View       string `json:"view,omitempty"`
	FolderID   string `json:"folderId,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Query      string `json:"q,omitempty"`
}

type wsOutbound struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

// WSHandler serves live views over a websocket. Each connection has its own identity;
// every subscription on it follows sign-in and sign-out.
type WSHandler struct {
	views    *views.Service
	verifier auth.JWTVerifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(viewService *views.Service, verifier auth.JWTVerifier, allowedOrigins []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		views:    viewService,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// wsConn is one client connection.
type wsConn struct {
	conn    *websocket.Conn
	tracker *auth.SessionTracker
	views   *views.Service
	logger  *slog.Logger
	ctx     context.Context

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]*subscription.Follower
}

// ServeWS upgrades the connection
// GET /ws?access_token=
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		conn:    conn,
		tracker: auth.NewSessionTracker(h.verifier),
		views:   h.views,
		logger:  h.logger,
		ctx:     ctx,
		subs:    make(map[string]*subscription.Follower),
	}
	defer func() {
		c.releaseAll()
		cancel()
		conn.Close()
	}()

	stopSession := c.tracker.OnChange(func(s models.Session) {
		c.send(wsOutbound{Type: wsSession, UserID: s.UserID})
	})
	defer stopSession()

	if token := r.URL.Query().Get("access_token"); token != "" {
		c.signIn("", token)
	}

	go c.pingLoop(ctx)
	c.readLoop()
}

func (c *wsConn) readLoop() {
	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("websocket closed", "error", err)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(wsOutbound{Type: wsError, Message: "invalid message"})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *wsConn) dispatch(msg wsInbound) {
	switch msg.Type {
	case wsAuth:
		c.signIn(msg.ID, msg.Token)
	case wsSignOut:
		c.tracker.SignOut()
	case wsSubscribe:
		c.subscribe(msg)
	case wsUnsubscribe:
		c.unsubscribe(msg.ID)
	default:
		c.send(wsOutbound{Type: wsError, ID: msg.ID, Message: "unknown message type"})
	}
}

func (c *wsConn) signIn(id, token string) {
	if _, err := c.tracker.SignIn(token); err != nil {
		c.send(wsOutbound{Type: wsError, ID: id, Message: domain.UserMessage(err)})
	}
}

func (c *wsConn) subscribe(msg wsInbound) {
	if msg.ID == "" {
		c.send(wsOutbound{Type: wsError, Message: "subscription id is required"})
		return
	}
	c.unsubscribe(msg.ID)

	emit := func(v any) { c.send(wsOutbound{Type: wsSnapshot, ID: msg.ID, Data: v}) }
	onError := func(err error) {
		c.send(wsOutbound{Type: wsError, ID: msg.ID, Message: domain.UserMessage(err)})
	}

	var start subscription.StartFunc
	switch msg.View {
	case viewHome:
		opts := views.HomeOptions{Visibility: notes.ParseVisibility(msg.Visibility), Query: msg.Query}
		start = func(s models.Session) (func(), error) {
			release, err := c.views.WatchHome(c.ctx, s, opts, func(h *views.Home) { emit(h) }, onError)
			return release, err
		}
	case viewFolders:
		start = func(s models.Session) (func(), error) {
			release, err := c.views.WatchFolders(c.ctx, s, func(f []notes.Folder) { emit(f) }, onError)
			return release, err
		}
	case viewFolder:
		if msg.FolderID == "" {
			c.send(wsOutbound{Type: wsError, ID: msg.ID, Message: "folderId is required"})
			return
		}
		start = func(s models.Session) (func(), error) {
			if !s.SignedIn() {
				emit(&views.FolderDetail{Notes: []notes.NoteSummary{}})
				return func() {}, nil
			}
			release, err := c.views.WatchFolder(c.ctx, s, msg.FolderID, func(d *views.FolderDetail) { emit(d) }, onError)
			return release, err
		}
	default:
		c.send(wsOutbound{Type: wsError, ID: msg.ID, Message: "unknown view"})
		return
	}

	follower, err := subscription.FollowFunc(c.tracker, start, onError)
	if err != nil {
		onError(err)
		return
	}

	c.mu.Lock()
	c.subs[msg.ID] = follower
	c.mu.Unlock()
}

func (c *wsConn) unsubscribe(id string) {
	c.mu.Lock()
	follower, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if ok {
		follower.Release()
	}
}

func (c *wsConn) releaseAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*subscription.Follower)
	c.mu.Unlock()

	for _, f := range subs {
		f.Release()
	}
}

// send writes one message. Failures are logged; the read loop notices a dead
// connection on its own.
func (c *wsConn) send(msg wsOutbound) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed",
			"type", msg.Type,
			"id", msg.ID,
			"error", err,
		)
	}
}

func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
