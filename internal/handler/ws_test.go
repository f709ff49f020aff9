package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/service/markdown"
	"skynotes/internal/service/views"
)

// tokenVerifier accepts tokens of the form "user:<id>".
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(token string) (*models.IdentityClaims, error) {
	id, ok := strings.CutPrefix(token, "user:")
	if !ok || id == "" {
		return nil, domain.ErrUnauthorized
	}
	return &models.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: id}}, nil
}

func (tokenVerifier) Close() error { return nil }

type wsReply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	UserID  string          `json:"userId"`
}

func dialWS(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	viewService := views.NewService(s.store, markdown.NewRenderer(), testLogger())
	ws := NewWSHandler(viewService, tokenVerifier{}, nil, testLogger())

	server := httptest.NewServer(http.HandlerFunc(ws.ServeWS))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsReply) bool) wsReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg wsReply
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func folderSnapshot(id string, size int) func(wsReply) bool {
	return func(m wsReply) bool {
		if m.Type != wsSnapshot || m.ID != id {
			return false
		}
		var folders []notes.Folder
		return json.Unmarshal(m.Data, &folders) == nil && len(folders) == size
	}
}

func TestWS_SubscriptionFollowsSignIn(t *testing.T) {
	s := newTestServer(t)
	s.folder(t, "alice", "Ideas")
	s.folder(t, "bob", "Bob's")
	s.folder(t, "bob", "More")

	conn := dialWS(t, s)

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "id": "s1", "view": "folders"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, folderSnapshot("s1", 0))

	// The session notice and the new snapshot may arrive in either order.
	conn.WriteJSON(map[string]string{"type": "auth", "token": "user:alice"})
	var sawSession, sawSnapshot bool
	aliceSnapshot := folderSnapshot("s1", 1)
	for !sawSession || !sawSnapshot {
		msg := readUntil(t, conn, func(m wsReply) bool {
			return (m.Type == wsSession && m.UserID == "alice") || aliceSnapshot(m)
		})
		if msg.Type == wsSession {
			sawSession = true
		} else {
			sawSnapshot = true
		}
	}

	conn.WriteJSON(map[string]string{"type": "auth", "token": "user:bob"})
	readUntil(t, conn, folderSnapshot("s1", 2))

	conn.WriteJSON(map[string]string{"type": "signout"})
	readUntil(t, conn, folderSnapshot("s1", 0))
}

func TestWS_FolderViewSignedOutIsEmpty(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	s.note(t, "alice", ideas, "Plan")

	conn := dialWS(t, s)
	conn.WriteJSON(map[string]string{"type": "subscribe", "id": "f1", "view": "folder", "folderId": ideas})

	folderDetail := func(size int) func(wsReply) bool {
		return func(m wsReply) bool {
			if m.Type != wsSnapshot || m.ID != "f1" {
				return false
			}
			var d views.FolderDetail
			return json.Unmarshal(m.Data, &d) == nil && d.Notes != nil && len(d.Notes) == size
		}
	}
	readUntil(t, conn, folderDetail(0))

	conn.WriteJSON(map[string]string{"type": "auth", "token": "user:alice"})
	readUntil(t, conn, folderDetail(1))

	conn.WriteJSON(map[string]string{"type": "signout"})
	readUntil(t, conn, folderDetail(0))
}

func TestWS_Errors(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	conn.WriteJSON(map[string]string{"type": "auth", "id": "a1", "token": "forged"})
	if msg := readUntil(t, conn, func(m wsReply) bool { return m.Type == wsError }); msg.ID != "a1" {
		t.Errorf("auth error = %+v", msg)
	}

	conn.WriteJSON(map[string]string{"type": "subscribe", "id": "s1", "view": "calendar"})
	if msg := readUntil(t, conn, func(m wsReply) bool { return m.Type == wsError }); msg.Message != "unknown view" {
		t.Errorf("view error = %+v", msg)
	}

	conn.WriteJSON(map[string]string{"type": "subscribe", "id": "s2", "view": "folder"})
	if msg := readUntil(t, conn, func(m wsReply) bool { return m.Type == wsError }); msg.Message != "folderId is required" {
		t.Errorf("folder error = %+v", msg)
	}
}
