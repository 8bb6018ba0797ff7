package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"direct-chat/internal/auth"
	"direct-chat/internal/config"
	"direct-chat/internal/database"
	"direct-chat/internal/models"
	"direct-chat/internal/realtime"
	"direct-chat/internal/services"
	"direct-chat/pkg/snowflake"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)
	db := database.NewMemoryDB(ids).WithHashCost(bcrypt.MinCost)

	authService := auth.NewService(db, config.JWTConfig{Secret: []byte("test-secret"), ExpiresIn: time.Hour})
	hub := realtime.NewHub(realtime.Options{SweepInterval: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	messageService := services.NewMessageService(db, hub, nil)
	userService := services.NewUserService(db, hub, nil)

	router := &Router{
		Auth:         authService,
		AuthHandlers: NewAuthHandlers(authService),
		UserHandlers: NewUserHandlers(userService),
		MsgHandlers:  NewMessageHandlers(messageService),
		WSHandlers:   NewWebSocketHandlers(authService, hub, messageService, 64),
	}
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub}
}

type account struct {
	token string
	id    string
}

func (s *testServer) signUp(t *testing.T, name string) account {
	t.Helper()
	body, _ := json.Marshal(models.RegisterRequest{Username: name, Email: name + "@example.com", Password: "password1"})
	resp, err := http.Post(s.URL+"/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out models.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return account{token: out.Token, id: out.User.ID}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next returns the first event of the given type, skipping others.
func next(t *testing.T, conn *websocket.Conn, typ models.EventType) models.ServerEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev models.ServerEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestWebSocketRejectsMissingOrBadToken(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, s.hub.ConnectionCount())
}

func TestWebSocketConversation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	aliceConn := s.dial(t, "token="+alice.token)
	snap := next(t, aliceConn, models.EventPresenceSnapshot)
	require.Len(t, snap.Entries, 1)

	bobConn := s.dial(t, "token="+bob.token)
	next(t, bobConn, models.EventPresenceSnapshot)

	delta := next(t, aliceConn, models.EventPresenceDelta)
	require.Equal(t, bob.id, delta.UserID)
	require.Equal(t, models.PresenceOnline, delta.State)

	require.NoError(t, aliceConn.WriteJSON(models.ClientEvent{Type: models.EventTypingStart, PeerID: bob.id}))
	started := next(t, bobConn, models.EventTypingStarted)
	require.Equal(t, alice.id, started.FromUserID)

	require.NoError(t, aliceConn.WriteJSON(models.ClientEvent{
		Type:      models.EventMessageSend,
		PeerID:    bob.id,
		Body:      "hello bob",
		ClientRef: "c-1",
	}))

	ack := next(t, aliceConn, models.EventMessageAck)
	require.Equal(t, "c-1", ack.ClientRef)
	require.NotNil(t, ack.Message)

	stopped := next(t, bobConn, models.EventTypingStopped)
	require.Equal(t, alice.id, stopped.FromUserID)
	got := next(t, bobConn, models.EventMessageNew)
	require.Equal(t, ack.Message.ID, got.Message.ID)
	require.Equal(t, "hello bob", got.Message.Body)
	unread := next(t, bobConn, models.EventUnreadUpdate)
	require.Equal(t, alice.id, unread.PeerID)
	require.Equal(t, 1, *unread.Count)

	require.NoError(t, aliceConn.WriteJSON(models.ClientEvent{Type: models.EventMessageSend, PeerID: alice.id, Body: "me", ClientRef: "c-2"}))
	rejected := next(t, aliceConn, models.EventError)
	require.Equal(t, "c-2", rejected.ClientRef)

	bobConn.Close()
	offline := next(t, aliceConn, models.EventPresenceDelta)
	require.Equal(t, bob.id, offline.UserID)
	require.Equal(t, models.PresenceOffline, offline.State)
	require.NotNil(t, offline.LastSeenAt)
}

func TestRESTMessagesAndRoster(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	resp := s.do(t, http.MethodPost, "/messages/"+bob.id, alice.token, models.SendMessageRequest{Body: "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))

	resp = s.do(t, http.MethodPost, "/messages/"+bob.id, alice.token, models.SendMessageRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/messages/nobody", alice.token, models.SendMessageRequest{Body: "hi"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/messages/"+alice.id, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history models.HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history.Messages, 1)
	require.Equal(t, sent.ID, history.Messages[0].ID)

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/messages/%s?after=%d", alice.id, sent.ID), bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history = models.HistoryResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Empty(t, history.Messages)

	resp = s.do(t, http.MethodGet, "/users", alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roster []models.RosterUser
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roster))
	require.Len(t, roster, 1)
	require.Equal(t, "bob", roster[0].Username)
	require.Equal(t, models.PresenceOffline, roster[0].State)

	resp = s.do(t, http.MethodGet, "/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	require.Equal(t, "q", tokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	require.Equal(t, "h", tokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "c"})
	require.Equal(t, "c", tokenFromRequest(r))

	require.Empty(t, tokenFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}
