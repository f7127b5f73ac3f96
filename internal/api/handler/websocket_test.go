package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/ainexus_server/internal/pkg/jwt"
	"github.com/qs3c/ainexus_server/internal/pkg/ws"
)

const testStreamSecret = "ws_handler_secret"

func walletToken(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := jwt.GenerateToken(subject, role, testStreamSecret, 1)
	require.NoError(t, err)
	return token
}

func TestWebSocketHandler_PushesToWallet(t *testing.T) {
	hub := ws.NewHub()
	h := NewWebSocketHandler(hub, testStreamSecret)

	engine := gin.New()
	engine.GET("/ws", h.Handle)
	server := httptest.NewServer(engine)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + walletToken(t, "0xABCDEF", jwt.RoleWallet)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline("0xabcdef") }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToWallet("0xabcdef", &ws.Message{Type: "subscription.activated", Data: map[string]int{"uploads_remaining": 20}}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "subscription.activated", msg.Type)
	assert.Equal(t, 20, msg.Data["uploads_remaining"])

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsOnline("0xabcdef") }, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_Auth(t *testing.T) {
	hub := ws.NewHub()
	h := NewWebSocketHandler(hub, testStreamSecret)

	engine := gin.New()
	engine.GET("/ws", h.Handle)

	forged, err := jwt.GenerateToken("0xabcdef", jwt.RoleWallet, "another_secret", 1)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken("0xabcdef", jwt.RoleWallet, testStreamSecret, -1)
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantError  string
	}{
		{"missing token", "/ws?wallet=0xabcdef", http.StatusUnauthorized, "Missing token"},
		{"forged token", "/ws?token=" + forged, http.StatusUnauthorized, "Invalid or expired token"},
		{"expired token", "/ws?token=" + expired, http.StatusUnauthorized, "Invalid or expired token"},
		{"admin token", "/ws?token=" + walletToken(t, "ops", jwt.RoleAdmin), http.StatusForbidden, "Wallet token required"},
		{"empty wallet", "/ws?token=" + walletToken(t, "  ", jwt.RoleWallet), http.StatusForbidden, "Wallet token required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(engine, "GET", tt.query, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, parseError(t, w))
		})
	}
	assert.Equal(t, 0, hub.ConnectionCount())
}
