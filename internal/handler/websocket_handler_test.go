package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/utils"
)

type chanSource struct {
	ch chan *model.InstrumentEvent
}

func (s *chanSource) SubscribeAll() <-chan *model.InstrumentEvent { return s.ch }

func (s *chanSource) Unsubscribe(<-chan *model.InstrumentEvent) {}

func newTestWebSocketServer(t *testing.T) (*httptest.Server, *chanSource, *WebSocketHandler) {
	t.Helper()

	is := newTestService(t)
	source := &chanSource{ch: make(chan *model.InstrumentEvent, 8)}
	h := NewWebSocketHandler(is, source, []string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	router := gin.New()
	h.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, source, h
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	server, _, _ := newTestWebSocketServer(t)
	conn := dial(t, server, "/ws/events")

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "r1"}))
	msg := readUntil(t, conn, "pong")
	assert.Equal(t, "r1", msg["request_id"])
}

func TestWebSocket_EventBroadcast(t *testing.T) {
	server, source, h := newTestWebSocketServer(t)
	conn := dial(t, server, "/ws/events?types=exchange_completed")

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	readUntil(t, conn, "pong")
	assert.Equal(t, 1, h.GetConnectionStats().TotalConnections)

	source.ch <- model.NewInstrumentEvent(model.EventHealthUpdate, "", model.SeverityInfo, nil)
	source.ch <- model.NewInstrumentEvent(model.EventExchangeCompleted, "uno", model.SeverityInfo, nil)

	msg := readUntil(t, conn, "event")
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, string(model.EventExchangeCompleted), data["event_type"])
	assert.Equal(t, "uno", data["instrument"])
}

func TestWebSocket_InstrumentCommand(t *testing.T) {
	server, _, _ := newTestWebSocketServer(t)
	conn := dial(t, server, "/ws/instruments/uno")

	readUntil(t, conn, "initial_status")

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type:      "command",
		RequestID: "c1",
		Data:      map[string]interface{}{"action": "connect"},
	}))
	msg := readUntil(t, conn, "command_response")
	assert.Equal(t, true, msg["data"].(map[string]interface{})["success"])

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type:      "command",
		RequestID: "c2",
		Data:      map[string]interface{}{"action": "query", "command": "hello"},
	}))
	msg = readUntil(t, conn, "command_response")
	data := msg["data"].(map[string]interface{})
	require.Equal(t, true, data["success"])
	result := data["result"].(map[string]interface{})
	assert.Equal(t, []interface{}{protocol.DefaultDummyAnswer}, result["response_lines"])
}

func TestWebSocket_UnknownInstrument(t *testing.T) {
	server, _, _ := newTestWebSocketServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/instruments/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://lab.local"})

	req := httptest.NewRequest("GET", "/ws/events", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://lab.local")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}

func TestConnectionManager_SendAfterUnregister(t *testing.T) {
	cm := NewConnectionManager()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	cm.Register(client)

	queued, registered := cm.Send(client, []byte("one"))
	assert.True(t, queued)
	assert.True(t, registered)

	queued, registered = cm.Send(client, []byte("two"))
	assert.False(t, queued)
	assert.True(t, registered)

	cm.Unregister(client)
	assert.NotPanics(t, func() {
		queued, registered = cm.Send(client, []byte("three"))
	})
	assert.False(t, queued)
	assert.False(t, registered)
}

func TestConnectionManager_ConcurrentSendAndUnregister(t *testing.T) {
	cm := NewConnectionManager()
	h := &WebSocketHandler{connections: cm, logger: utils.NewServiceLogger(zap.NewNop(), "websocket-handler")}

	for i := 0; i < 50; i++ {
		client := &Client{ID: "c", Send: make(chan []byte, 4)}
		cm.Register(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 20; j++ {
				h.trySend(client, []byte("event"))
			}
		}()
		cm.Unregister(client)
		<-done
	}
	assert.Zero(t, cm.GetStats().TotalConnections)
}
