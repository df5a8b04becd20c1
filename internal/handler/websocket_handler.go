// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 54 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 256
	wsCommandLimit = 30 * time.Second
)

// EventSource is the subscribing side of the event bus
type EventSource interface {
	SubscribeAll() <-chan *model.InstrumentEvent
	Unsubscribe(ch <-chan *model.InstrumentEvent)
}

// WebSocketHandler streams instrument events and accepts link commands
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	connections       *ConnectionManager
	instrumentService *service.InstrumentService
	events            EventSource
	logger            *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. Origins are checked
// against allowedOrigins; "*" or an empty list allows any.
func NewWebSocketHandler(
	instrumentService *service.InstrumentService,
	events EventSource,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections:       NewConnectionManager(),
		instrumentService: instrumentService,
		events:            events,
		logger:            utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
	router.GET("/instruments/:name", h.HandleInstrumentConnection)
}

// Run forwards bus events to interested clients until ctx is done
func (h *WebSocketHandler) Run(ctx context.Context) {
	events := h.events.SubscribeAll()
	defer h.events.Unsubscribe(events)
	defer h.connections.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

// HandleEventConnection streams every event. The types query parameter
// subscribes to a comma separated list of event types up front.
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	h.accept(c, "events", nil)
}

// HandleInstrumentConnection streams one instrument's events and accepts
// commands for it
func (h *WebSocketHandler) HandleInstrumentConnection(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.instrumentService.Get(c.Request.Context(), name); err != nil {
		utils.ErrorResponse(c, statusFor(err), "Instrument not found", err)
		return
	}
	h.accept(c, "instrument", &name)
}

func (h *WebSocketHandler) accept(c *gin.Context, clientType string, instrument *string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, wsSendBuffer),
		Type:        clientType,
		Instrument:  instrument,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	for _, t := range strings.Split(c.Query("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			client.Subscribe(model.EventType(strings.ToUpper(t)))
		}
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("type", clientType),
		zap.String("remote_addr", client.RemoteAddr),
	)

	if instrument != nil {
		go h.sendInitialStatus(client, *instrument)
	}

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		h.handleSubscription(client, message)
	case "command":
		h.handleCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// handleSubscription changes the event types a client receives
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, message.RequestID, "event_type is required")
		return
	}
	eventType, ok := data["event_type"].(string)
	if !ok || eventType == "" {
		h.sendError(client, message.RequestID, "event_type is required")
		return
	}

	et := model.EventType(strings.ToUpper(eventType))
	if message.Type == "subscribe" {
		client.Subscribe(et)
	} else {
		client.Unsubscribe(et)
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      message.Type + "_confirmed",
		Data:      map[string]interface{}{"event_type": et},
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

// handleCommand runs a link command on the client's instrument
func (h *WebSocketHandler) handleCommand(client *Client, message *WebSocketMessage) {
	if client.Instrument == nil {
		h.sendError(client, message.RequestID, "commands are only available on instrument connections")
		return
	}

	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, message.RequestID, "invalid command data")
		return
	}
	action, _ := data["action"].(string)
	command, _ := data["command"].(string)

	go h.executeCommand(client, *client.Instrument, message.RequestID, action, command)
}

// executeCommand runs one action and sends the result back
func (h *WebSocketHandler) executeCommand(client *Client, name, requestID, action, command string) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCommandLimit)
	defer cancel()

	var (
		result interface{}
		err    error
	)

	switch action {
	case "connect":
		err = h.instrumentService.Connect(ctx, name)
	case "disconnect":
		err = h.instrumentService.Disconnect(ctx, name)
	case "query":
		result, err = h.instrumentService.Query(ctx, name, command)
	case "write":
		result, err = h.instrumentService.Write(ctx, name, command)
	case "read":
		result, err = h.instrumentService.Read(ctx, name)
	case "idn":
		result, err = h.instrumentService.Idn(ctx, name)
	case "status":
		result, err = h.instrumentService.Get(ctx, name)
	default:
		h.sendError(client, requestID, fmt.Sprintf("unknown action: %s", action))
		return
	}

	data := map[string]interface{}{
		"action":  action,
		"success": err == nil,
		"result":  result,
	}
	if err != nil {
		data["error"] = err.Error()
		data["status"] = statusFor(err)
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendInitialStatus sends the instrument's current state to a new client
func (h *WebSocketHandler) sendInitialStatus(client *Client, name string) {
	inst, err := h.instrumentService.Get(context.Background(), name)
	if err != nil {
		h.sendError(client, "", fmt.Sprintf("failed to get instrument: %v", err))
		return
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      inst,
		Timestamp: time.Now(),
	})
}

// broadcast sends an event to every interested client
func (h *WebSocketHandler) broadcast(event *model.InstrumentEvent) {
	clients := h.connections.Interested(event)
	if len(clients) == 0 {
		return
	}

	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		h.trySend(client, messageBytes)
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}
	h.trySend(client, messageBytes)
}

// trySend queues bytes for the client. A gone client or a full channel drops them.
func (h *WebSocketHandler) trySend(client *Client, messageBytes []byte) {
	queued, registered := h.connections.Send(client, messageBytes)
	switch {
	case !registered:
		h.logger.Debug("Client already closed", zap.String("client_id", client.ID))
	case !queued:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
