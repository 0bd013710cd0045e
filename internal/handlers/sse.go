package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.Hub

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.Client
}

func NewSSEHandler(log *logger.Logger, hub *sse.Hub) *SSEHandler {
	return &SSEHandler{
		log:     log.With("handler", "SSEHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*sse.Client),
	}
}

// Stream opens the event stream. Every connection is subscribed to the
// user's own channel, which is where the engine publishes progress,
// completion, quiz, and certificate events. A reconnect replaces the
// previous connection.
func (sh *SSEHandler) Stream(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	sh.mu.Lock()
	if existing, ok := sh.clients[userID]; ok {
		sh.hub.CloseClient(existing)
		delete(sh.clients, userID)
	}
	client := sh.hub.NewClient(userID)
	sh.clients[userID] = client
	sh.mu.Unlock()

	sh.hub.AddChannel(client, userID.String())
	sh.log.Debug("SSE stream open", "user_id", userID, "client_id", client.ID)

	sh.hub.ServeHTTP(c.Writer, c.Request, client)

	sh.mu.Lock()
	if current, ok := sh.clients[userID]; ok && current == client {
		delete(sh.clients, userID)
	}
	sh.mu.Unlock()
	sh.hub.CloseClient(client)
	sh.log.Debug("SSE stream closed", "user_id", userID, "client_id", client.ID)
}

func (sh *SSEHandler) Subscribe(c *gin.Context) {
	client, channel, ok := sh.clientAndChannel(c)
	if !ok {
		return
	}
	sh.hub.AddChannel(client, channel)
	RespondOK(c, gin.H{"message": "subscribed", "channel": channel})
}

func (sh *SSEHandler) Unsubscribe(c *gin.Context) {
	client, channel, ok := sh.clientAndChannel(c)
	if !ok {
		return
	}
	sh.hub.RemoveChannel(client, channel)
	RespondOK(c, gin.H{"message": "unsubscribed", "channel": channel})
}

func (sh *SSEHandler) clientAndChannel(c *gin.Context) (*sse.Client, string, bool) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, "", false
	}

	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return nil, "", false
	}

	sh.mu.RLock()
	client, exists := sh.clients[userID]
	sh.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection"})
		return nil, "", false
	}
	return client, req.Channel, true
}
