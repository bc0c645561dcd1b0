package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/pkg/pool"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// WebSocketHandler отдает поток прогресса перебора сетки
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	hub          *ProgressHub
	pingInterval time.Duration
	pongTimeout  time.Duration
	logger       *utils.Logger
}

// Client WebSocket соединение подписчика
type Client struct {
	conn    *websocket.Conn
	send    chan *[]byte
	handler *WebSocketHandler
}

// NewWebSocketHandler создает handler поверх хаба прогресса
func NewWebSocketHandler(hub *ProgressHub, pingInterval, pongTimeout time.Duration, logger *utils.Logger) *WebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= pingInterval {
		pongTimeout = 2 * pingInterval
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hub:          hub,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		logger:       logger.WithField("component", "websocket"),
	}
}

// HandleWebSocket обрабатывает подключения к /ws/v1/progress
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan *[]byte, 256),
		handler: h,
	}

	h.logger.WithField("client_ip", c.ClientIP()).Info("WebSocket client connected")
	metrics.WebSocketConnections.Inc()

	h.hub.Register(client)
	go client.writePump()
	go client.readPump()
}

// readPump читает управляющие кадры до закрытия соединения
func (c *Client) readPump() {
	defer func() {
		c.handler.hub.Unregister(c)
		c.conn.Close()
		metrics.WebSocketConnections.Dec()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithField("error", err).Error("WebSocket read error")
			}
			return
		}
	}
}

// writePump отправляет кадры прогресса и ping
func (c *Client) writePump() {
	ticker := time.NewTicker(c.handler.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case bp, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := c.conn.WriteMessage(websocket.BinaryMessage, *bp)
			pool.Global.PutByteSlice(bp)
			if err != nil {
				c.handler.logger.WithField("error", err).Error("WebSocket write error")
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("progress").Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.handler.logger.WithField("error", err).Error("Ping write error")
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("ping").Inc()
		}
	}
}
