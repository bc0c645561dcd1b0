package handler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/pool"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// ProgressHub рассылает события прогресса перебора сетки WebSocket клиентам
type ProgressHub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	updates    chan models.Progress
	register   chan *Client
	unregister chan *Client

	// last последнее событие каждого варианта, отправляется новым клиентам
	last map[models.SolverKind]models.Progress

	sent    uint64
	dropped uint64
	logger  *utils.Logger
}

// NewProgressHub создает хаб; рассылка начинается после Run
func NewProgressHub(logger *utils.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*Client]bool),
		updates:    make(chan models.Progress, 1000),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		last:       make(map[models.SolverKind]models.Progress),
		logger:     logger.WithField("component", "progress_hub"),
	}
}

// Publish ставит событие в очередь; при переполнении событие отбрасывается.
// Подходит как evaluation.ProgressFunc.
func (h *ProgressHub) Publish(p models.Progress) {
	select {
	case h.updates <- p:
	default:
		atomic.AddUint64(&h.dropped, 1)
		h.logger.Warn("Progress channel full, dropping update")
	}
}

// Register подписывает клиента
func (h *ProgressHub) Register(client *Client) {
	h.register <- client
}

// Unregister отписывает клиента
func (h *ProgressHub) Unregister(client *Client) {
	h.unregister <- client
}

// Run основной цикл рассылки до отмены контекста
func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case update := <-h.updates:
			h.mu.Lock()
			h.last[update.Kind] = update
			h.mu.Unlock()
			h.broadcast(update)
		}
	}
}

func (h *ProgressHub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	snapshot := make([]models.Progress, 0, len(h.last))
	for _, p := range h.last {
		snapshot = append(snapshot, p)
	}
	h.mu.Unlock()

	for _, p := range snapshot {
		h.deliver(client, p)
	}
	h.logger.WithField("clients", h.ClientCount()).Debug("Progress client registered")
}

func (h *ProgressHub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *ProgressHub) broadcast(p models.Progress) {
	data, err := marshalProto(p)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal progress")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.deliverFrame(c, data)
	}
}

// deliver кодирует событие и кладет кадр в очередь клиента
func (h *ProgressHub) deliver(client *Client, p models.Progress) {
	data, err := marshalProto(p)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal progress")
		return
	}
	h.deliverFrame(client, data)
}

// deliverFrame копирует кадр в буфер из пула; буфер возвращает writePump
func (h *ProgressHub) deliverFrame(client *Client, data []byte) {
	bp := pool.Global.GetByteSlice()
	*bp = append(*bp, data...)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		pool.Global.PutByteSlice(bp)
		return
	}
	select {
	case client.send <- bp:
		atomic.AddUint64(&h.sent, 1)
	default:
		pool.Global.PutByteSlice(bp)
		atomic.AddUint64(&h.dropped, 1)
		metrics.WebSocketErrors.Inc()
		h.logger.Warn("Client send buffer full, dropping progress frame")
	}
}

func (h *ProgressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount количество подключенных клиентов
func (h *ProgressHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats счетчики отправленных и отброшенных кадров
func (h *ProgressHub) Stats() (sent, dropped uint64) {
	return atomic.LoadUint64(&h.sent), atomic.LoadUint64(&h.dropped)
}
