package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// conn serializa as escritas (gorilla não aceita escritas concorrentes)
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Hub gerencia conexões WebSocket inscritas no status de cobranças
// subs: paymentID -> conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*conn]struct{}

	// Authorize decide se a conexão pode acompanhar a cobrança (nil libera tudo)
	Authorize func(r *http.Request, paymentID string) bool

	OnConnect    func()
	OnDisconnect func()
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão.
// Cada cliente pode acompanhar várias cobranças.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.PaymentID == "" {
				continue
			}
			if h.Authorize != nil && !h.Authorize(r, msg.PaymentID) {
				_ = c.writeJSON(map[string]string{"type": "error", "paymentId": msg.PaymentID, "error": "forbidden"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.PaymentID]; !ok {
				h.subs[msg.PaymentID] = make(map[*conn]struct{})
			}
			h.subs[msg.PaymentID][c] = struct{}{}
			h.mu.Unlock()
			_ = c.writeJSON(map[string]string{"type": "subscribed", "paymentId": msg.PaymentID})
		case "unsubscribe":
			h.remove(msg.PaymentID, c)
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) remove(paymentID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[paymentID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, paymentID)
		}
	}
}

// Broadcast envia a atualização para os clientes inscritos na cobrança
func (h *Hub) Broadcast(update events.PaymentStatusUpdate) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.subs[update.PaymentID]))
	for c := range h.subs[update.PaymentID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	msg := StatusMessage{Type: "payment_status", Payload: update}
	for _, c := range conns {
		_ = c.writeJSON(msg)
	}
}

// Subscribers devolve quantas conexões acompanham a cobrança
func (h *Hub) Subscribers(paymentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[paymentID])
}

// decode é usado pelo subscriber Redis
func decode(payload string) (events.PaymentStatusUpdate, error) {
	var upd events.PaymentStatusUpdate
	err := json.Unmarshal([]byte(payload), &upd)
	return upd, err
}
