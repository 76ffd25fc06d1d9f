package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func subscribe(t *testing.T, c *websocket.Conn, paymentID string) {
	t.Helper()
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", PaymentID: paymentID}))
	var ack map[string]string
	require.NoError(t, c.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack["type"])
}

func TestHub_BroadcastOnlyToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	subscribe(t, a, "pay_1")
	subscribe(t, b, "pay_2")

	hub.Broadcast(events.PaymentStatusUpdate{PaymentID: "pay_1", PaymentStatus: "RECEIVED", SubscriptionStatus: "active"})

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string                     `json:"type"`
		Payload events.PaymentStatusUpdate `json:"payload"`
	}
	require.NoError(t, a.ReadJSON(&msg))
	assert.Equal(t, "payment_status", msg.Type)
	assert.Equal(t, "active", msg.Payload.SubscriptionStatus)

	_ = b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "b não deveria receber a atualização de pay_1")
}

func TestHub_PingAndUnsubscribe(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	subscribe(t, c, "pay_1")
	assert.Equal(t, 1, hub.Subscribers("pay_1"))

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "unsubscribe", PaymentID: "pay_1"}))
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, c.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, 0, hub.Subscribers("pay_1"))
}

func TestRedisSubscriber_ForwardsToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	subscribe(t, c, "pay_7")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRedisSubscriber(ctx, zap.NewNop(), rdb, "payment_status_broadcast", hub)

	b, _ := json.Marshal(events.PaymentStatusUpdate{PaymentID: "pay_7", PaymentStatus: "CONFIRMED"})
	require.Eventually(t, func() bool {
		return rdb.Publish(ctx, "payment_status_broadcast", b).Val() > 0
	}, 2*time.Second, 20*time.Millisecond)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Payload events.PaymentStatusUpdate `json:"payload"`
	}
	require.NoError(t, c.ReadJSON(&msg))
	assert.Equal(t, "CONFIRMED", msg.Payload.PaymentStatus)
}

func TestHub_AuthorizeFiltersSubscribe(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	hub.Authorize = func(_ *http.Request, paymentID string) bool { return paymentID == "pay_mine" }
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", PaymentID: "pay_other"}))
	var resp map[string]string
	require.NoError(t, c.ReadJSON(&resp))
	assert.Equal(t, "error", resp["type"])
	assert.Equal(t, "forbidden", resp["error"])
	assert.Equal(t, 0, hub.Subscribers("pay_other"))

	subscribe(t, c, "pay_mine")
	assert.Equal(t, 1, hub.Subscribers("pay_mine"))
}
