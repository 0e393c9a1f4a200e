package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomwall/roomwall-core/internal/health"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		MaxMessageSize: 65536,
		PingInterval:   30,
		PongTimeout:    60,
	}
}

// newWSEnv serves the router over a real listener and dials one client.
func newWSEnv(t *testing.T) (*testEnv, *websocket.Conn) {
	t.Helper()

	env := newTestEnv(t, Deps{WS: testWSConfig()})
	env.server.hub = NewHub(env.server.wsCfg, testLogger())

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup

	return env, conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading message: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding %q: %v", data, err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()

	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg := readWSMessage(t, conn); msg.Type != WSTypeResponse {
		t.Fatalf("subscribe reply type = %q, want %q", msg.Type, WSTypeResponse)
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestWebSocketSubscribedClientReceivesBroadcast(t *testing.T) {
	env, conn := newWSEnv(t)
	waitForClients(t, env.server.hub, 1)
	subscribe(t, conn, ChannelModuleHealth)

	env.server.hub.BroadcastModuleHealth(health.ModuleView{Name: "display"})

	msg := readWSMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelModuleHealth {
		t.Fatalf("got type=%q event_type=%q", msg.Type, msg.EventType)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	var view struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload, &view); err != nil {
		t.Fatal(err)
	}
	if view.Name != "display" {
		t.Errorf("payload module = %q, want display", view.Name)
	}
}

func TestWebSocketBroadcastFiltersByChannel(t *testing.T) {
	env, conn := newWSEnv(t)
	waitForClients(t, env.server.hub, 1)
	subscribe(t, conn, ChannelHealthEvent)

	// The module-health broadcast must not reach this client; the next
	// frame it sees is the event-channel one.
	env.server.hub.BroadcastModuleHealth(health.ModuleView{Name: "display"})
	env.server.hub.BroadcastHealthEvent(health.Event{ID: "ev-1", Module: "display"})

	msg := readWSMessage(t, conn)
	if msg.EventType != ChannelHealthEvent {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelHealthEvent)
	}
}

func TestWebSocketUnsubscribeStopsDelivery(t *testing.T) {
	env, conn := newWSEnv(t)
	waitForClients(t, env.server.hub, 1)
	subscribe(t, conn, ChannelModuleHealth, ChannelHealthEvent)

	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelModuleHealth}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg := readWSMessage(t, conn); msg.Type != WSTypeResponse {
		t.Fatalf("unsubscribe reply type = %q", msg.Type)
	}

	env.server.hub.BroadcastModuleHealth(health.ModuleView{Name: "display"})
	env.server.hub.BroadcastHealthEvent(health.Event{ID: "ev-2"})

	if msg := readWSMessage(t, conn); msg.EventType != ChannelHealthEvent {
		t.Errorf("event_type = %q, want %q after unsubscribe", msg.EventType, ChannelHealthEvent)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	env, conn := newWSEnv(t)
	waitForClients(t, env.server.hub, 1)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatal(err)
	}

	msg := readWSMessage(t, conn)
	if msg.Type != WSTypePong || msg.ID != "ping-1" {
		t.Errorf("got type=%q id=%q, want pong ping-1", msg.Type, msg.ID)
	}
}

func TestWebSocketDisconnectLeavesHub(t *testing.T) {
	env, conn := newWSEnv(t)
	waitForClients(t, env.server.hub, 1)

	conn.Close() //nolint:errcheck // Simulating client drop
	waitForClients(t, env.server.hub, 0)

	// Broadcasting into an empty hub must not block or panic.
	env.server.hub.BroadcastModuleHealth(health.ModuleView{Name: "display"})
}

func TestTrySendDropsWhenBufferFull(t *testing.T) {
	client := &WSClient{send: make(chan []byte, 1)}

	client.trySend([]byte("first"))
	client.trySend([]byte("second"))

	if got := len(client.send); got != 1 {
		t.Errorf("buffered = %d, want 1 (overflow dropped)", got)
	}
	if got := <-client.send; string(got) != "first" {
		t.Errorf("kept message = %q, want first", got)
	}
}

func TestTrySendAbsorbsClosedChannel(t *testing.T) {
	client := &WSClient{send: make(chan []byte, 1)}
	close(client.send)

	// Must not panic: broadcast can race a disconnecting client.
	client.trySend([]byte("late"))
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := &WSClient{hub: hub, send: make(chan []byte, 1)}

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("count = %d, want 0", hub.ClientCount())
	}
}
