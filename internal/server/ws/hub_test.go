package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

type fakeBus struct {
	chans  map[string]chan []byte
	stream []domain.StreamMessage
	from   chan string
}

func (b *fakeBus) Publish(context.Context, string, []byte) error      { return nil }
func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func (b *fakeBus) StreamRead(_ context.Context, _ string, lastID string, _ int) ([]domain.StreamMessage, error) {
	b.from <- lastID
	return b.stream, nil
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", kind)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestHubRelaysAndReplays(t *testing.T) {
	bus := &fakeBus{
		chans: map[string]chan []byte{
			"ch:decision": make(chan []byte, 4),
			"ch:cycle":    make(chan []byte, 4),
		},
		stream: []domain.StreamMessage{{ID: "1-0", Payload: []byte(`{"id":"old"}`)}},
		from:   make(chan string, 1),
	}
	hub := NewHub(bus, Config{
		Mode:          "paper",
		Channels:      []string{"ch:decision", "ch:cycle"},
		ReplayStream:  "stream:decisions",
		ReplayChannel: "ch:decision",
		ReplayWindow:  time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Channel != "status" || !strings.Contains(string(env.Data), `"mode":"paper"`) {
		t.Fatalf("hello = %s %s", env.Channel, env.Data)
	}
	if env := readEnvelope(t, conn); env.Channel != "ch:decision" || string(env.Data) != `{"id":"old"}` {
		t.Fatalf("replay = %s %s", env.Channel, env.Data)
	}
	if from := <-bus.from; !strings.HasSuffix(from, "-0") {
		t.Errorf("replay start id = %q", from)
	}

	bus.chans["ch:cycle"] <- []byte(`{"cycle_id":"c1"}`)
	if env := readEnvelope(t, conn); env.Channel != "ch:cycle" || string(env.Data) != `{"cycle_id":"c1"}` {
		t.Errorf("relayed = %s %s", env.Channel, env.Data)
	}
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:decision": true}}

	if !c.subscribed("ch:decision") || c.subscribed("ch:cycle") {
		t.Fatalf("initial subs wrong")
	}
	c.apply(subscribeMsg{Action: "unsubscribe", Channels: []string{"ch:decision"}})
	if c.subscribed("ch:decision") {
		t.Errorf("still subscribed after unsubscribe")
	}
	c.apply(subscribeMsg{Action: "subscribe", Channels: []string{"ch:*"}})
	if !c.subscribed("ch:cycle") || !c.subscribed("ch:decision") {
		t.Errorf("wildcard subscribe not honoured")
	}
	if c.subscribed("other") {
		t.Errorf("wildcard matched foreign channel")
	}
}
