package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordingSender struct {
	name string
	sent []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.sent = append(r.sent, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"derisk", " limit_breach "}, 0, discard())

	ctx := context.Background()
	_ = n.Notify(ctx, "derisk", "Unwinding ASML", "")
	_ = n.Notify(ctx, "engine_started", "Engine started", "")
	_ = n.Notify(ctx, "limit_breach", "ASML breach", "")

	if len(s.sent) != 2 || s.sent[0] != "Unwinding ASML" || s.sent[1] != "ASML breach" {
		t.Errorf("sent = %v", s.sent)
	}
}

func TestNotifierCooldown(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, time.Minute, discard())
	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	ctx := context.Background()
	_ = n.Notify(ctx, "limit_breach", "ASML", "")
	_ = n.Notify(ctx, "limit_breach", "ASML", "")
	_ = n.Notify(ctx, "limit_breach", "SAP", "")
	now = now.Add(time.Minute)
	_ = n.Notify(ctx, "limit_breach", "ASML", "")

	want := []string{"ASML", "SAP", "ASML"}
	if strings.Join(s.sent, ",") != strings.Join(want, ",") {
		t.Errorf("sent = %v, want %v", s.sent, want)
	}
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingSender{name: "bad", err: boom}
	ok := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{failing, ok}, nil, 0, discard())

	err := n.Notify(context.Background(), "exchange_error", "down", "")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping boom", err)
	}
	if len(ok.sent) != 1 {
		t.Errorf("healthy sender skipped after a failure")
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "TOKEN", "42")
	if err := s.Send(context.Background(), "Unwinding ASML_DUAL", "sell 10 @ 10.00"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got["chat_id"] != "42" || got["text"] != "Unwinding ASML_DUAL\nsell 10 @ 10.00" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["parse_mode"]; ok {
		t.Errorf("parse_mode set: %v", got)
	}
}

func TestDiscordSender(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"rate limited", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewDiscordSender(srv.URL, "pairarb").Send(context.Background(), "Breach", "ASML")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got["content"] != "**Breach**\nASML" || got["username"] != "pairarb" {
				t.Errorf("payload = %v", got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
