package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://u@h/db", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "localhost", Database: "pairarb", User: "arb", Password: "pw"},
			want: "postgres://arb:pw@localhost:5432/pairarb?sslmode=disable",
		},
		{
			name: "port and ssl",
			cfg:  ClientConfig{Host: "db", Port: 6543, Database: "d", User: "u", Password: "p", SSLMode: "require"},
			want: "postgres://u:p@db:6543/d?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Errorf("migrations = %v", names)
	}
}

func TestAuditQuery(t *testing.T) {
	since := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		event    string
		opts     domain.ListOpts
		want     string
		wantArgs []any
	}{
		{
			name:     "defaults",
			want:     "SELECT id, event, detail, created_at FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1",
			wantArgs: []any{100},
		},
		{
			name:     "prefix and window",
			event:    "engine_",
			opts:     domain.ListOpts{Limit: 5, Offset: 10, Since: &since},
			want:     "SELECT id, event, detail, created_at FROM audit_log WHERE event LIKE $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
			wantArgs: []any{`engine\_%`, since, 5, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := auditQuery(tt.event, tt.opts)
			if got != tt.want {
				t.Errorf("query = %q\nwant    %q", got, tt.want)
			}
			if fmt.Sprint(args) != fmt.Sprint(tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
