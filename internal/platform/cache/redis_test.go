package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	tests := []struct {
		name     string
		addr     string
		password string
		wantErr  bool
	}{
		{name: "ok", addr: mr.Addr(), password: "secret"},
		{name: "wrong password", addr: mr.Addr(), password: "nope", wantErr: true},
		{name: "unreachable", addr: "127.0.0.1:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.addr, tt.password, 0)
			if tt.wantErr {
				if err == nil {
					client.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRedisClient: %v", err)
			}
			defer client.Close()
			if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
				t.Fatalf("set: %v", err)
			}
			if got := mr.DB(0).Keys(); len(got) != 1 || got[0] != "k" {
				t.Fatalf("keys: %v", got)
			}
		})
	}
}
