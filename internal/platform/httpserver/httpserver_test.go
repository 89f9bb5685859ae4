package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"linkpulse.local/internal/platform/config"
)

func TestNew_UsesConfigAndHandler(t *testing.T) {
	cfg := config.Config{
		Addr:              "127.0.0.1:0",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      4 * time.Second,
		IdleTimeout:       5 * time.Second,
	}
	handler := http.NewServeMux()

	srv := New(cfg, handler)

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr: got %q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.Handler != handler {
		t.Fatalf("Handler: got %T, want %T", srv.Handler, handler)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout || srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("read timeouts: got %v/%v", srv.ReadHeaderTimeout, srv.ReadTimeout)
	}
	if srv.WriteTimeout != cfg.WriteTimeout || srv.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("write/idle timeouts: got %v/%v", srv.WriteTimeout, srv.IdleTimeout)
	}
}

func TestRunContext_CancelStopsServerAndRunsHooks(t *testing.T) {
	srv := New(config.Config{Addr: "127.0.0.1:0"}, http.NewServeMux())

	stopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	hooks := []ShutdownHook{
		func(ctx context.Context) error {
			order = append(order, "first")
			return errors.New("boom") // 失败不影响后面的 hook
		},
		func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("hook ctx has no deadline")
			}
			order = append(order, "second")
			return nil
		},
	}

	done := make(chan error, 1)
	go func() {
		done <- RunContext(stopCtx, srv, 500*time.Millisecond, hooks...)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for shutdown")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("hooks order: %v", order)
	}
}

func TestRunContext_ListenErrorStillRunsHooks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// 端口已被占用，ListenAndServe 直接失败
	srv := New(config.Config{Addr: ln.Addr().String()}, http.NewServeMux())
	ran := false
	err = RunContext(context.Background(), srv, time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatal("expected listen error")
	}
	if !ran {
		t.Fatal("hook not run")
	}
}
