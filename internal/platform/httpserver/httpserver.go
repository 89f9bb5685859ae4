package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkpulse.local/internal/platform/config"
)

func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		Addr:              cfg.Addr,
	}
}

// ShutdownHook 在 HTTP 服务停止接收请求之后执行，例如把分析队列里剩余的点击写完。
type ShutdownHook func(ctx context.Context) error

// Run 监听 SIGINT/SIGTERM，收到信号后优雅关闭。
func Run(srv *http.Server, shutdownTimeout time.Duration, hooks ...ShutdownHook) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, srv, shutdownTimeout, hooks...)
}

// RunContext 与 Run 相同，但由 stopCtx 触发关闭。
//
// hooks 共享同一个 shutdownTimeout；按注册顺序执行，单个失败不影响后续。
func RunContext(stopCtx context.Context, srv *http.Server, shutdownTimeout time.Duration, hooks ...ShutdownHook) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-stopCtx.Done():
		slog.Info("shutting down", "addr", srv.Addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serveErr == nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			slog.Error("shutdown hook failed", "err", err)
		}
	}
	return serveErr
}
