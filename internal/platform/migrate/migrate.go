// Package migrate 按文件名顺序执行 *.sql，并把已执行的版本记在 schema_migrations。
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"linkpulse.local/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// 多个实例同时启动时只允许一个执行迁移
const advisoryLockKey int64 = 0x6c70_6d69_6772

type Options struct {
	// Dir 为空时使用二进制内嵌的 migrations 目录
	Dir string
}

type Result struct {
	Source       string
	AppliedFiles []string
	SkippedFiles []string
}

func Up(ctx context.Context, db *pgxpool.Pool, opts Options) (*Result, error) {
	src, name := source(opts.Dir)

	files, err := listSQLFiles(src)
	if err != nil {
		return nil, err
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	defer func() {
		// 用独立 ctx：调用方 ctx 取消后也要把锁还回去
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`); err != nil {
		return nil, err
	}

	res := &Result{Source: name}
	for _, file := range files {
		var applied bool
		err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, file).Scan(&applied)
		if err != nil {
			return nil, err
		}
		if applied {
			res.SkippedFiles = append(res.SkippedFiles, file)
			continue
		}

		body, err := fs.ReadFile(src, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := applyFile(ctx, conn, file, string(body)); err != nil {
			return nil, err
		}
		slog.Info("migration applied", "version", file, "source", name)
		res.AppliedFiles = append(res.AppliedFiles, file)
	}

	return res, nil
}

func applyFile(ctx context.Context, conn *pgxpool.Conn, version, body string) error {
	// 整个文件作为一个批次在事务里执行
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, body); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1,$2)`, version, time.Now()); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}

	return tx.Commit(ctx)
}

func source(dir string) (fs.FS, string) {
	if dir = strings.TrimSpace(dir); dir != "" {
		return os.DirFS(dir), dir
	}
	return migrations.FS, "embedded"
}

// listSQLFiles 只看根目录下的 .sql，按文件名排序（001_、002_ ...）。
func listSQLFiles(src fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
