package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkpulse.local/internal/app/shortlink"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = "id, link_id::text, visitor_id, device_type, browser, country, referrer, created_at"

// EventsRepo 是 EventStore 的 PostgreSQL 实现；visit_events 只插入不更新。
type EventsRepo struct {
	db *pgxpool.Pool
}

func NewEventsRepo(db *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{db: db}
}

func (e *EventsRepo) Append(ctx context.Context, ev shortlink.VisitEvent) (shortlink.VisitEvent, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var at *time.Time
	if !ev.CreatedAt.IsZero() {
		at = &ev.CreatedAt
	}
	err := e.db.QueryRow(dbctx,
		`INSERT INTO visit_events (link_id, visitor_id, device_type, browser, country, referrer, created_at)
		 VALUES ($1::text::uuid, $2, $3, $4, $5, $6, COALESCE($7, now())) RETURNING id, created_at`,
		ev.LinkID, ev.VisitorID, string(ev.DeviceType), ev.Browser, ev.Country, ev.Referrer, at,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 外键不存在，或者 link_id 根本不是合法 UUID（以 text 传参，由服务端报 22P02）
		if errors.As(err, &pgErr) && (pgErr.Code == pgForeignKeyViolation || pgErr.Code == pgInvalidText) {
			return shortlink.VisitEvent{}, shortlink.ErrUnknownLink
		}
		slog.Error("events: insert failed", "err", err, "link_id", ev.LinkID)
		return shortlink.VisitEvent{}, shortlink.StorageError(err)
	}
	return ev, nil
}

func (e *EventsRepo) ListByLinks(ctx context.Context, linkIDs []string) ([]shortlink.VisitEvent, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := e.db.Query(dbctx,
		"SELECT "+eventColumns+" FROM visit_events WHERE link_id = ANY($1::text[]::uuid[]) ORDER BY created_at, id", linkIDs)
	if err != nil {
		slog.Error("events: list by links failed", "err", err)
		return nil, shortlink.StorageError(err)
	}
	return collectEvents(rows)
}

// ListByLink 按 id 倒序分页，cursor 是上一页最后一条的 id（0 表示第一页）。
func (e *EventsRepo) ListByLink(ctx context.Context, linkID string, limit int, cursor int64) ([]shortlink.VisitEvent, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rows pgx.Rows
	var err error
	if cursor == 0 {
		rows, err = e.db.Query(dbctx, "SELECT "+eventColumns+" FROM visit_events WHERE link_id=$1::uuid ORDER BY id DESC LIMIT $2", linkID, limit)
	} else {
		rows, err = e.db.Query(dbctx, "SELECT "+eventColumns+" FROM visit_events WHERE link_id=$1::uuid AND id<$2 ORDER BY id DESC LIMIT $3", linkID, cursor, limit)
	}
	if err != nil {
		slog.Error("events: list by link failed", "err", err)
		return nil, shortlink.StorageError(err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]shortlink.VisitEvent, error) {
	defer rows.Close()
	var out []shortlink.VisitEvent
	for rows.Next() {
		var ev shortlink.VisitEvent
		var device string
		if err := rows.Scan(&ev.ID, &ev.LinkID, &ev.VisitorID, &device, &ev.Browser, &ev.Country, &ev.Referrer, &ev.CreatedAt); err != nil {
			slog.Error("events: scan failed", "err", err)
			return nil, shortlink.StorageError(err)
		}
		ev.DeviceType = shortlink.DeviceType(device)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, shortlink.StorageError(err)
	}
	return out, nil
}

var _ shortlink.EventStore = (*EventsRepo)(nil)
