package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/cache"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

const linkColumns = "id::text, owner_id, destination_url, slug, is_premium, created_at, expires_at"

// LinksRepo 是 LinkStore 的 PostgreSQL 实现，读路径前面挂两级缓存（可为 nil）。
type LinksRepo struct {
	db    *pgxpool.Pool
	cache *cache.SlugCache
}

func NewLinksRepo(db *pgxpool.Pool, cache *cache.SlugCache) *LinksRepo {
	return &LinksRepo{
		db:    db,
		cache: cache,
	}
}

/*
创建短链。slug 唯一性由 active_slug 上的唯一索引保证：
同一事务里先释放已过期持有者的 active_slug，再插入；并发插入同一 slug 只有一个能成功。
*/
func (s *LinksRepo) Create(ctx context.Context, in shortlink.NewLink) (shortlink.ShortLink, error) {
	if err := shortlink.ValidateURL(in.DestinationURL); err != nil {
		return shortlink.ShortLink{}, err
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.Begin(dbctx)
	if err != nil {
		slog.Error("links: begin tx failed", "err", err)
		return shortlink.ShortLink{}, shortlink.StorageError(err)
	}
	defer tx.Rollback(dbctx) //事务提交成功后 rollback 会无效/返回错误，可忽略

	if _, err := tx.Exec(dbctx,
		"UPDATE links SET active_slug=NULL WHERE active_slug=$1 AND expires_at IS NOT NULL AND expires_at<=now()",
		in.Slug); err != nil {
		slog.Error("links: release expired slug failed", "err", err, "slug", in.Slug)
		return shortlink.ShortLink{}, shortlink.StorageError(err)
	}

	link := shortlink.ShortLink{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		DestinationURL: in.DestinationURL,
		Slug:           in.Slug,
		ExpiresAt:      in.ExpiresAt,
		IsPremium:      in.IsPremium,
	}
	err = tx.QueryRow(dbctx,
		`INSERT INTO links (id, owner_id, destination_url, slug, active_slug, is_premium, expires_at)
		 VALUES ($1, $2, $3, $4, $4, $5, $6) RETURNING created_at`,
		link.ID, link.OwnerID, link.DestinationURL, link.Slug, link.IsPremium, link.ExpiresAt,
	).Scan(&link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return shortlink.ShortLink{}, shortlink.ErrSlugTaken
		}
		slog.Error("links: insert failed", "err", err, "slug", in.Slug)
		return shortlink.ShortLink{}, shortlink.StorageError(err)
	}

	if err := tx.Commit(dbctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return shortlink.ShortLink{}, shortlink.ErrSlugTaken
		}
		slog.Error("links: commit failed", "err", err)
		return shortlink.ShortLink{}, shortlink.StorageError(err)
	}

	// 写缓存/覆盖负缓存：创建成功后立刻写入，避免此前命中 "__nil__" 导致短码暂时不可用。
	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := s.cache.Set(cacheCtx, link); err != nil {
			slog.Warn("links: cache set failed", "err", err, "slug", link.Slug)
		}
	}
	return link, nil
}

// FindBySlug 先查缓存再查库；过期返回 ErrLinkExpired，不存在返回 ErrLinkNotFound。
func (s *LinksRepo) FindBySlug(ctx context.Context, slug string, now time.Time) (shortlink.ShortLink, error) {
	if s.cache != nil {
		link, hit, err := s.cache.Get(ctx, slug)
		switch {
		case err != nil:
			// 缓存故障不影响跳转，回源数据库
			slog.Warn("links: cache get failed", "err", err, "slug", slug)
		case hit == cache.NotFound:
			return shortlink.ShortLink{}, shortlink.ErrLinkNotFound
		case hit == cache.Found:
			if link.ExpiredAt(now) {
				return shortlink.ShortLink{}, shortlink.ErrLinkExpired
			}
			return link, nil
		}
	}

	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	link, err := scanLink(s.db.QueryRow(dbctx, "SELECT "+linkColumns+" FROM links WHERE active_slug=$1", slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if s.cache != nil {
				if err := s.cache.SetNotFound(ctx, slug); err != nil {
					slog.Warn("links: cache set not found failed", "err", err, "slug", slug)
				}
			}
			return shortlink.ShortLink{}, shortlink.ErrLinkNotFound
		}
		slog.Error("links: find by slug failed", "err", err, "slug", slug)
		return shortlink.ShortLink{}, shortlink.StorageError(err)
	}

	if link.ExpiredAt(now) {
		return shortlink.ShortLink{}, shortlink.ErrLinkExpired
	}
	//写缓存
	if s.cache != nil {
		if err := s.cache.Set(ctx, link); err != nil {
			slog.Warn("links: cache set failed", "err", err, "slug", slug)
		}
	}
	return link, nil
}

func (s *LinksRepo) ListByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id=$1 ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil {
		slog.Error("links: list by owner failed", "err", err)
		return nil, shortlink.StorageError(err)
	}
	defer rows.Close()

	var result []shortlink.ShortLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			slog.Error("links: scan failed", "err", err)
			return nil, shortlink.StorageError(err)
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		slog.Error("links: rows failed", "err", err)
		return nil, shortlink.StorageError(err)
	}
	return result, nil
}

// ActiveSlugs 返回当前仍占用 slug 的短码，用于预热布隆过滤器。
func (s *LinksRepo) ActiveSlugs(ctx context.Context, limit int) ([]string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx,
		"SELECT active_slug FROM links WHERE active_slug IS NOT NULL ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, shortlink.StorageError(err)
	}
	slugs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, shortlink.StorageError(err)
	}
	return slugs, nil
}

func scanLink(row pgx.Row) (shortlink.ShortLink, error) {
	var l shortlink.ShortLink
	err := row.Scan(&l.ID, &l.OwnerID, &l.DestinationURL, &l.Slug, &l.IsPremium, &l.CreatedAt, &l.ExpiresAt)
	return l, err
}

var _ shortlink.LinkStore = (*LinksRepo)(nil)
