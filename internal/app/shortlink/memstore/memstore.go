// Package memstore 是 LinkStore / EventStore 的进程内实现。
//
// 用于 STORAGE_DRIVER=memory（本地开发）和单元测试；数据不持久化。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"linkpulse.local/internal/app/shortlink"

	"github.com/google/uuid"
)

// Store 用一把读写锁保护索引，相当于数据库里的唯一索引：
// 同一个 slug 的并发 Create 只有一个成功。
type Store struct {
	mu     sync.RWMutex
	links  map[string]shortlink.ShortLink // id -> link
	bySlug map[string]string              // 有效 slug -> id
	events []shortlink.VisitEvent
	nextID int64
	clock  func() time.Time
}

func New() *Store {
	return &Store{
		links:  make(map[string]shortlink.ShortLink),
		bySlug: make(map[string]string),
		clock:  time.Now,
	}
}

// WithClock replaces the clock used to stamp CreatedAt and decide slug reuse.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Create(ctx context.Context, in shortlink.NewLink) (shortlink.ShortLink, error) {
	if err := shortlink.ValidateURL(in.DestinationURL); err != nil {
		return shortlink.ShortLink{}, err
	}
	if err := ctx.Err(); err != nil {
		return shortlink.ShortLink{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if id, ok := s.bySlug[in.Slug]; ok {
		if !s.links[id].ExpiredAt(now) {
			return shortlink.ShortLink{}, shortlink.ErrSlugTaken
		}
		// 过期持有者释放 slug
		delete(s.bySlug, in.Slug)
	}

	link := shortlink.ShortLink{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		DestinationURL: in.DestinationURL,
		Slug:           in.Slug,
		CreatedAt:      now,
		ExpiresAt:      in.ExpiresAt,
		IsPremium:      in.IsPremium,
	}
	s.links[link.ID] = link
	s.bySlug[link.Slug] = link.ID
	return link, nil
}

func (s *Store) FindBySlug(ctx context.Context, slug string, now time.Time) (shortlink.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return shortlink.ShortLink{}, shortlink.ErrLinkNotFound
	}
	link := s.links[id]
	if link.ExpiredAt(now) {
		return shortlink.ShortLink{}, shortlink.ErrLinkExpired
	}
	return link, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shortlink.ShortLink
	for _, l := range s.links {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Append(ctx context.Context, e shortlink.VisitEvent) (shortlink.VisitEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[e.LinkID]; !ok {
		return shortlink.VisitEvent{}, shortlink.ErrUnknownLink
	}
	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	s.events = append(s.events, e)
	return e, nil
}

func (s *Store) ListByLinks(ctx context.Context, linkIDs []string) ([]shortlink.VisitEvent, error) {
	want := make(map[string]struct{}, len(linkIDs))
	for _, id := range linkIDs {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shortlink.VisitEvent
	for _, e := range s.events {
		if _, ok := want[e.LinkID]; ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListByLink(ctx context.Context, linkID string, limit int, cursor int64) ([]shortlink.VisitEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shortlink.VisitEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if e.LinkID != linkID {
			continue
		}
		if cursor > 0 && e.ID >= cursor {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Slugs returns every slug currently indexed; used to warm the bloom filter.
func (s *Store) Slugs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bySlug))
	for slug := range s.bySlug {
		out = append(out, slug)
	}
	return out, nil
}

var (
	_ shortlink.LinkStore  = (*Store)(nil)
	_ shortlink.EventStore = (*Store)(nil)
)
