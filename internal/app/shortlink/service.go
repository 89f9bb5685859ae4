package shortlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkpulse.local/internal/platform/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("linkpulse.local/internal/app/shortlink")

const defaultMaxAttempts = 5

// ShortenRequest 是"创建短链"用例的输入。
//
// Slug 为空时由 SlugGenerator 生成；ExpiresAt 为空表示永不过期。
type ShortenRequest struct {
	OwnerID        string
	DestinationURL string
	Slug           string
	ExpiresAt      *time.Time
	IsPremium      bool
}

// VisitDispatcher 把点击事件交给分析链路。
//
// Dispatch 必须立即返回（不能阻塞跳转路径），失败由实现方自己记录。
type VisitDispatcher interface {
	Dispatch(req RecordRequest)
}

// SlugFilter 是可选的"短码可能已存在"预检查（布隆过滤器）。
type SlugFilter interface {
	MightExist(slug string) bool
	Add(slug string)
}

type Options struct {
	SlugLength  int
	MaxAttempts int
	Filter      SlugFilter
	Now         func() time.Time
}

// Service 组合 LinkStore 与 VisitDispatcher，提供 shorten / resolve / list 三个用例。
type Service struct {
	links       LinkStore
	dispatcher  VisitDispatcher
	gen         *SlugGenerator
	filter      SlugFilter
	maxAttempts int
	now         func() time.Time
}

func NewService(links LinkStore, dispatcher VisitDispatcher, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		links:       links,
		dispatcher:  dispatcher,
		gen:         NewSlugGenerator(opts.SlugLength),
		filter:      opts.Filter,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
	}
}

func (s *Service) Shorten(ctx context.Context, req ShortenRequest) (ShortLink, error) {
	ctx, span := tracer.Start(ctx, "shortlink.Shorten")
	defer span.End()

	if err := ValidateURL(req.DestinationURL); err != nil {
		return ShortLink{}, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return ShortLink{}, ErrInvalidExpiry
	}

	custom := strings.TrimSpace(req.Slug)
	if custom != "" {
		if err := ValidateSlug(custom); err != nil {
			return ShortLink{}, err
		}
		link, err := s.links.Create(ctx, s.newLink(req, custom))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return ShortLink{}, err
		}
		s.remember(link.Slug)
		span.SetAttributes(attribute.String("slug", link.Slug), attribute.Bool("custom", true))
		return link, nil
	}

	// 生成 -> 插入 -> 唯一约束冲突则重试，次数有上限
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		slug, err := s.gen.Generate(0)
		if err != nil {
			return ShortLink{}, err
		}
		if s.filter != nil && s.filter.MightExist(slug) {
			slog.Debug("slug skipped by filter", "slug", slug, "attempt", attempt)
			continue
		}
		link, err := s.links.Create(ctx, s.newLink(req, slug))
		if err == nil {
			s.remember(link.Slug)
			metrics.SlugGenerationAttempts.Observe(float64(attempt))
			span.SetAttributes(attribute.String("slug", link.Slug), attribute.Int("attempts", attempt))
			return link, nil
		}
		if !errors.Is(err, ErrSlugTaken) {
			span.SetStatus(codes.Error, err.Error())
			return ShortLink{}, err
		}
		slog.Warn("generated slug collided", "slug", slug, "attempt", attempt)
	}
	span.SetStatus(codes.Error, ErrSlugExhaustion.Error())
	return ShortLink{}, fmt.Errorf("%w after %d attempts", ErrSlugExhaustion, s.maxAttempts)
}

// Resolve 返回 slug 对应的目标地址，并把点击事件异步交给分析链路。
//
// 分析链路的任何失败都不会影响返回值。
func (s *Service) Resolve(ctx context.Context, slug string, visit Visit) (string, error) {
	ctx, span := tracer.Start(ctx, "shortlink.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("slug", slug))

	link, err := s.links.FindBySlug(ctx, slug, s.now())
	if err != nil {
		if !errors.Is(err, ErrLinkNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		return "", err
	}

	if s.dispatcher != nil {
		at := visit.At
		if at.IsZero() {
			at = s.now()
		}
		s.dispatcher.Dispatch(RecordRequest{
			LinkID:     link.ID,
			VisitorID:  visit.VisitorID,
			DeviceType: visit.DeviceType,
			Browser:    visit.Browser,
			Country:    visit.Country,
			Referrer:   visit.Referrer,
			At:         at,
		})
	}
	return link.DestinationURL, nil
}

// Lookup 返回短链元数据（不记录点击）。
func (s *Service) Lookup(ctx context.Context, slug string) (ShortLink, error) {
	return s.links.FindBySlug(ctx, slug, s.now())
}

// OwnedLink 在 ownerID 自己的短链里按 slug 查找，不过滤过期。
//
// 同一个 slug 过期后被本人重新占用时，返回最新的那条。
func (s *Service) OwnedLink(ctx context.Context, ownerID, slug string) (ShortLink, error) {
	links, err := s.links.ListByOwner(ctx, ownerID)
	if err != nil {
		return ShortLink{}, err
	}
	// ListByOwner 按 CreatedAt 倒序
	for _, l := range links {
		if l.Slug == slug {
			return l, nil
		}
	}
	return ShortLink{}, ErrLinkNotFound
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]ShortLink, error) {
	return s.links.ListByOwner(ctx, ownerID)
}

func (s *Service) newLink(req ShortenRequest, slug string) NewLink {
	return NewLink{
		OwnerID:        req.OwnerID,
		DestinationURL: strings.TrimSpace(req.DestinationURL),
		Slug:           slug,
		ExpiresAt:      req.ExpiresAt,
		IsPremium:      req.IsPremium,
	}
}

func (s *Service) remember(slug string) {
	if s.filter != nil {
		s.filter.Add(slug)
	}
}
