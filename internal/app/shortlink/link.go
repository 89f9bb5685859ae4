package shortlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ShortLink 是短链领域对象。
//
// 领域层只关心业务含义，不携带 HTTP/DB 细节。
// 创建后不可变；唯一的状态变化是到达 ExpiresAt 后从"有效"变为"过期"（单向）。
type ShortLink struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	DestinationURL string     `json:"destination_url"`
	Slug           string     `json:"slug"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsPremium      bool       `json:"is_premium"`
}

// ExpiredAt reports whether the link is no longer valid at now.
func (l ShortLink) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// NewLink 是 LinkStore.Create 的入参。
type NewLink struct {
	OwnerID        string
	DestinationURL string
	Slug           string
	ExpiresAt      *time.Time
	IsPremium      bool
}

type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceBot     DeviceType = "bot"
)

// NormalizeDeviceType lowercases d and falls back to desktop when empty.
func NormalizeDeviceType(d DeviceType) DeviceType {
	v := DeviceType(strings.ToLower(strings.TrimSpace(string(d))))
	if v == "" {
		return DeviceDesktop
	}
	return v
}

// VisitEvent 是一次成功跳转产生的点击记录，只追加，不修改。
type VisitEvent struct {
	ID         int64      `json:"id"`
	LinkID     string     `json:"link_id"`
	VisitorID  string     `json:"visitor_id"`
	DeviceType DeviceType `json:"device_type"`
	Browser    string     `json:"browser"`
	Country    *string    `json:"country,omitempty"`
	Referrer   *string    `json:"referrer,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Visit 是跳转请求上能拿到的访问者信息（由传输层解析）。
type Visit struct {
	VisitorID  string
	DeviceType DeviceType
	Browser    string
	Country    *string
	Referrer   *string
	At         time.Time
}

// RecordRequest 是 AnalyticsRecorder.Record 的入参，也是分析队列 / Kafka 上传输的消息体。
type RecordRequest struct {
	LinkID     string     `json:"link_id"`
	VisitorID  string     `json:"visitor_id"`
	DeviceType DeviceType `json:"device_type"`
	Browser    string     `json:"browser"`
	Country    *string    `json:"country,omitempty"`
	Referrer   *string    `json:"referrer,omitempty"`
	At         time.Time  `json:"at"`
}

// LinkStore 独占 ShortLink 记录。
//
// Create 必须在存储层原子地保证 slug 唯一（唯一索引或等价机制），不能是应用层的先查后插。
type LinkStore interface {
	Create(ctx context.Context, in NewLink) (ShortLink, error)
	FindBySlug(ctx context.Context, slug string, now time.Time) (ShortLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]ShortLink, error)
}

// EventStore 独占 VisitEvent 记录。
type EventStore interface {
	// Append 返回 ErrUnknownLink 表示 LinkID 不存在。
	Append(ctx context.Context, e VisitEvent) (VisitEvent, error)
	// ListByLinks 返回给定短链的全部事件，按 CreatedAt 升序。
	ListByLinks(ctx context.Context, linkIDs []string) ([]VisitEvent, error)
	// ListByLink 按 ID 倒序分页；cursor=0 表示第一页。
	ListByLink(ctx context.Context, linkID string, limit int, cursor int64) ([]VisitEvent, error)
}

var (
	ErrInvalidURL         = errors.New("invalid url")
	ErrInvalidSlug        = errors.New("invalid slug")
	ErrInvalidExpiry      = errors.New("expiry must be in the future")
	ErrSlugTaken          = errors.New("slug already taken")
	ErrSlugExhaustion     = errors.New("slug generation exhausted")
	ErrLinkNotFound       = errors.New("link not found")
	ErrUnknownLink        = errors.New("unknown link")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ErrLinkExpired 与 ErrLinkNotFound 可区分，但 errors.Is(ErrLinkExpired, ErrLinkNotFound) 为 true。
var ErrLinkExpired = fmt.Errorf("%w: expired", ErrLinkNotFound)

// StorageError wraps a driver failure so callers can match both ErrStorageUnavailable and the cause.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
