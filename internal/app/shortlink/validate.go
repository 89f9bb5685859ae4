package shortlink

import (
	"net/url"
	"regexp"
	"strings"
)

const maxURLLength = 2048

// ValidateURL 校验目标地址：scheme 必须是 http/https，host 不能为空。
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if strings.TrimSpace(u.Host) == "" {
		return ErrInvalidURL
	}
	return nil
}

var slugRe = regexp.MustCompile(`^[A-Za-z0-9]{3,32}$`)

// 与站点已有路由前缀冲突的词
var reservedSlugs = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"metrics": {},
	"favicon": {},
}

// ValidateSlug 校验用户自定义短码：仅字母/数字，长度 3~32，且不能是保留词。
func ValidateSlug(slug string) error {
	if !slugRe.MatchString(slug) {
		return ErrInvalidSlug
	}
	if _, ok := reservedSlugs[strings.ToLower(slug)]; ok {
		return ErrInvalidSlug
	}
	return nil
}
