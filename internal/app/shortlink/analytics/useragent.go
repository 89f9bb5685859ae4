package analytics

import (
	"strings"

	"linkpulse.local/internal/app/shortlink"

	"github.com/mssola/useragent"
)

// 统计里保留的浏览器族，其余归为 Other
var browserFamilies = map[string]string{
	"Chrome":            "Chrome",
	"Chromium":          "Chrome",
	"Firefox":           "Firefox",
	"Safari":            "Safari",
	"Edge":              "Edge",
	"Opera":             "Opera",
	"Internet Explorer": "IE",
}

// 命令行客户端不带站点信息，useragent 不把它们当爬虫
var cliClients = []string{"curl/", "wget/", "python-requests/", "go-http-client/"}

// ParseDevice classifies a User-Agent string into a device type.
func ParseDevice(userAgent string) shortlink.DeviceType {
	if strings.TrimSpace(userAgent) == "" {
		return shortlink.DeviceDesktop
	}
	ua := useragent.New(userAgent)
	lower := strings.ToLower(userAgent)
	switch {
	case ua.Bot() || isCLIClient(lower):
		return shortlink.DeviceBot
	// iPad 的 UA 里也带 Mobile；Android 平板不带 Mobile
	case isTablet(lower):
		return shortlink.DeviceTablet
	case ua.Mobile() || strings.Contains(lower, "mobile"):
		return shortlink.DeviceMobile
	}
	return shortlink.DeviceDesktop
}

// ParseBrowser extracts a coarse browser family name.
func ParseBrowser(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}
	name, _ := ua.Browser()
	if family, ok := browserFamilies[name]; ok {
		return family
	}
	return "Other"
}

func isTablet(lower string) bool {
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}

func isCLIClient(lower string) bool {
	for _, p := range cliClients {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
