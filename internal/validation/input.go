// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/url"
	"strings"
)

// MaxPlatforms ограничивает число платформ в одном запросе генерации.
const MaxPlatforms = 5

var knownPlatforms = map[string]struct{}{
	"facebook":  {},
	"instagram": {},
	"linkedin":  {},
	"twitter":   {},
	"google":    {},
	"tiktok":    {},
}

// NormalizeBrandURL приводит адрес сайта бренда к виду с http(s)-схемой.
// Возвращает false, если адрес не похож на публичный сайт.
func NormalizeBrandURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return "", false
	}

	return u.String(), true
}

// NormalizePlatforms приводит названия платформ к нижнему регистру и убирает повторы.
// Возвращает false при пустом списке, неизвестной платформе или превышении MaxPlatforms.
func NormalizePlatforms(platforms []string) ([]string, bool) {
	if len(platforms) == 0 {
		return nil, false
	}

	seen := make(map[string]struct{}, len(platforms))
	res := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, ok := knownPlatforms[p]; !ok {
			return nil, false
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		res = append(res, p)
	}

	if len(res) > MaxPlatforms {
		return nil, false
	}
	return res, true
}

// IsValidLogin проверяет логин: непустой, без пробельных символов, не длиннее 64 символов.
func IsValidLogin(login string) bool {
	if login == "" || len(login) > 64 {
		return false
	}
	return !strings.ContainsAny(login, " \t\r\n")
}
