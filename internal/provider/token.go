package provider

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenExpiry 在不验证签名的情况下读取提供商令牌的过期时间。
// 提供商签发的是标准 JWT，我们没有它的密钥也不需要验证，
// 只关心 exp 声明以便在令牌临近失效时提前发出告警。
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// warnIfTokenExpired 在令牌已过期时记录告警。
// 过期后提供商会开始返回 401，这里提前给出可定位的日志。
func (c *Client) warnIfTokenExpired(token, url string) {
	expiry, ok := TokenExpiry(token)
	if !ok {
		return
	}
	if time.Now().After(expiry) {
		c.log.Warn("mailbox token expired, provider will reject this request",
			zap.Time("expired_at", expiry),
			zap.String("url", url),
		)
	}
}
