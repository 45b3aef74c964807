package shared

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var paymentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidPaymentID reports whether id is an acceptable path identifier
func ValidPaymentID(id string) bool {
	return paymentIDPattern.MatchString(id)
}

// RequestScheme https when the request arrived over TLS or a proxy says so
func RequestScheme(c *gin.Context) string {
	if proto := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		if idx := strings.Index(proto, ","); idx >= 0 {
			proto = proto[:idx]
		}
		return strings.ToLower(strings.TrimSpace(proto))
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
