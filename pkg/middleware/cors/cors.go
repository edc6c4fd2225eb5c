package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

var defaultHeaders = []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID", "X-Actor-ID"}

// New returns a CORS middleware for the given origins. An empty list allows any origin.
// extraHeaders are appended to the allowed request headers.
func New(allowedOrigins []string, extraHeaders ...string) gin.HandlerFunc {
	origins := lo.SliceToMap(allowedOrigins, func(origin string) (string, struct{}) {
		return normalizeOrigin(origin), struct{}{}
	})
	allowHeaders := strings.Join(lo.Uniq(append(append([]string{}, defaultHeaders...), extraHeaders...)), ", ")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case origin == "" && len(origins) == 0:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed(origins, origin):
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		}

		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		header.Set("Access-Control-Expose-Headers", "X-Request-ID")
		header.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowed(origins map[string]struct{}, origin string) bool {
	if len(origins) == 0 {
		return true
	}
	_, ok := origins[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
