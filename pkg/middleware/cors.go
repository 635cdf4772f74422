package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS はフロントエンドのオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// "*" を含む場合はすべてのオリジンを許可する。通知フィードはCookieではなく
// Authorizationヘッダーで認証するため、資格情報付きリクエストは許可しない。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
			_, allowed := originsSet[origin]
			if allowAll || allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Max-Age", "600")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
