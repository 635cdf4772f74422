package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// アカウントのロール。
const (
	// RoleIndividual は個人の利用者。
	RoleIndividual = "individual"
	// RoleCompany は企業の利用者。
	RoleCompany = "company"
	// RoleAdmin は運営者。
	RoleAdmin = "admin"
	// RoleService は内部APIを呼び出す他サービス。
	RoleService = "service"
)

// SetRole はコンテキストに認証済みのロールを設定する。
func SetRole(c *gin.Context, role string) {
	c.Set(contextKeyRole, role)
}

// GetRole はGinコンテキストからロールを取得する。未設定の場合は空文字列を返す。
func GetRole(c *gin.Context) string {
	return getString(c, contextKeyRole)
}

// RequireRole は指定したロールのいずれかを持つリクエストのみ通過させるGinミドルウェアを返す。
// JWTAuthの後に適用する。ロールが一致しない場合は403を返す。
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := allowed[GetRole(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "この操作を行う権限がありません",
			})
			return
		}
		c.Next()
	}
}
