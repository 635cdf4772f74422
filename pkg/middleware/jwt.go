package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer はこのサービス群が発行するJWTのiss。
const TokenIssuer = "gigboard"

// DefaultTokenTTL はGenerateJWTで発行するトークンのデフォルト有効期間。
const DefaultTokenTTL = 24 * time.Hour

// コンテキストに認証情報を格納するキー。
const (
	contextKeyAccountID = "account_id"
	contextKeyEmail     = "email"
	contextKeyRole      = "role"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// 認証はOAuthプロバイダに委譲しており、このサービスはトークンの検証のみを行う。
type JWTClaims struct {
	jwt.RegisteredClaims
	// AccountID はアカウントの識別子。
	AccountID string `json:"account_id"`
	// Email はアカウントのメールアドレス。通知の受信者として使う。
	Email string `json:"email"`
	// Role はアカウントの種類（RoleIndividual, RoleCompany, RoleAdmin, RoleService）。
	// 内部APIはRequireRoleでこの値を検査する。
	Role string `json:"role,omitempty"`
}

// errMissingEmail はトークンにメールアドレスが含まれていないことを表す。
var errMissingEmail = errors.New("トークンにメールアドレスが含まれていません")

// GenerateJWT はアカウント情報からHS256で署名したJWTトークンを生成する。
// ロールは含めない。ttlが0以下の場合はDefaultTokenTTLを使う。
func GenerateJWT(secret, accountID, email string, ttl time.Duration) (string, error) {
	return GenerateJWTWithRole(secret, accountID, email, "", ttl)
}

// GenerateJWTWithRole はロールを含むJWTトークンを生成する。
func GenerateJWTWithRole(secret, accountID, email, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    TokenIssuer,
		},
		AccountID: accountID,
		Email:     email,
		Role:      role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークンを検証し、クレームを返す。
// 署名方式はHS256のみ受け付け、issが一致しないトークンは拒否する。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("トークンが無効です")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, errMissingEmail
	}
	return claims, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにアカウントID、メールアドレス、ロールを設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			msg := "トークンが無効です"
			if errors.Is(err, errMissingEmail) {
				msg = errMissingEmail.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		SetIdentity(c, claims.AccountID, claims.Email)
		SetRole(c, claims.Role)
		c.Next()
	}
}

// SetIdentity はコンテキストに認証済みのアカウント情報を設定する。
func SetIdentity(c *gin.Context, accountID, email string) {
	c.Set(contextKeyAccountID, accountID)
	c.Set(contextKeyEmail, email)
}

// GetEmail はGinコンテキストから認証済みのメールアドレスを取得する。
// JWTAuthミドルウェアが事前に適用されていない場合は空文字列を返す。
func GetEmail(c *gin.Context) string {
	return getString(c, contextKeyEmail)
}

// GetAccountID はGinコンテキストからアカウントIDを取得する。
func GetAccountID(c *gin.Context) string {
	return getString(c, contextKeyAccountID)
}

// getString はコンテキストから文字列の値を取り出す。
func getString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
