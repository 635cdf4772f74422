package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gigboard/pkg/event"
	"github.com/nao1215/gigboard/pkg/middleware"
)

// TimeLayout はAPIで返す時刻の書式（ミリ秒付きのRFC 3339）。
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ServerConfig は通知サーバーの設定。
type ServerConfig struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT検証用の秘密鍵。
	JWTSecret string
	// CORSOrigins はクロスオリジンリクエストを許可するオリジン。
	CORSOrigins []string
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg ServerConfig
	// service は通知の読み書きを行うサービス。
	service *Service
	// notifier はイベントから通知を生成する窓口。
	notifier *Notifier
	// logger はサーバーのロガー。
	logger *slog.Logger
}

// NewServer は新しい通知サーバーを生成する。
// 永続化層はserviceの生成時に注入済みであること。
func NewServer(cfg ServerConfig, service *Service, notifier *Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(gin.Logger())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(middleware.CORS(cfg.CORSOrigins))
	}

	s := &Server{
		router:   router,
		cfg:      cfg,
		service:  service,
		notifier: notifier,
		logger:   logger,
	}
	s.setupRoutes(middleware.JWTAuth(cfg.JWTSecret))

	return s
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("通知サービスを起動します", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("通知サービスを停止します")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
// authは認証ミドルウェアで、テストでは差し替える。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		notifications := api.Group("/notifications")
		{
			// フィード取得
			notifications.GET("", s.handleListFeed())
			// 未読件数のみ取得
			notifications.GET("/unread-count", s.handleUnreadCount())
			// 指定した通知、または指定日時以前の通知を既読にする
			notifications.POST("/read", s.handleMarkRead())
			// 1件だけ既読にする
			notifications.PUT("/:id/read", s.handleMarkOneRead())
		}

		// 内部API（他サービスから呼び出される）。利用者のトークンでは呼び出せない
		internal := api.Group("/internal")
		internal.Use(middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin))
		{
			internal.POST("/notifications", s.handleCreate())
			internal.POST("/events/account-status", s.handleAccountStatusEvent())
			internal.POST("/events/gig-application-status", s.handleGigStatusEvent())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	ID                string         `json:"id"`
	Recipient         string         `json:"recipient"`
	Kind              string         `json:"kind"`
	Title             string         `json:"title"`
	Body              string         `json:"body"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata"`
	IsRead            bool           `json:"isRead"`
	ReadAt            *string        `json:"readAt"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
}

// feedResponse はフィードのJSONレスポンス構造。
type feedResponse struct {
	Items       []notificationResponse `json:"items"`
	UnreadCount int64                  `json:"unreadCount"`
	Now         string                 `json:"now"`
	NextCursor  *string                `json:"nextCursor"`
}

// formatTime は時刻をAPIの書式に変換する。
func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// formatTimePtr はnilを許す時刻をAPIの書式に変換する。
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// toNotificationResponse は通知をJSONレスポンスに変換する。
func toNotificationResponse(n Notification) notificationResponse {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return notificationResponse{
		ID:                n.ID,
		Recipient:         n.Recipient,
		Kind:              string(n.Kind),
		Title:             n.Title,
		Body:              n.Body,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		Metadata:          metadata,
		IsRead:            n.IsRead,
		ReadAt:            formatTimePtr(n.ReadAt),
		CreatedAt:         formatTime(n.CreatedAt),
		UpdatedAt:         formatTime(n.UpdatedAt),
	}
}

// toFeedResponse はフィードをJSONレスポンスに変換する。
func toFeedResponse(feed *Feed) feedResponse {
	items := make([]notificationResponse, 0, len(feed.Items))
	for _, n := range feed.Items {
		items = append(items, toNotificationResponse(n))
	}
	return feedResponse{
		Items:       items,
		UnreadCount: feed.UnreadCount,
		Now:         formatTime(feed.Now),
		NextCursor:  formatTimePtr(feed.NextCursor),
	}
}

// respondError はエラーの種類に応じたステータスコードでエラーを返す。
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力値が不正です", "fields": verr.Fields})
	case errors.Is(err, ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーを特定できません"})
	case errors.Is(err, ErrStoreUnavailable):
		s.logger.ErrorContext(c.Request.Context(), "通知ストアへのアクセスに失敗", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "現在通知を読み込めません"})
	default:
		s.logger.ErrorContext(c.Request.Context(), "通知APIで予期しないエラー", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}

// parseFeedOptions はクエリパラメータからフィード取得の条件を組み立てる。
func parseFeedOptions(c *gin.Context) (FeedOptions, error) {
	opts := FeedOptions{}

	switch strings.ToLower(c.Query("unread")) {
	case "1", "true":
		opts.OnlyUnread = true
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return opts, newValidationError("limit", "整数で指定してください")
		}
		opts.Limit = limit
	}

	after, err := parseTimeParam("after", c.Query("after"))
	if err != nil {
		return opts, err
	}
	opts.After = after

	cursor, err := parseTimeParam("cursor", c.Query("cursor"))
	if err != nil {
		return opts, err
	}
	opts.Cursor = cursor

	return opts, nil
}

// parseTimeParam はRFC 3339の時刻を解析する。空文字列はnilを返す。
func parseTimeParam(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, newValidationError(name, "ISO 8601形式の日時で指定してください")
	}
	return &t, nil
}

// handleListFeed は認証済みユーザーのフィードを返すハンドラ。
func (s *Server) handleListFeed() gin.HandlerFunc {
	return func(c *gin.Context) {
		recipient := middleware.GetEmail(c)
		if recipient == "" {
			s.respondError(c, ErrUnauthenticated)
			return
		}

		opts, err := parseFeedOptions(c)
		if err != nil {
			s.respondError(c, err)
			return
		}

		feed, err := s.service.ListFeed(c.Request.Context(), recipient, opts)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toFeedResponse(feed))
	}
}

// handleUnreadCount は認証済みユーザーの未読件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		unread, err := s.service.UnreadCount(c.Request.Context(), middleware.GetEmail(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unreadCount": unread})
	}
}

// markReadRequest は既読化リクエストのJSON構造。
type markReadRequest struct {
	// IDs は既読にする通知のID。
	IDs []string `json:"ids"`
	// AllBefore はこの日時以前の通知をすべて既読にする。
	AllBefore string `json:"allBefore"`
}

// handleMarkRead は通知を既読にするハンドラ。
// ボディが空の場合も受け付け、未読件数だけを返す。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		recipient := middleware.GetEmail(c)
		if recipient == "" {
			s.respondError(c, ErrUnauthenticated)
			return
		}

		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		allBefore, err := parseTimeParam("allBefore", req.AllBefore)
		if err != nil {
			s.respondError(c, err)
			return
		}

		result, err := s.service.MarkRead(c.Request.Context(), recipient, MarkReadInput{
			IDs:       req.IDs,
			AllBefore: allBefore,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "unreadCount": result.UnreadCount})
	}
}

// handleMarkOneRead は指定された通知を1件だけ既読にするハンドラ。
// 他人の通知や存在しない通知を指定しても何も更新しない。
func (s *Server) handleMarkOneRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.service.MarkRead(c.Request.Context(), middleware.GetEmail(c), MarkReadInput{
			IDs: []string{c.Param("id")},
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "unreadCount": result.UnreadCount})
	}
}

// handleCreate は通知を1件作成するハンドラ。内部API。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		id, err := s.service.Create(c.Request.Context(), req)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// accountStatusRequest はアカウント審査状態の変更イベントのJSON構造。
type accountStatusRequest struct {
	// Email は通知先のメールアドレス。
	Email string `json:"email" binding:"required"`
	// AccountID は状態が変わったアカウントのID。
	AccountID string `json:"accountId"`
	// AccountType はアカウントの種類。
	AccountType string `json:"accountType"`
	// Status は変更後の審査状態。
	Status string `json:"status" binding:"required"`
}

// handleAccountStatusEvent はアカウント審査状態の変更を通知するハンドラ。内部API。
// 通知の書き込みに失敗しても呼び出し元の処理を妨げないよう、常に202を返す。
func (s *Server) handleAccountStatusEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accountStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		id := s.notifier.AccountStatusChanged(c.Request.Context(), req.Email, req.AccountID, event.AccountStatusData{
			Status:      req.Status,
			AccountType: req.AccountType,
		})
		respondAccepted(c, id)
	}
}

// gigStatusRequest はギグ応募状態の変更イベントのJSON構造。
type gigStatusRequest struct {
	// Email は応募者のメールアドレス。
	Email string `json:"email" binding:"required"`
	// ApplicationID は応募のID。
	ApplicationID string `json:"applicationId" binding:"required"`
	// GigID はギグのID。
	GigID string `json:"gigId"`
	// GigTitle はギグのタイトル。
	GigTitle string `json:"gigTitle" binding:"required"`
	// Status は変更後の応募状態。
	Status string `json:"status" binding:"required"`
}

// handleGigStatusEvent はギグ応募状態の変更を通知するハンドラ。内部API。
// 通知の書き込みに失敗しても常に202を返す。
func (s *Server) handleGigStatusEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req gigStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		id := s.notifier.GigApplicationStatusChanged(c.Request.Context(), req.Email, event.GigStatusData{
			ApplicationID: req.ApplicationID,
			GigID:         req.GigID,
			GigTitle:      req.GigTitle,
			Status:        req.Status,
		})
		respondAccepted(c, id)
	}
}

// respondAccepted はイベント受付のレスポンスを返す。
// 通知が作成できた場合のみnotificationIdを含める。
func respondAccepted(c *gin.Context, id string) {
	body := gin.H{"accepted": true}
	if id != "" {
		body["notificationId"] = id
	}
	c.JSON(http.StatusAccepted, body)
}

// handleHealth はヘルスチェックのハンドラ。永続化層への疎通も確認する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.service.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "ヘルスチェックに失敗", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "notification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	}
}
