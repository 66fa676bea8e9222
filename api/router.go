// Package api is the REST surface: chat management, history, receipts and
// the notification mirror of the WebSocket events.
package api

import (
	"courier/auth"
	"courier/contract"
	"courier/errors"
	"courier/observability"
	"courier/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	log         *slog.Logger
	chatService services.IChatService
	receipts    contract.IReceiptTracker
	notifier    contract.INotifier
	presence    contract.IPresence
	stats       *observability.MonitoringManager
	validate    *validator.Validate
}

func NewHandler(
	log *slog.Logger,
	chatService services.IChatService,
	receipts contract.IReceiptTracker,
	notifier contract.INotifier,
	presence contract.IPresence,
	stats *observability.MonitoringManager,
) *Handler {
	return &Handler{
		log:         log,
		chatService: chatService,
		receipts:    receipts,
		notifier:    notifier,
		presence:    presence,
		stats:       stats,
		validate:    validator.New(),
	}
}

// NewRouter mounts every route. /health and /ws are public, /ws
// authenticates on its own before upgrading.
func NewRouter(h *Handler, verifier contract.TokenVerifier, ws http.Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.health)
	router.GET("/ws", gin.WrapH(ws))

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier))

	protected.GET("/chats", h.listChats)
	protected.POST("/chats/private", h.createPrivate)
	protected.POST("/chats/group", h.createGroup)
	protected.POST("/chats/:id/members", h.addMember)
	protected.DELETE("/chats/:id/members/:userId", h.removeMember)
	protected.GET("/chats/:id/messages", h.history)
	protected.POST("/chats/:id/messages", h.postMessage)
	protected.POST("/chats/:id/read", h.markChatRead)
	protected.GET("/chats/:id/unread", h.unreadCount)
	protected.GET("/messages/:id/status", h.messageStatus)

	protected.GET("/notifications", h.listNotifications)
	protected.GET("/notifications/count", h.notificationCount)
	protected.POST("/notifications/read", h.markNotificationsRead)
	protected.POST("/push/subscriptions", h.subscribePush)

	protected.GET("/users/online", h.onlineUsers)
	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": h.stats.GetLatest()})
}

func (h *Handler) onlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userIds": h.presence.ListOnline()})
}

// fail writes err with the status of its taxonomy code.
func (h *Handler) fail(c *gin.Context, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.FullPath(), "user_id", auth.UserID(c), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"code": errors.ToCode(err), "error": err.Error()})
}

// bind decodes and validates the JSON body into out.
func (h *Handler) bind(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		h.fail(c, errors.Wrap(errors.ErrInvalidPayload, err))
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		h.fail(c, errors.Wrap(errors.ErrInvalidPayload, err))
		return false
	}
	return true
}
