package api

import (
	"courier/auth"
	"courier/domain"
	"courier/errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type markReadRequest struct {
	IDs    []string                  `json:"ids" validate:"required_without=All,dive,required,excludes=:"`
	All    bool                      `json:"all"`
	Types  []domain.NotificationType `json:"types"`
	ChatID string                    `json:"chatId"`
	Since  *time.Time                `json:"since"`
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// notificationFilter reads ?types=a,b&chatId=&unreadOnly=&since=&limit=&offset=.
func notificationFilter(c *gin.Context) (domain.NotificationFilter, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return domain.NotificationFilter{}, err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return domain.NotificationFilter{}, err
	}
	filter := domain.NotificationFilter{
		ChatID:     c.Query("chatId"),
		UnreadOnly: c.Query("unreadOnly") == "true",
		Limit:      limit,
		Offset:     offset,
	}
	if raw := c.Query("types"); raw != "" {
		filter.Types = lo.Map(strings.Split(raw, ","), func(t string, _ int) domain.NotificationType {
			return domain.NotificationType(strings.TrimSpace(t))
		})
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.NotificationFilter{}, errors.Wrap(errors.ErrInvalidPayload, err)
		}
		filter.Since = since
	}
	return filter, nil
}

func (h *Handler) listNotifications(c *gin.Context) {
	filter, err := notificationFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.notifier.List(c.Request.Context(), auth.UserID(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) notificationCount(c *gin.Context) {
	count, err := h.notifier.UnreadCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *Handler) markNotificationsRead(c *gin.Context) {
	var body markReadRequest
	if !h.bind(c, &body) {
		return
	}
	request := domain.MarkReadRequest{
		IDs: body.IDs,
		All: body.All,
		Filter: domain.NotificationFilter{
			Types:  body.Types,
			ChatID: body.ChatID,
		},
	}
	if body.Since != nil {
		request.Filter.Since = *body.Since
	}
	count, err := h.notifier.MarkRead(c.Request.Context(), auth.UserID(c), request)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": count})
}

func (h *Handler) subscribePush(c *gin.Context) {
	var body subscribeRequest
	if !h.bind(c, &body) {
		return
	}
	err := h.notifier.Subscribe(c.Request.Context(), domain.PushSubscription{
		UserID:   auth.UserID(c),
		Endpoint: body.Endpoint,
		Auth:     body.Keys.Auth,
		P256dh:   body.Keys.P256dh,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
