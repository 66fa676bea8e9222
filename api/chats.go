package api

import (
	"courier/auth"
	"courier/domain"
	"courier/errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createPrivateRequest struct {
	UserID string `json:"userId" validate:"required,excludes=:"`
}

type createGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=128"`
	MemberIDs []string `json:"memberIds" validate:"dive,required,excludes=:"`
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,excludes=:"`
}

type postMessageRequest struct {
	Content string             `json:"content" validate:"required"`
	Type    domain.MessageType `json:"type" validate:"omitempty,oneof=text image file audio video"`
}

func (h *Handler) listChats(c *gin.Context) {
	chats, err := h.chatService.ListForUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if chats == nil {
		chats = []domain.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) createPrivate(c *gin.Context) {
	var body createPrivateRequest
	if !h.bind(c, &body) {
		return
	}
	chat, err := h.chatService.CreatePrivate(c.Request.Context(), auth.UserID(c), body.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) createGroup(c *gin.Context) {
	var body createGroupRequest
	if !h.bind(c, &body) {
		return
	}
	chat, err := h.chatService.CreateGroup(c.Request.Context(), auth.UserID(c), body.Name, body.MemberIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *Handler) addMember(c *gin.Context) {
	var body addMemberRequest
	if !h.bind(c, &body) {
		return
	}
	if err := h.chatService.AddMember(c.Request.Context(), auth.UserID(c), c.Param("id"), body.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeMember(c *gin.Context) {
	if err := h.chatService.RemoveMember(c.Request.Context(), auth.UserID(c), c.Param("id"), c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// history pages newest first. Pass the returned cursor back to get older
// messages; offset is only honoured without a cursor.
func (h *Handler) history(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := h.chatService.History(c.Request.Context(), auth.UserID(c), c.Param("id"), domain.PageRequest{
		Limit:  limit,
		Offset: offset,
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if page.Messages == nil {
		page.Messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) postMessage(c *gin.Context) {
	var body postMessageRequest
	if !h.bind(c, &body) {
		return
	}
	message, err := h.chatService.PostMessage(c.Request.Context(), domain.SendMessageCommand{
		ChatID:   c.Param("id"),
		SenderID: auth.UserID(c),
		Content:  body.Content,
		Type:     body.Type,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *Handler) markChatRead(c *gin.Context) {
	changed, err := h.chatService.MarkChatRead(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": len(changed)})
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.receipts.UnreadCount(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *Handler) messageStatus(c *gin.Context) {
	status, err := h.chatService.MessageStatus(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": c.Param("id"), "status": status})
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Wrap(errors.ErrInvalidPayload, strconv.ErrSyntax)
	}
	return n, nil
}
