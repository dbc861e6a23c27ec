package api

import (
	"errors"
	"net/http"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) operationsRoutes(v1 *gin.RouterGroup) {
	inventory := v1.Group("/inventory", h.protect(false), allowedTo(staff...))
	{
		inventory.POST("/scan", h.scanBarcode)
		inventory.POST("/adjust", h.adjustStock)
		inventory.GET("/logs/:productId", h.inventoryLogs)
	}

	// Browsers cannot set headers on a websocket handshake.
	v1.GET("/chat/ws", tokenFromQuery, h.protect(false), h.chatSocket)

	chat := v1.Group("/chat", h.protect(false))
	{
		chat.GET("/conversations", h.listConversations)
		chat.POST("/conversations", h.startConversation)
		chat.GET("/messages/:conversationId", h.listMessages)
		chat.POST("/messages", h.sendMessage)
	}

	v1.GET("/cms/:slug", h.getPage)
	v1.POST("/cms", h.protect(false), allowedTo(models.RoleAdmin), h.upsertPage)
}

func tokenFromQuery(c *gin.Context) {
	if token := c.Query("token"); token != "" && c.GetHeader("Authorization") == "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	c.Next()
}

func (h *Handler) scanBarcode(c *gin.Context) {
	var req service.ScanRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.services.Inventory.Scan(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": res})
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req service.AdjustRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	res, err := h.services.Inventory.Adjust(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": res})
}

func (h *Handler) inventoryLogs(c *gin.Context) {
	logs, err := h.services.Inventory.Logs(c.Request.Context(), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": len(logs), "data": logs})
}

func (h *Handler) chatSocket(c *gin.Context) {
	if err := h.sockets.ServeWS(c.Writer, c.Request, actor(c).ID.Hex()); err != nil {
		// The upgrader has already written the handshake error.
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
	}
}

func (h *Handler) listConversations(c *gin.Context) {
	convs, err := h.services.Chat.Conversations(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": len(convs), "data": convs})
}

func (h *Handler) startConversation(c *gin.Context) {
	var req service.StartConversationRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	conv, err := h.services.Chat.Start(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": conv})
}

func (h *Handler) listMessages(c *gin.Context) {
	msgs, err := h.services.Chat.Messages(c.Request.Context(), actor(c), c.Param("conversationId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": len(msgs), "data": msgs})
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req service.SendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	msg, err := h.services.Chat.Send(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": msg})
}

func (h *Handler) getPage(c *gin.Context) {
	page, err := h.services.Cms.Get(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "fail", "message": "Page not found"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": page})
}

func (h *Handler) upsertPage(c *gin.Context) {
	var req service.UpsertPageRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	page, err := h.services.Cms.Upsert(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": page})
}
