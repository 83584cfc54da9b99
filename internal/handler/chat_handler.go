package handler

import (
	"errors"

	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/internal/service"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 会话相关接口
// ============================================================

// ListConversations 按当前角色列会话（按最后消息时间倒序）
// GET /api/v1/chat/conversations
func (h *Handler) ListConversations(c *gin.Context) {
	uid := currentUserID(c)

	var (
		list []*model.Conversation
		err  error
	)
	if c.GetString(ctxKeyRole) == model.RoleSeller {
		list, err = h.chatService.ListSellerConversations(c.Request.Context(), uid)
	} else {
		list, err = h.chatService.ListBuyerConversations(c.Request.Context(), uid)
	}
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, list)
}

// ListMessages 拉取会话消息（按时间正序分页）
// GET /api/v1/chat/messages?peer_id=123&page=1&page_size=20
func (h *Handler) ListMessages(c *gin.Context) {
	conv, ok := h.resolveConversation(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.chatService.ListMessages(c.Request.Context(), conv.ConvKey, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"conversation": conv,
		"list":         list,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// SendMessageRequest 发消息请求，peer_id 为对端用户ID
type SendMessageRequest struct {
	PeerID int64  `json:"peer_id" binding:"required"`
	Text   string `json:"text" binding:"required,max=2048"`
}

// SendMessage 发送会话消息
// POST /api/v1/chat/send
//
// 发送方身份由登录态决定；买家消息命中自动回复条件时会排队一条延迟 AI 回复
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	uid := currentUserID(c)
	sellerID, buyerID, sender := uid, req.PeerID, model.SenderBuyer
	if c.GetString(ctxKeyRole) == model.RoleSeller {
		sender = model.SenderSeller
	} else {
		sellerID, buyerID = req.PeerID, uid
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), sellerID, buyerID, sender, req.Text)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, msg)
}

// Heartbeat 卖家在线心跳，客户端会话页打开期间周期性上报
// POST /api/v1/chat/heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	if err := h.chatService.Heartbeat(c.Request.Context(), currentUserID(c)); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"presence": model.PresenceOnline})
}

// SetHandoff 卖家切换会话接管模式（ai / seller）
// POST /api/v1/chat/handoff
func (h *Handler) SetHandoff(c *gin.Context) {
	var req struct {
		BuyerID int64  `json:"buyer_id" binding:"required"`
		Mode    string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	convKey := model.ConvKey(currentUserID(c), req.BuyerID)
	err := h.chatService.SetHandoff(c.Request.Context(), convKey, req.Mode)
	if err != nil {
		if errors.Is(err, service.ErrInvalidHandoff) {
			response.ParamError(c, err.Error())
			return
		}
		if errors.Is(err, repository.ErrConversationNotFound) {
			response.BusinessError(c, response.CodeConversationNotFound, h.T(c, "chat.conversation_not_found"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"conv_key": convKey, "handoff_mode": req.Mode})
}

// resolveConversation 按 peer_id 定位会话并校验当前用户是当事人
func (h *Handler) resolveConversation(c *gin.Context) (*model.Conversation, bool) {
	peerID, ok := int64Query(c, "peer_id")
	if !ok {
		response.ParamError(c, "peer_id 不能为空")
		return nil, false
	}

	uid := currentUserID(c)
	sellerID, buyerID := uid, peerID
	if c.GetString(ctxKeyRole) != model.RoleSeller {
		sellerID, buyerID = peerID, uid
	}

	conv, err := h.chatService.GetConversation(c.Request.Context(), model.ConvKey(sellerID, buyerID))
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			response.BusinessError(c, response.CodeConversationNotFound, h.T(c, "chat.conversation_not_found"))
			return nil, false
		}
		response.ServerError(c, err.Error())
		return nil, false
	}
	return conv, true
}
