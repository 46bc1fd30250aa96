package httptransport

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/inbox"
	"nexusmail/agent/internal/persona"
	"nexusmail/agent/internal/provider"
	"nexusmail/agent/internal/store"
)

// DomainLister 提供商的可用域名查询能力。
type DomainLister interface {
	ListDomains(ctx context.Context) (*provider.DomainList, error)
}

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	store    *store.Store
	inbox    *inbox.Synchronizer
	domains  DomainLister
	personas *persona.Generator
	log      *zap.Logger
}

// mailboxView 对外暴露的邮箱视图，永远不携带凭据。
type mailboxView struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
	Active    bool   `json:"active"`
}

func (h *Handler) mailboxViews() ([]mailboxView, string) {
	mailboxes := h.store.List()
	activeID := ""
	if active := h.store.Active(); active != nil {
		activeID = active.ID
	}

	views := make([]mailboxView, 0, len(mailboxes))
	for _, mb := range mailboxes {
		views = append(views, mailboxView{
			ID:        mb.ID,
			Address:   mb.Address,
			CreatedAt: mb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Active:    mb.ID == activeID,
		})
	}
	return views, activeID
}

// listMailboxes 返回持有的全部邮箱及激活指针。
func (h *Handler) listMailboxes(c *gin.Context) {
	views, activeID := h.mailboxViews()
	Success(c, gin.H{
		"mailboxes": views,
		"activeId":  activeID,
	})
}

// createMailbox 开通一个随机地址的新邮箱并激活。
func (h *Handler) createMailbox(c *gin.Context) {
	mb, err := h.store.CreateRandom(c.Request.Context())
	if err != nil {
		h.log.Error("开通随机邮箱失败", zap.Error(err))
		respondError(c, err)
		return
	}

	Created(c, mailboxView{
		ID:        mb.ID,
		Address:   mb.Address,
		CreatedAt: mb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Active:    true,
	})
}

type createCustomRequest struct {
	LocalPart string `json:"localPart" binding:"required"`
	Domain    string `json:"domain" binding:"required"`
	BaseURL   string `json:"baseUrl"`
}

// createCustomMailbox 按用户指定的前缀和域名开通邮箱。
func (h *Handler) createCustomMailbox(c *gin.Context) {
	var req createCustomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	mb, err := h.store.CreateCustom(c.Request.Context(), req.LocalPart, req.Domain, req.BaseURL)
	if err != nil {
		respondError(c, err)
		return
	}

	Created(c, mailboxView{
		ID:        mb.ID,
		Address:   mb.Address,
		CreatedAt: mb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Active:    true,
	})
}

// activateMailbox 切换激活邮箱。
func (h *Handler) activateMailbox(c *gin.Context) {
	if err := h.store.SwitchActive(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	views, activeID := h.mailboxViews()
	Success(c, gin.H{
		"mailboxes": views,
		"activeId":  activeID,
	})
}

// deleteMailbox 删除邮箱。删除最后一个会自动补充一个新邮箱。
func (h *Handler) deleteMailbox(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	NoContent(c)
}

// listDomains 返回提供商当前可用的域名列表。
func (h *Handler) listDomains(c *gin.Context) {
	result, err := h.domains.ListDomains(c.Request.Context())
	if err != nil {
		h.log.Warn("获取可用域名失败", zap.Error(err))
		BadGateway(c, MsgDomainListFailed)
		return
	}
	Success(c, result)
}

// activeMailbox 便捷取值，无激活邮箱时返回 nil。
func (h *Handler) activeMailbox() *domain.Mailbox {
	return h.store.Active()
}
