package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/extract"
)

// listMessages 返回当前激活邮箱的消息列表快照。
func (h *Handler) listMessages(c *gin.Context) {
	messages := h.inbox.Messages()
	if messages == nil {
		messages = []domain.MessageSummary{}
	}
	Success(c, gin.H{
		"messages": messages,
		"loading":  h.inbox.Loading(),
	})
}

// messageDetailView 详情响应，附带提取出的主行动链接和改写后的安全 HTML。
type messageDetailView struct {
	*domain.MessageDetail
	PrimaryLink string `json:"primaryLink,omitempty"`
	SafeHTML    string `json:"safeHtml,omitempty"`
}

// getMessage 选中消息并返回完整内容。
//
// 选择令牌保证并发请求下持有的详情对应最后一次完成的选择。
func (h *Handler) getMessage(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.inbox.Select(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("获取邮件详情失败",
			zap.String("messageId", id),
			zap.Error(err))
		respondError(c, err)
		return
	}
	if detail == nil {
		// 请求期间选择已被取代
		NotFound(c, MsgMessageNotFound)
		return
	}

	html := detail.PrimaryHTML()
	safeHTML := extract.SafeAnchors(html)
	if html == "" {
		// 没有 HTML 正文时把纯文本转成可点击的片段
		safeHTML = extract.LinkifyText(detail.Text)
	}
	Success(c, messageDetailView{
		MessageDetail: detail,
		PrimaryLink:   extract.PrimaryLink(html, detail.Text),
		SafeHTML:      safeHTML,
	})
}

// deleteMessage 本地立即删除，远端删除异步进行不阻塞响应。
func (h *Handler) deleteMessage(c *gin.Context) {
	h.inbox.Delete(c.Param("id"))
	NoContent(c)
}

// deleteAllMessages 清空当前邮箱的收件箱。
func (h *Handler) deleteAllMessages(c *gin.Context) {
	h.inbox.DeleteAll()
	NoContent(c)
}

// clearSelection 清除当前选中的消息。
func (h *Handler) clearSelection(c *gin.Context) {
	if _, err := h.inbox.Select(c.Request.Context(), ""); err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	NoContent(c)
}
