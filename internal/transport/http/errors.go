package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/provider"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrLocalPartInvalid: "邮箱前缀格式无效",
	domain.ErrMailboxNotFound:  "邮箱不存在",
	domain.ErrNoActiveMailbox:  "当前没有激活的邮箱",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// respondError 把业务错误映射为 HTTP 响应。
// 开通类错误按提供商返回的状态区分冲突和网关故障。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrLocalPartInvalid):
		BadRequest(c, GetErrorMessage(err))
	case errors.Is(err, domain.ErrMailboxNotFound), errors.Is(err, domain.ErrNoActiveMailbox):
		NotFound(c, GetErrorMessage(err))
	case domain.IsProvisionError(err):
		var pe *domain.ProvisionError
		errors.As(err, &pe)
		if pe.StatusCode == 422 || pe.StatusCode == 409 {
			Conflict(c, MsgAddressTaken)
		} else {
			BadGateway(c, MsgProviderUnavailable)
		}
	default:
		var pErr *provider.Error
		if errors.As(err, &pErr) {
			if pErr.StatusCode == 404 {
				NotFound(c, MsgMessageNotFound)
			} else {
				BadGateway(c, MsgProviderUnavailable)
			}
			return
		}
		InternalError(c, MsgInternalError)
	}
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"

	MsgAddressTaken = "该地址已被占用"

	MsgMessageNotFound   = "邮件不存在"
	MsgDomainListFailed  = "获取域名列表失败"
	MsgScriptBuildFailed = "生成注入脚本失败"

	MsgProviderUnavailable = "邮件提供商暂时不可用"
	MsgInternalError       = "服务器内部错误，请稍后重试"
)
