package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLocalPartInvalid 自定义地址前缀不符合字符集或长度限制。
	ErrLocalPartInvalid = errors.New("local part invalid")

	// ErrMailboxNotFound 指定的邮箱不在本地集合中。
	ErrMailboxNotFound = errors.New("mailbox not found")

	// ErrNoActiveMailbox 当前没有激活的邮箱。
	ErrNoActiveMailbox = errors.New("no active mailbox")
)

// ProvisionError 表示提供商拒绝开通邮箱身份。
// 该错误直接呈现给用户，不做自动重试。
type ProvisionError struct {
	StatusCode int    // 提供商返回的 HTTP 状态码，0 表示网络层失败
	Message    string // 提供商返回的说明
}

func (e *ProvisionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provision failed: %s", e.Message)
	}
	return fmt.Sprintf("provision failed (status %d): %s", e.StatusCode, e.Message)
}

// IsProvisionError 判断错误链中是否包含开通失败。
func IsProvisionError(err error) bool {
	var pe *ProvisionError
	return errors.As(err, &pe)
}
